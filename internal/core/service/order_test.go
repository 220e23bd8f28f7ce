package service_test

import (
	"context"
	"errors"
	"math"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/bookstore/orderservice/internal/adapter/cache"
	"github.com/bookstore/orderservice/internal/adapter/client/broker"
	"github.com/bookstore/orderservice/internal/adapter/storage/memory"
	"github.com/bookstore/orderservice/internal/core/domain"
	"github.com/bookstore/orderservice/internal/core/port"
	"github.com/bookstore/orderservice/internal/core/port/mock"
	"github.com/bookstore/orderservice/internal/core/service"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type storeFixture struct {
	repo    *memory.Repository
	gateway *mock.MockPaymentGateway
	svc     *service.Service
}

func newStoreFixture(t *testing.T, books ...domain.Book) *storeFixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &storeFixture{
		repo:    memory.NewRepository(),
		gateway: mock.NewMockPaymentGateway(ctrl),
	}
	for _, b := range books {
		b := b
		_, err := f.repo.CreateBook(context.Background(), &b)
		require.NoError(t, err)
	}

	svc, err := service.NewService(f.repo, f.gateway, cache.NewNoopCache(),
		broker.NewLogPublisher(zap.NewNop()), zap.NewNop())
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *storeFixture) submit(t *testing.T, method domain.PaymentMethod, quantity int) *domain.Order {
	t.Helper()
	submitted, err := f.svc.SubmitOrder(context.Background(), port.SubmitOrderRequest{
		LineItems:     []domain.LineItemRequest{{ISBN: "B1", Quantity: quantity}},
		PaymentMethod: method,
		User:          alice,
	})
	require.NoError(t, err)
	return submitted.Order
}

func (f *storeFixture) book(t *testing.T) *domain.Book {
	t.Helper()
	b, err := f.repo.ReadBook(context.Background(), "B1")
	require.NoError(t, err)
	return b
}

// expectCallback makes the gateway report code for order with the given amount in minor units.
func (f *storeFixture) expectCallback(order *domain.Order, code string, amount int64) url.Values {
	query := url.Values{"vnp_TxnRef": {order.ID.String()}, "vnp_ResponseCode": {code}}
	f.gateway.EXPECT().ParseCallback(query).Return(&domain.PaymentCallback{
		OrderRef:     order.ID.String(),
		ResponseCode: code,
		Amount:       amount,
	}, nil)
	f.gateway.EXPECT().VerifyCallback(query).Return(nil)
	return query
}

var b1 = domain.Book{ISBN: "B1", Title: "Go", Author: "Gopher", Price: 1000, Inventory: 10}

func TestOrder_CashOnDeliveryAccepted(t *testing.T) {
	f := newStoreFixture(t, b1)

	order := f.submit(t, domain.PaymentMethodCashOnDelivery, 2)
	assert.Equal(t, domain.OrderStatusWaitingForAcceptance, order.Status)
	assert.Equal(t, int64(2000), order.TotalPrice)
	assert.Equal(t, 10, f.book(t).Inventory, "submission must not move stock")

	accepted, err := f.svc.AcceptOrder(context.Background(), admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusAccepted, accepted.Status)
	assert.Equal(t, order.Version+1, accepted.Version)

	book := f.book(t)
	assert.Equal(t, 8, book.Inventory)
	assert.Equal(t, int64(2), book.Purchases)

	_, err = f.svc.AcceptOrder(context.Background(), admin, order.ID)
	assert.ErrorIs(t, err, domain.ErrConsistencyData)
	assert.Equal(t, 8, f.book(t).Inventory)
}

func TestOrder_VNPayCallbacks(t *testing.T) {
	t.Run("Success accepts and commits stock", func(t *testing.T) {
		f := newStoreFixture(t, b1)
		order := f.submit(t, domain.PaymentMethodVNPay, 2)
		assert.Equal(t, domain.OrderStatusWaitingForPayment, order.Status)

		result, err := f.svc.HandlePaymentCallback(context.Background(), f.expectCallback(order, "00", 200000))
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusAccepted, result.Status)
		assert.Equal(t, "vnpay", result.LastModifiedBy)
		assert.Equal(t, 8, f.book(t).Inventory)

		// a replayed success callback must not decrement again
		_, err = f.svc.HandlePaymentCallback(context.Background(), f.expectCallback(order, "00", 200000))
		assert.ErrorIs(t, err, domain.ErrConsistencyData)
		assert.Equal(t, 8, f.book(t).Inventory)
		assert.Equal(t, int64(2), f.book(t).Purchases)
	})

	t.Run("Failure leaves stock untouched", func(t *testing.T) {
		f := newStoreFixture(t, b1)
		order := f.submit(t, domain.PaymentMethodVNPay, 2)

		result, err := f.svc.HandlePaymentCallback(context.Background(), f.expectCallback(order, "24", 200000))
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusPaymentFailed, result.Status)
		assert.Equal(t, 10, f.book(t).Inventory)
	})

	t.Run("Amount mismatch", func(t *testing.T) {
		f := newStoreFixture(t, b1)
		order := f.submit(t, domain.PaymentMethodVNPay, 2)

		_, err := f.svc.HandlePaymentCallback(context.Background(), f.expectCallback(order, "00", 100))
		assert.ErrorIs(t, err, domain.ErrConsistencyData)

		stored, err := f.repo.ReadOrder(context.Background(), order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusWaitingForPayment, stored.Status)
		assert.Equal(t, 10, f.book(t).Inventory)
	})

	t.Run("Held payment changes nothing", func(t *testing.T) {
		f := newStoreFixture(t, b1)
		order := f.submit(t, domain.PaymentMethodVNPay, 2)

		result, err := f.svc.HandlePaymentCallback(context.Background(), f.expectCallback(order, "07", 200000))
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusWaitingForPayment, result.Status)
		assert.Equal(t, order.Version, result.Version)
	})

	t.Run("Success for cash order is rejected", func(t *testing.T) {
		f := newStoreFixture(t, b1)
		order := f.submit(t, domain.PaymentMethodCashOnDelivery, 2)

		_, err := f.svc.HandlePaymentCallback(context.Background(), f.expectCallback(order, "00", 200000))
		assert.ErrorIs(t, err, domain.ErrConsistencyData)
		assert.Equal(t, 10, f.book(t).Inventory)
	})
}

func TestOrder_AcceptInsufficientInventory(t *testing.T) {
	f := newStoreFixture(t, domain.Book{ISBN: "B1", Title: "Go", Author: "Gopher", Price: 1000, Inventory: 3})

	first := f.submit(t, domain.PaymentMethodCashOnDelivery, 2)
	second := f.submit(t, domain.PaymentMethodCashOnDelivery, 2)

	_, err := f.svc.AcceptOrder(context.Background(), admin, first.ID)
	require.NoError(t, err)

	_, err = f.svc.AcceptOrder(context.Background(), admin, second.ID)
	var insufficient *domain.InsufficientInventoryError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "B1", insufficient.ISBN)

	stored, err := f.repo.ReadOrder(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusWaitingForAcceptance, stored.Status)
	assert.Equal(t, 1, f.book(t).Inventory)
}

func TestOrder_ConcurrentAcceptance(t *testing.T) {
	f := newStoreFixture(t, b1)
	order := f.submit(t, domain.PaymentMethodCashOnDelivery, 2)

	const attempts = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AcceptOrder(context.Background(), admin, order.ID)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.True(t,
				errors.Is(err, domain.ErrConcurrentUpdate) || errors.Is(err, domain.ErrConsistencyData),
				"unexpected error: %v", err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 8, f.book(t).Inventory)
	assert.Equal(t, int64(2), f.book(t).Purchases)
}

func TestOrder_ConcurrentOrdersShareStock(t *testing.T) {
	f := newStoreFixture(t, domain.Book{ISBN: "B1", Title: "Go", Author: "Gopher", Price: 1000, Inventory: 5})

	orders := make([]*domain.Order, 0, 5)
	for i := 0; i < 5; i++ {
		orders = append(orders, f.submit(t, domain.PaymentMethodCashOnDelivery, 2))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for _, o := range orders {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := f.svc.AcceptOrder(context.Background(), admin, id)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrInsufficientInventory)
		}(o.ID)
	}
	wg.Wait()

	book := f.book(t)
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 1, book.Inventory)
	assert.Equal(t, int64(4), book.Purchases)
}

func TestOrder_Cancel(t *testing.T) {
	f := newStoreFixture(t, b1)
	order := f.submit(t, domain.PaymentMethodVNPay, 1)

	_, err := f.svc.CancelOrder(context.Background(), &domain.User{Username: "bob", Role: domain.RoleCustomer}, order.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	cancelled, err := f.svc.CancelOrder(context.Background(), alice, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)

	_, err = f.svc.CancelOrder(context.Background(), alice, order.ID)
	assert.ErrorIs(t, err, domain.ErrConsistencyData)
}

func TestOrder_GuestOTP(t *testing.T) {
	f := newStoreFixture(t, b1)

	submitted, err := f.svc.SubmitOrder(context.Background(), port.SubmitOrderRequest{
		LineItems:     []domain.LineItemRequest{{ISBN: "B1", Quantity: 1}},
		Customer:      testCustomer(t),
		PaymentMethod: domain.PaymentMethodCashOnDelivery,
	})
	require.NoError(t, err)
	require.Len(t, submitted.OTP, 6)
	assert.Equal(t, domain.GuestUsername, submitted.Order.CreatedBy)
	assert.NotEqual(t, submitted.OTP, submitted.Order.OTPHash)
	require.NotNil(t, submitted.Order.OTPExpiresAt)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), *submitted.Order.OTPExpiresAt, time.Minute)

	found, err := f.svc.GetGuestOrder(context.Background(), submitted.Order.ID, submitted.OTP)
	require.NoError(t, err)
	assert.Equal(t, "Nguyen Van A", found.Customer.FullName())

	_, err = f.svc.GetGuestOrder(context.Background(), submitted.Order.ID, "not-it")
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)

	registered := f.submit(t, domain.PaymentMethodCashOnDelivery, 1)
	_, err = f.svc.GetGuestOrder(context.Background(), registered.ID, submitted.OTP)
	assert.ErrorIs(t, err, domain.ErrDataNotFound)
}

func TestOrder_ListPaged(t *testing.T) {
	f := newStoreFixture(t, b1)
	for i := 0; i < 3; i++ {
		f.submit(t, domain.PaymentMethodCashOnDelivery, 1)
	}

	first, err := f.svc.ListOrders(context.Background(), alice, domain.Page{Page: 0, Size: 2})
	require.NoError(t, err)
	assert.Len(t, first, 2)

	second, err := f.svc.ListOrders(context.Background(), alice, domain.Page{Page: 1, Size: 2})
	require.NoError(t, err)
	assert.Len(t, second, 1)

	none, err := f.svc.ListOrders(context.Background(), &domain.User{Username: "bob"}, domain.Page{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

// mapCache keeps values in memory and ignores ttl.
type mapCache struct {
	mu     sync.Mutex
	values map[string]string
}

func (c *mapCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *mapCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key], nil
}

func (c *mapCache) GenerateKey(operation, key string) string {
	return operation + ":" + key
}

func TestOrder_PaymentURLFollowsOrderStatus(t *testing.T) {
	f := newStoreFixture(t, b1)
	svc, err := service.NewService(f.repo, f.gateway, &mapCache{values: map[string]string{}},
		broker.NewLogPublisher(zap.NewNop()), zap.NewNop())
	require.NoError(t, err)

	order := f.submit(t, domain.PaymentMethodVNPay, 1)
	f.gateway.EXPECT().PaymentURL(gomock.Any(), "10.0.0.1", gomock.Any()).
		Return("https://pay.example/"+order.ID.String(), time.Now().Add(15*time.Minute), nil).
		Times(1)

	first, err := svc.PaymentURL(context.Background(), alice, order.ID, "", "10.0.0.1")
	require.NoError(t, err)
	second, err := svc.PaymentURL(context.Background(), alice, order.ID, "", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = svc.CancelOrder(context.Background(), alice, order.ID)
	require.NoError(t, err)

	paymentURL, err := svc.PaymentURL(context.Background(), alice, order.ID, "", "10.0.0.1")
	assert.ErrorIs(t, err, domain.ErrConsistencyData)
	assert.Empty(t, paymentURL)
}

func TestOrder_GuestPaymentURL(t *testing.T) {
	f := newStoreFixture(t, b1)

	submitted, err := f.svc.SubmitOrder(context.Background(), port.SubmitOrderRequest{
		LineItems:     []domain.LineItemRequest{{ISBN: "B1", Quantity: 1}},
		Customer:      testCustomer(t),
		PaymentMethod: domain.PaymentMethodVNPay,
	})
	require.NoError(t, err)
	id := submitted.Order.ID

	f.gateway.EXPECT().PaymentURL(gomock.Any(), "10.0.0.1", gomock.Any()).
		Return("https://pay.example/"+id.String(), time.Now().Add(15*time.Minute), nil)

	paymentURL, err := f.svc.PaymentURL(context.Background(), nil, id, submitted.OTP, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/"+id.String(), paymentURL)

	_, err = f.svc.PaymentURL(context.Background(), nil, id, "000000x", "10.0.0.1")
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)

	_, err = f.svc.PaymentURL(context.Background(), alice, id, "", "10.0.0.1")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	registered := f.submit(t, domain.PaymentMethodVNPay, 1)
	_, err = f.svc.PaymentURL(context.Background(), nil, registered.ID, submitted.OTP, "10.0.0.1")
	assert.ErrorIs(t, err, domain.ErrDataNotFound)
}

func TestOrder_MergedQuantityOverflow(t *testing.T) {
	f := newStoreFixture(t, domain.Book{ISBN: "B1", Title: "Go", Author: "Gopher", Price: 1000, Inventory: 5})

	tests := []struct {
		name  string
		items []domain.LineItemRequest
	}{
		{
			name:  "Sum wraps around",
			items: []domain.LineItemRequest{{ISBN: "B1", Quantity: math.MaxInt/2 + 1}, {ISBN: "B1", Quantity: math.MaxInt/2 + 1}},
		},
		{
			name:  "Sum above bound",
			items: []domain.LineItemRequest{{ISBN: "B1", Quantity: domain.MaxLineItemQuantity}, {ISBN: "B1", Quantity: 1}},
		},
		{
			name:  "Single item above bound",
			items: []domain.LineItemRequest{{ISBN: "B1", Quantity: math.MaxInt}},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := f.svc.SubmitOrder(context.Background(), port.SubmitOrderRequest{
				LineItems:     test.items,
				PaymentMethod: domain.PaymentMethodCashOnDelivery,
				User:          alice,
			})
			assert.ErrorIs(t, err, domain.ErrBadRequest)
		})
	}

	list, err := f.svc.ListOrders(context.Background(), alice, domain.Page{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, 5, f.book(t).Inventory)
	assert.Zero(t, f.book(t).Purchases)
}

func TestOrder_ListFarPage(t *testing.T) {
	f := newStoreFixture(t, b1)
	f.submit(t, domain.PaymentMethodCashOnDelivery, 1)

	list, err := f.svc.ListOrders(context.Background(), alice, domain.Page{Page: 1 << 62, Size: 2})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOrder_HyphenatedISBN(t *testing.T) {
	f := newStoreFixture(t)

	created, err := f.svc.CreateBook(context.Background(), &domain.Book{
		ISBN: "978-0-306-40615-7", Title: "Signals", Author: "Parker", Price: 1000, Inventory: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "9780306406157", created.ISBN)

	found, err := f.svc.GetBook(context.Background(), "978-0-306-40615-7")
	require.NoError(t, err)
	assert.Equal(t, created.ISBN, found.ISBN)

	submitted, err := f.svc.SubmitOrder(context.Background(), port.SubmitOrderRequest{
		LineItems: []domain.LineItemRequest{
			{ISBN: "978-0-306-40615-7", Quantity: 1},
			{ISBN: "978 0306406157", Quantity: 1},
		},
		PaymentMethod: domain.PaymentMethodCashOnDelivery,
		User:          alice,
	})
	require.NoError(t, err)
	require.Len(t, submitted.Order.LineItems, 1)
	assert.Equal(t, "9780306406157", submitted.Order.LineItems[0].ISBN)
	assert.Equal(t, 2, submitted.Order.LineItems[0].Quantity)
}
