package e2etest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bookstore/orderservice/internal/adapter/cache"
	"github.com/bookstore/orderservice/internal/adapter/client/broker"
	"github.com/bookstore/orderservice/internal/adapter/config"
	"github.com/bookstore/orderservice/internal/adapter/storage"
	"github.com/bookstore/orderservice/internal/adapter/storage/repository"
	"github.com/bookstore/orderservice/internal/core/domain"
	"github.com/bookstore/orderservice/internal/core/port"
	"github.com/bookstore/orderservice/internal/core/port/mock"
	"github.com/bookstore/orderservice/internal/core/service"
	"github.com/bookstore/orderservice/internal/e2etest/testdb"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var dbtest *testdb.TestDBInstance

func TestMain(m *testing.M) {
	var err error
	dbtest, err = testdb.NewTestDBInstance()
	if err != nil && !errors.Is(err, testdb.ErrNoDatabase) {
		log.Fatal(err)
	}

	code := m.Run()

	if dbtest != nil {
		if err := dbtest.Down(); err != nil {
			log.Print(err)
		}
	}
	os.Exit(code)
}

func getRepo(t *testing.T) *repository.Repository {
	t.Helper()
	if dbtest == nil {
		t.Skip("no test database configured")
	}

	ctx := context.Background()
	db, err := storage.NewDBStorage(ctx, &config.Database{DSN: dbtest.DSN})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.RunMigrations())
	require.NoError(t, dbtest.Truncate(ctx))

	repo, err := repository.NewRepository(db)
	require.NoError(t, err)
	return repo
}

func newService(t *testing.T, repo port.Repository, gateway port.PaymentGateway) *service.Service {
	t.Helper()
	if gateway == nil {
		gateway = mock.NewMockPaymentGateway(gomock.NewController(t))
	}
	s, err := service.NewService(repo, gateway, cache.NewNoopCache(),
		broker.NewLogPublisher(zap.NewNop()), zap.NewNop())
	require.NoError(t, err)
	return s
}

var (
	alice = &domain.User{Username: "alice", Role: domain.RoleCustomer}
	admin = &domain.User{Username: "root", Role: domain.RoleAdmin}
)

func createBook(t *testing.T, repo port.Repository, isbn string, inventory int) {
	t.Helper()
	_, err := repo.CreateBook(context.Background(), &domain.Book{
		ISBN: isbn, Title: "Title " + isbn, Author: "Author", Price: 1000, Inventory: inventory,
	})
	require.NoError(t, err)
}

func TestServiceDB_Books(t *testing.T) {
	repo := getRepo(t)
	s := newService(t, repo, nil)
	ctx := context.Background()

	book, err := s.CreateBook(ctx, &domain.Book{
		ISBN: "978-0-306-40615-7", Title: "Go", Author: "Gopher", Price: 1500, Inventory: 4,
	})
	require.NoError(t, err)
	assert.NotZero(t, book.ID)

	_, err = s.CreateBook(ctx, &domain.Book{ISBN: "9780306406157", Title: "Go", Author: "Gopher", Price: 1})
	assert.ErrorIs(t, err, domain.ErrConflictingData)

	found, err := s.GetBook(ctx, "9780306406157")
	require.NoError(t, err)
	assert.Equal(t, 4, found.Inventory)
	assert.Equal(t, int64(1500), found.Price)

	_, err = s.GetBook(ctx, "0000000000")
	assert.ErrorIs(t, err, domain.ErrDataNotFound)
}

func TestServiceDB_SubmitAndAccept(t *testing.T) {
	repo := getRepo(t)
	s := newService(t, repo, nil)
	ctx := context.Background()
	createBook(t, repo, "B1", 5)

	customer, err := domain.NewCustomerInfo("Nguyen Van A", "", "0901234567", "1 Le Loi")
	require.NoError(t, err)

	submitted, err := s.SubmitOrder(ctx, port.SubmitOrderRequest{
		LineItems:     []domain.LineItemRequest{{ISBN: "B1", Quantity: 2}},
		Customer:      customer,
		PaymentMethod: domain.PaymentMethodCashOnDelivery,
		User:          alice,
	})
	require.NoError(t, err)

	stored, err := s.GetOrder(ctx, alice, submitted.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), stored.TotalPrice)
	assert.Equal(t, domain.OrderStatusWaitingForAcceptance, stored.Status)
	assert.NoError(t, stored.CheckTotal())
	require.NotNil(t, stored.Customer)
	assert.Equal(t, "0901234567", stored.Customer.Phone())

	accepted, err := s.AcceptOrder(ctx, admin, submitted.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusAccepted, accepted.Status)
	assert.Equal(t, stored.Version+1, accepted.Version)

	book, err := repo.ReadBook(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, 3, book.Inventory)
	assert.Equal(t, int64(2), book.Purchases)

	_, err = s.AcceptOrder(ctx, admin, submitted.Order.ID)
	assert.ErrorIs(t, err, domain.ErrConsistencyData)

	_, err = s.SubmitOrder(ctx, port.SubmitOrderRequest{
		LineItems:     []domain.LineItemRequest{{ISBN: "B1", Quantity: 10}},
		PaymentMethod: domain.PaymentMethodCashOnDelivery,
		User:          alice,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientInventory)

	list, err := s.ListOrders(ctx, alice, domain.Page{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestServiceDB_ConcurrentAcceptance(t *testing.T) {
	repo := getRepo(t)
	s := newService(t, repo, nil)
	ctx := context.Background()
	createBook(t, repo, "B1", 5)

	ids := make([]*domain.Order, 0, 2)
	for i := 0; i < 2; i++ {
		submitted, err := s.SubmitOrder(ctx, port.SubmitOrderRequest{
			LineItems:     []domain.LineItemRequest{{ISBN: "B1", Quantity: 3}},
			PaymentMethod: domain.PaymentMethodCashOnDelivery,
			User:          alice,
		})
		require.NoError(t, err)
		ids = append(ids, submitted.Order)
	}

	var wg sync.WaitGroup
	results := make([]error, len(ids))
	for i, o := range ids {
		i, o := i, o
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = s.AcceptOrder(ctx, admin, o.ID)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInsufficientInventory)
	}
	assert.Equal(t, 1, succeeded)

	book, err := repo.ReadBook(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, 2, book.Inventory)
	assert.Equal(t, int64(3), book.Purchases)
}

func TestServiceDB_PaymentCallback(t *testing.T) {
	repo := getRepo(t)
	gateway := mock.NewMockPaymentGateway(gomock.NewController(t))
	s := newService(t, repo, gateway)
	ctx := context.Background()
	createBook(t, repo, "B1", 5)

	submitted, err := s.SubmitOrder(ctx, port.SubmitOrderRequest{
		LineItems:     []domain.LineItemRequest{{ISBN: "B1", Quantity: 2}},
		PaymentMethod: domain.PaymentMethodVNPay,
		User:          alice,
	})
	require.NoError(t, err)
	order := submitted.Order

	callback := func(code string) url.Values {
		q := url.Values{"vnp_TxnRef": {order.ID.String()}, "vnp_ResponseCode": {code}}
		gateway.EXPECT().ParseCallback(q).Return(&domain.PaymentCallback{
			OrderRef:      order.ID.String(),
			ResponseCode:  code,
			Amount:        order.TotalPrice * 100,
			TransactionNo: strconv.Itoa(int(time.Now().Unix())),
		}, nil)
		gateway.EXPECT().VerifyCallback(q).Return(nil)
		return q
	}

	accepted, err := s.HandlePaymentCallback(ctx, callback("00"))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusAccepted, accepted.Status)
	assert.Equal(t, "vnpay", accepted.LastModifiedBy)

	_, err = s.HandlePaymentCallback(ctx, callback("00"))
	assert.ErrorIs(t, err, domain.ErrConsistencyData)

	book, err := repo.ReadBook(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, 3, book.Inventory, fmt.Sprintf("book %+v", book))
}
