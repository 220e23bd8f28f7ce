package service_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bookstore/orderservice/internal/adapter/cache"
	"github.com/bookstore/orderservice/internal/adapter/client/broker"
	"github.com/bookstore/orderservice/internal/adapter/storage/memory"
	"github.com/bookstore/orderservice/internal/core/domain"
	"github.com/bookstore/orderservice/internal/core/port"
	"github.com/bookstore/orderservice/internal/core/service"
	"github.com/cucumber/godog"
	"go.uber.org/zap"
)

// echoGateway trusts every callback and reads it straight from the query.
type echoGateway struct{}

func (echoGateway) PaymentURL(order *domain.Order, _ string, now time.Time) (string, time.Time, error) {
	return "https://pay.example/" + order.ID.String(), now.Add(15 * time.Minute), nil
}

func (echoGateway) ParseCallback(query url.Values) (*domain.PaymentCallback, error) {
	amount, err := strconv.ParseInt(query.Get("vnp_Amount"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: vnp_Amount", domain.ErrBadRequest)
	}
	return &domain.PaymentCallback{
		OrderRef:     query.Get("vnp_TxnRef"),
		ResponseCode: query.Get("vnp_ResponseCode"),
		Amount:       amount,
	}, nil
}

func (echoGateway) VerifyCallback(url.Values) error { return nil }

type lifecycleContext struct {
	repo   *memory.Repository
	svc    *service.Service
	orders []*domain.Order
	err    error

	accepted int
}

func (c *lifecycleContext) reset() error {
	c.repo = memory.NewRepository()
	svc, err := service.NewService(c.repo, echoGateway{}, cache.NewNoopCache(),
		broker.NewLogPublisher(zap.NewNop()), zap.NewNop())
	if err != nil {
		return err
	}
	c.svc = svc
	c.orders = nil
	c.err = nil
	c.accepted = 0
	return nil
}

func (c *lifecycleContext) lastOrder() (*domain.Order, error) {
	if len(c.orders) == 0 {
		return nil, errors.New("no order was submitted")
	}
	return c.orders[len(c.orders)-1], nil
}

func (c *lifecycleContext) bookWithInventoryAndPrice(isbn string, inventory int, price int64) error {
	_, err := c.repo.CreateBook(context.Background(), &domain.Book{
		ISBN: isbn, Title: isbn, Author: "anonymous", Price: price, Inventory: inventory,
	})
	return err
}

func (c *lifecycleContext) customerSubmitsAnOrder(username string, quantity int, isbn, method string) error {
	submitted, err := c.svc.SubmitOrder(context.Background(), port.SubmitOrderRequest{
		LineItems:     []domain.LineItemRequest{{ISBN: isbn, Quantity: quantity}},
		PaymentMethod: domain.PaymentMethod(method),
		User:          &domain.User{Username: username, Role: domain.RoleCustomer},
	})
	c.err = err
	if err == nil {
		c.orders = append(c.orders, submitted.Order)
	}
	return nil
}

func (c *lifecycleContext) anOperatorAcceptsTheOrder() error {
	order, err := c.lastOrder()
	if err != nil {
		return err
	}
	accepted, err := c.svc.AcceptOrder(context.Background(), admin, order.ID)
	c.err = err
	if err == nil {
		c.orders[len(c.orders)-1] = accepted
	}
	return nil
}

func (c *lifecycleContext) anOperatorAcceptsBothOrdersConcurrently() error {
	if len(c.orders) < 2 {
		return errors.New("two orders are needed")
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var unexpected error
	for _, o := range c.orders[len(c.orders)-2:] {
		wg.Add(1)
		go func(o *domain.Order) {
			defer wg.Done()
			_, err := c.svc.AcceptOrder(context.Background(), admin, o.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				c.accepted++
			case !errors.Is(err, domain.ErrInsufficientInventory):
				unexpected = err
			}
		}(o)
	}
	wg.Wait()
	return unexpected
}

func (c *lifecycleContext) theGatewayReportsCode(code string) error {
	order, err := c.lastOrder()
	if err != nil {
		return err
	}
	query := url.Values{
		"vnp_TxnRef":       {order.ID.String()},
		"vnp_ResponseCode": {code},
		"vnp_Amount":       {strconv.FormatInt(order.TotalPrice*100, 10)},
	}
	updated, err := c.svc.HandlePaymentCallback(context.Background(), query)
	c.err = err
	if err == nil {
		c.orders[len(c.orders)-1] = updated
	}
	return nil
}

func (c *lifecycleContext) theOrderTotalIs(total int64) error {
	order, err := c.lastOrder()
	if err != nil {
		return err
	}
	if order.TotalPrice != total {
		return fmt.Errorf("expected total %d, got %d", total, order.TotalPrice)
	}
	return nil
}

func (c *lifecycleContext) theOrderStatusIs(status string) error {
	if c.err != nil {
		return fmt.Errorf("expected success but got: %v", c.err)
	}
	order, err := c.lastOrder()
	if err != nil {
		return err
	}
	if string(order.Status) != status {
		return fmt.Errorf("expected status %s, got %s", status, order.Status)
	}
	return nil
}

func (c *lifecycleContext) theStoredOrderStatusIs(status string) error {
	order, err := c.lastOrder()
	if err != nil {
		return err
	}
	stored, err := c.repo.ReadOrder(context.Background(), order.ID)
	if err != nil {
		return err
	}
	if string(stored.Status) != status {
		return fmt.Errorf("expected stored status %s, got %s", status, stored.Status)
	}
	return nil
}

func (c *lifecycleContext) bookHasInventoryAndPurchases(isbn string, inventory int, purchases int64) error {
	book, err := c.repo.ReadBook(context.Background(), isbn)
	if err != nil {
		return err
	}
	if book.Inventory != inventory || book.Purchases != purchases {
		return fmt.Errorf("expected inventory %d and purchases %d, got %d and %d",
			inventory, purchases, book.Inventory, book.Purchases)
	}
	return nil
}

func (c *lifecycleContext) theRequestFailsWithInsufficientInventoryOf(isbn string) error {
	var insufficient *domain.InsufficientInventoryError
	if !errors.As(c.err, &insufficient) {
		return fmt.Errorf("expected insufficient inventory, got %v", c.err)
	}
	if insufficient.ISBN != isbn {
		return fmt.Errorf("expected book %s, got %s", isbn, insufficient.ISBN)
	}
	return nil
}

func (c *lifecycleContext) theRequestFailsWith(message string) error {
	if c.err == nil {
		return errors.New("expected the request to fail but it succeeded")
	}
	if !strings.Contains(c.err.Error(), message) {
		return fmt.Errorf("expected error containing %q, got %q", message, c.err.Error())
	}
	return nil
}

func (c *lifecycleContext) customerHasOrders(username string, count int) error {
	list, err := c.svc.ListOrders(context.Background(),
		&domain.User{Username: username, Role: domain.RoleCustomer}, domain.Page{})
	if err != nil {
		return err
	}
	if len(list) != count {
		return fmt.Errorf("expected %d orders, got %d", count, len(list))
	}
	return nil
}

func (c *lifecycleContext) exactlyAcceptancesSucceed(count int) error {
	if c.accepted != count {
		return fmt.Errorf("expected %d acceptances, got %d", count, c.accepted)
	}
	return nil
}

func initializeLifecycleScenario(ctx *godog.ScenarioContext) {
	tc := &lifecycleContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		return ctx, tc.reset()
	})

	ctx.Step(`^book "([^"]*)" with inventory (\d+) and price (\d+)$`, tc.bookWithInventoryAndPrice)

	ctx.Step(`^customer "([^"]*)" submits an order for (\d+) of "([^"]*)" paying "([^"]*)"$`, tc.customerSubmitsAnOrder)
	ctx.Step(`^an operator accepts the order$`, tc.anOperatorAcceptsTheOrder)
	ctx.Step(`^an operator accepts both orders concurrently$`, tc.anOperatorAcceptsBothOrdersConcurrently)
	ctx.Step(`^the gateway reports code "([^"]*)" for the order$`, tc.theGatewayReportsCode)

	ctx.Step(`^the order total is (\d+)$`, tc.theOrderTotalIs)
	ctx.Step(`^the order status is "([^"]*)"$`, tc.theOrderStatusIs)
	ctx.Step(`^the stored order status is "([^"]*)"$`, tc.theStoredOrderStatusIs)
	ctx.Step(`^book "([^"]*)" has inventory (\d+) and purchases (\d+)$`, tc.bookHasInventoryAndPurchases)
	ctx.Step(`^the request fails with insufficient inventory of "([^"]*)"$`, tc.theRequestFailsWithInsufficientInventoryOf)
	ctx.Step(`^the request fails with "([^"]*)"$`, tc.theRequestFailsWith)
	ctx.Step(`^customer "([^"]*)" has (\d+) orders$`, tc.customerHasOrders)
	ctx.Step(`^exactly (\d+) acceptances? succeeds?$`, tc.exactlyAcceptancesSucceed)
}

func TestOrderLifecycleFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeLifecycleScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
