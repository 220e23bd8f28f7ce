package domain

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusWaitingForPayment    OrderStatus = "WAITING_FOR_PAYMENT"
	OrderStatusWaitingForAcceptance OrderStatus = "WAITING_FOR_ACCEPTANCE"
	OrderStatusAccepted             OrderStatus = "ACCEPTED"
	OrderStatusPaymentFailed        OrderStatus = "PAYMENT_FAILED"
	OrderStatusCancelled            OrderStatus = "CANCELLED"
)

type PaymentMethod string

const (
	PaymentMethodCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
	PaymentMethodVNPay          PaymentMethod = "VNPAY"
)

// RequiresGateway reports whether orders paid this way wait for a gateway callback.
func (m PaymentMethod) RequiresGateway() bool {
	return m == PaymentMethodVNPay
}

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCashOnDelivery || m == PaymentMethodVNPay
}

// GuestUsername owns orders submitted without an authenticated principal.
const GuestUsername = "guest"

type Order struct {
	ID            uuid.UUID
	TotalPrice    int64
	Status        OrderStatus
	PaymentMethod PaymentMethod
	LineItems     []LineItem
	Customer      *CustomerInfo

	OTPHash      string
	OTPExpiresAt *time.Time

	CreatedAt      time.Time
	CreatedBy      string
	LastModifiedAt time.Time
	LastModifiedBy string
	Version        int
}

// NewOrder assembles a consistent, not yet persisted order from priced line items.
func NewOrder(items []LineItem, customer *CustomerInfo, method PaymentMethod,
	actor string, now time.Time) *Order {
	order := &Order{
		ID:             uuid.New(),
		PaymentMethod:  method,
		Customer:       customer,
		CreatedAt:      now,
		CreatedBy:      actor,
		LastModifiedAt: now,
		LastModifiedBy: actor,
	}

	if method.RequiresGateway() {
		order.Status = OrderStatusWaitingForPayment
	} else {
		order.Status = OrderStatusWaitingForAcceptance
	}

	order.LineItems = make([]LineItem, 0, len(items))
	for _, item := range items {
		item.OrderID = order.ID
		order.LineItems = append(order.LineItems, item)
	}
	order.TotalPrice = order.computeTotal()

	return order
}

func (o *Order) computeTotal() int64 {
	var total int64
	for _, item := range o.LineItems {
		total += item.TotalPrice()
	}
	return total
}

// CheckTotal verifies the stored total against the line items.
func (o *Order) CheckTotal() error {
	if total := o.computeTotal(); total != o.TotalPrice {
		return fmt.Errorf("%w: order %s total %d, line items sum to %d",
			ErrConsistencyData, o.ID, o.TotalPrice, total)
	}
	return nil
}

// Require fails with ErrConsistencyData unless the order is in one of the given statuses.
func (o *Order) Require(eligible ...OrderStatus) error {
	if slices.Contains(eligible, o.Status) {
		return nil
	}
	return fmt.Errorf("%w: order %s is %s, expected one of %v",
		ErrConsistencyData, o.ID, o.Status, eligible)
}

func (o *Order) transition(to OrderStatus, actor string, now time.Time) {
	o.Status = to
	o.LastModifiedAt = now
	o.LastModifiedBy = actor
}

// Accept marks the order accepted. Inventory must already be committed by the caller.
func (o *Order) Accept(actor string, now time.Time, eligible ...OrderStatus) error {
	if err := o.Require(eligible...); err != nil {
		return err
	}
	o.transition(OrderStatusAccepted, actor, now)
	return nil
}

func (o *Order) FailPayment(actor string, now time.Time) error {
	if err := o.Require(OrderStatusWaitingForPayment); err != nil {
		return err
	}
	o.transition(OrderStatusPaymentFailed, actor, now)
	return nil
}

func (o *Order) Cancel(actor string, now time.Time) error {
	if err := o.Require(OrderStatusWaitingForPayment, OrderStatusWaitingForAcceptance); err != nil {
		return err
	}
	o.transition(OrderStatusCancelled, actor, now)
	return nil
}

// OTPValid reports whether a guest passcode may still be used at the given time.
func (o *Order) OTPValid(now time.Time) bool {
	return o.OTPHash != "" && o.OTPExpiresAt != nil && now.Before(*o.OTPExpiresAt)
}

type LineItem struct {
	OrderID  uuid.UUID
	ISBN     string
	Quantity int
	Price    int64
}

// MaxLineItemQuantity bounds a single line item after duplicates are merged.
const MaxLineItemQuantity = 10_000

func (li LineItem) TotalPrice() int64 {
	return int64(li.Quantity) * li.Price
}

func (li LineItem) Validate() error {
	if li.Quantity <= 0 || li.Quantity > MaxLineItemQuantity {
		return fmt.Errorf("%w: quantity of %s must be between 1 and %d",
			ErrBadRequest, li.ISBN, MaxLineItemQuantity)
	}
	return nil
}

// LineItemRequest is a raw (isbn, quantity) pair from a client.
type LineItemRequest struct {
	ISBN     string
	Quantity int
}

type Page struct {
	Page int
	Size int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// MaxPage keeps Page*Size within an int.
	MaxPage = math.MaxInt32 / MaxPageSize
)

// Normalize clamps the page into a usable range.
func (p Page) Normalize() Page {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset is only meaningful on a normalized page.
func (p Page) Offset() uint64 {
	n := p.Normalize()
	return uint64(n.Page) * uint64(n.Size)
}
