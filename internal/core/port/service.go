package port

import (
	"context"
	"net/url"

	"github.com/bookstore/orderservice/internal/core/domain"
	"github.com/google/uuid"
)

type SubmitOrderRequest struct {
	LineItems     []domain.LineItemRequest
	Customer      *domain.CustomerInfo
	PaymentMethod domain.PaymentMethod
	// User is nil for guest submissions.
	User *domain.User
}

type SubmittedOrder struct {
	Order *domain.Order
	// OTP is only set for guest orders and is never stored in clear.
	OTP string
}

type OrderService interface {
	SubmitOrder(ctx context.Context, req SubmitOrderRequest) (*SubmittedOrder, error)
	GetOrder(ctx context.Context, user *domain.User, orderID uuid.UUID) (*domain.Order, error)
	GetGuestOrder(ctx context.Context, orderID uuid.UUID, otp string) (*domain.Order, error)
	ListOrders(ctx context.Context, user *domain.User, page domain.Page) ([]*domain.Order, error)

	AcceptOrder(ctx context.Context, user *domain.User, orderID uuid.UUID) (*domain.Order, error)
	CancelOrder(ctx context.Context, user *domain.User, orderID uuid.UUID) (*domain.Order, error)

	// PaymentURL is open to the order owner, or to a guest presenting the order passcode.
	PaymentURL(ctx context.Context, user *domain.User, orderID uuid.UUID, otp, clientIP string) (string, error)
	HandlePaymentCallback(ctx context.Context, query url.Values) (*domain.Order, error)
}

type CatalogService interface {
	CreateBook(ctx context.Context, book *domain.Book) (*domain.Book, error)
	GetBook(ctx context.Context, isbn string) (*domain.Book, error)
}
