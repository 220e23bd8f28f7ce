package port

import (
	"net/url"
	"time"

	"github.com/bookstore/orderservice/internal/core/domain"
)

//go:generate mockgen -source=payment.go -destination=mock/payment.go -package=mock
type PaymentGateway interface {
	// PaymentURL builds the redirect to the gateway payment page and the time it stops being valid.
	PaymentURL(order *domain.Order, clientIP string, now time.Time) (string, time.Time, error)
	ParseCallback(query url.Values) (*domain.PaymentCallback, error)
	VerifyCallback(query url.Values) error
}
