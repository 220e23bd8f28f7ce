package port

import "github.com/bookstore/orderservice/internal/core/domain"

//go:generate mockgen -source=event.go -destination=mock/event.go -package=mock
type OrderEventPublisher interface {
	PublishOrderEvent(event domain.OrderEvent)
}
