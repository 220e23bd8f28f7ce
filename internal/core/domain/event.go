package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderEventType string

const (
	OrderEventSubmitted     OrderEventType = "order.submitted"
	OrderEventAccepted      OrderEventType = "order.accepted"
	OrderEventPaymentFailed OrderEventType = "order.payment_failed"
	OrderEventCancelled     OrderEventType = "order.cancelled"
)

// OrderEvent is published after an order transaction commits.
type OrderEvent struct {
	Type       OrderEventType `json:"type"`
	OrderID    uuid.UUID      `json:"order_id"`
	Status     OrderStatus    `json:"status"`
	TotalPrice int64          `json:"total_price"`
	Owner      string         `json:"owner"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func NewOrderEvent(t OrderEventType, o *Order) OrderEvent {
	return OrderEvent{
		Type:       t,
		OrderID:    o.ID,
		Status:     o.Status,
		TotalPrice: o.TotalPrice,
		Owner:      o.CreatedBy,
		OccurredAt: o.LastModifiedAt,
	}
}
