package broker

import (
	"github.com/bookstore/orderservice/internal/core/domain"
	"go.uber.org/zap"
)

// LogPublisher only records events; it stands in when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: log}
}

func (p *LogPublisher) PublishOrderEvent(event domain.OrderEvent) {
	p.logger.Info("order event",
		zap.String("type", string(event.Type)),
		zap.Stringer("order", event.OrderID),
		zap.String("status", string(event.Status)))
}
