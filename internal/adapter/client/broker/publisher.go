package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bookstore/orderservice/internal/adapter/config"
	"github.com/bookstore/orderservice/internal/core/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	queueSize      = 64
	maxAttempts    = 5
	defaultRetry   = 3 * time.Second
	publishTimeout = 5 * time.Second
)

// Channel is the part of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool,
		msg amqp.Publishing) error
}

type pending struct {
	event   domain.OrderEvent
	attempt int
}

// Publisher sends order events to a topic exchange from a pool of workers so
// that request handlers never wait on the broker.
type Publisher struct {
	logger     *zap.Logger
	channel    Channel
	exchange   string
	queue      chan pending
	retryAfter time.Duration
	closeFn    func()
}

func NewPublisher(cfg *config.Broker, log *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open broker channel: %w", err)
	}
	err = ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	p := NewPublisherWithChannel(ch, cfg.Exchange, defaultRetry, log)
	p.closeFn = func() {
		_ = ch.Close()
		_ = conn.Close()
	}
	return p, nil
}

func NewPublisherWithChannel(ch Channel, exchange string, retryAfter time.Duration, log *zap.Logger) *Publisher {
	return &Publisher{
		logger:     log,
		channel:    ch,
		exchange:   exchange,
		queue:      make(chan pending, queueSize),
		retryAfter: retryAfter,
		closeFn:    func() {},
	}
}

func (p *Publisher) PublishOrderEvent(event domain.OrderEvent) {
	p.enqueue(pending{event: event})
}

func (p *Publisher) enqueue(msg pending) {
	select {
	case p.queue <- msg:
		p.logger.Debug("event queued",
			zap.String("type", string(msg.event.Type)), zap.Stringer("order", msg.event.OrderID))
	default:
		p.logger.Error("event queue is full, event dropped",
			zap.String("type", string(msg.event.Type)), zap.Stringer("order", msg.event.OrderID))
	}
}

// Start runs the publishing workers until ctx is cancelled.
func (p *Publisher) Start(ctx context.Context, workers int) {
	for i := 0; i < workers; i++ {
		go func() {
			for {
				select {
				case msg := <-p.queue:
					p.process(ctx, msg)
				case <-ctx.Done():
					p.logger.Debug("Finished worker")
					return
				}
			}
		}()
	}
}

func (p *Publisher) process(ctx context.Context, msg pending) {
	err := p.publish(ctx, msg.event)
	if err == nil {
		return
	}

	msg.attempt++
	if msg.attempt >= maxAttempts {
		p.logger.Error("event publishing failed, giving up",
			zap.String("type", string(msg.event.Type)),
			zap.Stringer("order", msg.event.OrderID),
			zap.Int("attempts", msg.attempt),
			zap.Error(err))
		return
	}

	p.logger.Warn("event publishing failed, will retry",
		zap.String("type", string(msg.event.Type)),
		zap.Stringer("order", msg.event.OrderID),
		zap.Duration("retry_after", p.retryAfter),
		zap.Error(err))
	go p.retry(ctx, msg)
}

func (p *Publisher) retry(ctx context.Context, msg pending) {
	r := time.NewTimer(p.retryAfter)
	defer r.Stop()

	select {
	case <-r.C:
		p.enqueue(msg)
	case <-ctx.Done():
	}
}

func (p *Publisher) publish(ctx context.Context, event domain.OrderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("error on event encode: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return p.channel.PublishWithContext(ctx, p.exchange, string(event.Type), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    fmt.Sprintf("%s:%s:%d", event.OrderID, event.Type, event.OccurredAt.UnixNano()),
		Timestamp:    event.OccurredAt,
		Body:         body,
	})
}

func (p *Publisher) Close() {
	p.closeFn()
}
