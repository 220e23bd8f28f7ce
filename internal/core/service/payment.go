package service

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/bookstore/orderservice/internal/core/domain"
	"github.com/bookstore/orderservice/internal/core/port"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// gatewayActor is recorded as the modifier of orders changed by a payment callback.
	gatewayActor = "vnpay"

	paymentURLOperation = "payment-url"
	paymentURLMargin    = time.Minute
)

type callbackHandler func(s *Service, ctx context.Context, orderID uuid.UUID,
	cb *domain.PaymentCallback) (*domain.Order, error)

var callbackHandlers = map[domain.GatewayAction]callbackHandler{
	domain.GatewayActionAccept: (*Service).confirmPayment,
	domain.GatewayActionFail:   (*Service).failPayment,
	domain.GatewayActionHold:   (*Service).holdPayment,
}

// PaymentURL returns the gateway link for an order still waiting for payment.
// Registered users must own the order; guests present the order passcode.
func (s *Service) PaymentURL(ctx context.Context, user *domain.User, orderID uuid.UUID,
	otp, clientIP string) (string, error) {
	order, err := s.repo.ReadOrder(ctx, orderID)
	if err != nil {
		return "", s.storeError("Read order for payment", err)
	}
	if err := s.authorizeOrder(order, user, otp); err != nil {
		return "", err
	}
	// the cached link is served only while the order still accepts payment
	if err := order.Require(domain.OrderStatusWaitingForPayment); err != nil {
		return "", err
	}

	key := s.cache.GenerateKey(paymentURLOperation, orderID.String())
	cached, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("Payment url cache read", zap.Error(err))
	} else if cached != "" {
		return cached, nil
	}

	now := time.Now()
	paymentURL, expiresAt, err := s.gateway.PaymentURL(order, clientIP, now)
	if err != nil {
		s.logger.Error("Generate payment url", zap.Error(err))
		return "", domain.ErrInternal
	}

	if ttl := expiresAt.Sub(now) - paymentURLMargin; ttl > 0 {
		if err := s.cache.Set(ctx, key, paymentURL, ttl); err != nil {
			s.logger.Warn("Payment url cache write", zap.Error(err))
		}
	}

	return paymentURL, nil
}

// HandlePaymentCallback reconciles a gateway redirect with the order it names.
// Unknown response codes are rejected before the order is read.
func (s *Service) HandlePaymentCallback(ctx context.Context, query url.Values) (*domain.Order, error) {
	cb, err := s.gateway.ParseCallback(query)
	if err != nil {
		return nil, err
	}

	status, err := domain.LookupGatewayStatus(cb.ResponseCode)
	if err != nil {
		s.logger.Error("Payment callback rejected",
			zap.String("order", cb.OrderRef), zap.Error(err))
		return nil, err
	}
	handler, ok := callbackHandlers[status.Action]
	if !ok {
		s.logger.Error("Payment callback action not handled",
			zap.String("order", cb.OrderRef), zap.Stringer("action", status.Action))
		return nil, fmt.Errorf("%w: %q", domain.ErrUnrecognizedStatusCode, cb.ResponseCode)
	}

	if err := s.gateway.VerifyCallback(query); err != nil {
		s.logger.Warn("Payment callback signature", zap.String("order", cb.OrderRef), zap.Error(err))
		return nil, err
	}

	orderID, err := uuid.Parse(cb.OrderRef)
	if err != nil {
		return nil, fmt.Errorf("%w: order reference %q", domain.ErrBadRequest, cb.OrderRef)
	}

	s.logger.Info("Payment callback",
		zap.Stringer("order", orderID),
		zap.String("code", status.Code),
		zap.String("description", status.Description),
		zap.String("transaction", cb.TransactionNo))

	return handler(s, ctx, orderID, cb)
}

func (s *Service) confirmPayment(ctx context.Context, orderID uuid.UUID,
	cb *domain.PaymentCallback) (*domain.Order, error) {
	return s.buildAcceptedOrder(ctx, orderID, gatewayActor,
		func(o *domain.Order) error {
			if cb.Amount != o.TotalPrice*100 {
				return fmt.Errorf("%w: paid amount %d does not match order total %d",
					domain.ErrConsistencyData, cb.Amount, o.TotalPrice)
			}
			return nil
		},
		domain.OrderStatusWaitingForPayment)
}

func (s *Service) failPayment(ctx context.Context, orderID uuid.UUID,
	cb *domain.PaymentCallback) (*domain.Order, error) {
	order, err := s.repo.UpdateOrder(ctx, orderID,
		func(_ context.Context, o *domain.Order, _ port.InventoryLedger) error {
			return o.FailPayment(gatewayActor, time.Now())
		})
	if err != nil {
		return nil, s.storeError("Fail order payment", err)
	}

	s.publisher.PublishOrderEvent(domain.NewOrderEvent(domain.OrderEventPaymentFailed, order))
	return order, nil
}

func (s *Service) holdPayment(ctx context.Context, orderID uuid.UUID,
	cb *domain.PaymentCallback) (*domain.Order, error) {
	order, err := s.repo.ReadOrder(ctx, orderID)
	if err != nil {
		return nil, s.storeError("Read held order", err)
	}

	s.logger.Warn("Payment held for review, order left unchanged",
		zap.Stringer("order", orderID),
		zap.String("code", cb.ResponseCode),
		zap.String("transaction", cb.TransactionNo))
	return order, nil
}
