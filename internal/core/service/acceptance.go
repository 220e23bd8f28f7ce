package service

import (
	"context"
	"time"

	"github.com/bookstore/orderservice/internal/core/domain"
	"github.com/bookstore/orderservice/internal/core/port"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AcceptOrder is the operator trigger for orders that do not wait for a gateway payment.
func (s *Service) AcceptOrder(ctx context.Context, user *domain.User, orderID uuid.UUID) (*domain.Order, error) {
	if user == nil {
		return nil, domain.ErrUnauthorized
	}
	if !user.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	return s.buildAcceptedOrder(ctx, orderID, user.Username, nil,
		domain.OrderStatusWaitingForAcceptance)
}

// buildAcceptedOrder commits the stock of every line item and moves the order
// to ACCEPTED in a single transaction. The order must be in one of eligible;
// check, when given, runs against the loaded order before any stock moves.
func (s *Service) buildAcceptedOrder(ctx context.Context, orderID uuid.UUID, actor string,
	check func(*domain.Order) error, eligible ...domain.OrderStatus) (*domain.Order, error) {
	order, err := s.repo.UpdateOrder(ctx, orderID,
		func(ctx context.Context, o *domain.Order, ledger port.InventoryLedger) error {
			if err := o.Require(eligible...); err != nil {
				return err
			}
			if check != nil {
				if err := check(o); err != nil {
					return err
				}
			}

			for _, item := range o.LineItems {
				if err := item.Validate(); err != nil {
					return err
				}
				book, err := ledger.ReadBook(ctx, item.ISBN)
				if err != nil {
					return err
				}
				if !book.Available(item.Quantity) {
					return domain.NewInsufficientInventory(item.ISBN)
				}
				// conditional decrement, authoritative against concurrent acceptances
				if err := ledger.Commit(ctx, item.ISBN, item.Quantity); err != nil {
					return err
				}
			}

			return o.Accept(actor, time.Now(), eligible...)
		})
	if err != nil {
		s.logger.Info("Order acceptance rejected",
			zap.Stringer("order", orderID), zap.String("actor", actor), zap.Error(err))
		return nil, s.storeError("Accept order", err)
	}

	s.logger.Debug("Order accepted", zap.Stringer("order", order.ID), zap.String("actor", actor))
	s.publisher.PublishOrderEvent(domain.NewOrderEvent(domain.OrderEventAccepted, order))

	return order, nil
}
