package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bookstore/orderservice/internal/core/domain"
	"github.com/bookstore/orderservice/internal/core/port"
	"github.com/bookstore/orderservice/internal/core/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const guestOTPTTL = 15 * time.Minute

func (s *Service) SubmitOrder(ctx context.Context, req port.SubmitOrderRequest) (*port.SubmittedOrder, error) {
	if !req.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", domain.ErrBadRequest, req.PaymentMethod)
	}

	actor := domain.GuestUsername
	if req.User != nil {
		actor = req.User.Username
	} else if req.Customer == nil {
		return nil, fmt.Errorf("%w: guest orders need customer information", domain.ErrBadRequest)
	}

	items, err := s.buildLineItems(ctx, req.LineItems)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	order := domain.NewOrder(items, req.Customer, req.PaymentMethod, actor, now)

	var otp string
	if req.User == nil {
		otp, err = utils.GenerateOTP()
		if err != nil {
			s.logger.Error("Generate otp", zap.Error(err))
			return nil, domain.ErrInternal
		}
		hashed, err := utils.HashPassword(otp)
		if err != nil {
			s.logger.Error("Hash otp", zap.Error(err))
			return nil, domain.ErrInternal
		}
		expiresAt := now.Add(guestOTPTTL)
		order.OTPHash = hashed
		order.OTPExpiresAt = &expiresAt
	}

	newOrder, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return nil, s.storeError("Create order", err)
	}

	s.logger.Debug("Order submitted",
		zap.Stringer("order", newOrder.ID),
		zap.String("status", string(newOrder.Status)),
		zap.Int64("total", newOrder.TotalPrice))
	s.publisher.PublishOrderEvent(domain.NewOrderEvent(domain.OrderEventSubmitted, newOrder))

	return &port.SubmittedOrder{Order: newOrder, OTP: otp}, nil
}

// buildLineItems prices each requested book at its current catalog price.
// The inventory check here is advisory; stock is committed at acceptance.
func (s *Service) buildLineItems(ctx context.Context, requests []domain.LineItemRequest) ([]domain.LineItem, error) {
	if len(requests) == 0 {
		return nil, fmt.Errorf("%w: order has no line items", domain.ErrBadRequest)
	}

	quantities := make(map[string]int, len(requests))
	isbns := make([]string, 0, len(requests))
	for _, r := range requests {
		isbn := utils.CanonicalISBN(r.ISBN)
		if isbn == "" {
			return nil, fmt.Errorf("%w: line item without isbn", domain.ErrBadRequest)
		}
		if r.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity of %s must be positive", domain.ErrBadRequest, isbn)
		}
		merged, ok := quantities[isbn]
		if !ok {
			isbns = append(isbns, isbn)
		}
		if r.Quantity > domain.MaxLineItemQuantity-merged {
			return nil, fmt.Errorf("%w: quantity of %s exceeds %d",
				domain.ErrBadRequest, isbn, domain.MaxLineItemQuantity)
		}
		quantities[isbn] = merged + r.Quantity
	}

	items := make([]domain.LineItem, 0, len(isbns))
	for _, isbn := range isbns {
		quantity := quantities[isbn]

		book, err := s.repo.ReadBook(ctx, isbn)
		if err != nil {
			if errors.Is(err, domain.ErrDataNotFound) {
				return nil, fmt.Errorf("book %s: %w", isbn, domain.ErrDataNotFound)
			}
			return nil, s.storeError("Read book", err)
		}

		if !book.Available(quantity) {
			return nil, domain.NewInsufficientInventory(isbn)
		}

		item := domain.LineItem{
			ISBN:     book.ISBN,
			Quantity: quantity,
			Price:    book.Price,
		}
		if err := item.Validate(); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, nil
}

func (s *Service) GetOrder(ctx context.Context, user *domain.User, orderID uuid.UUID) (*domain.Order, error) {
	if user == nil {
		return nil, domain.ErrUnauthorized
	}

	order, err := s.repo.ReadOrder(ctx, orderID)
	if err != nil {
		return nil, s.storeError("Get order", err)
	}
	if !user.Owns(order.CreatedBy) {
		return nil, domain.ErrForbidden
	}
	return order, nil
}

func (s *Service) GetGuestOrder(ctx context.Context, orderID uuid.UUID, otp string) (*domain.Order, error) {
	order, err := s.repo.ReadOrder(ctx, orderID)
	if err != nil {
		return nil, s.storeError("Get guest order", err)
	}
	if err := s.authorizeOrder(order, nil, otp); err != nil {
		return nil, err
	}
	return order, nil
}

// authorizeOrder lets user act on order, or a guest holding its passcode when user is nil.
func (s *Service) authorizeOrder(order *domain.Order, user *domain.User, otp string) error {
	if user != nil {
		if !user.Owns(order.CreatedBy) {
			return domain.ErrForbidden
		}
		return nil
	}

	if order.CreatedBy != domain.GuestUsername {
		return domain.ErrDataNotFound
	}
	if !order.OTPValid(time.Now()) {
		return domain.ErrInvalidOTP
	}
	if err := utils.ComparePassword(otp, order.OTPHash); err != nil {
		return domain.ErrInvalidOTP
	}
	return nil
}

func (s *Service) ListOrders(ctx context.Context, user *domain.User, page domain.Page) ([]*domain.Order, error) {
	if user == nil {
		return nil, domain.ErrUnauthorized
	}

	list, err := s.repo.ListOrdersByUser(ctx, user.Username, page.Normalize())
	if err != nil {
		return nil, s.storeError("Get orders for user", err)
	}
	return list, nil
}

func (s *Service) CancelOrder(ctx context.Context, user *domain.User, orderID uuid.UUID) (*domain.Order, error) {
	if user == nil {
		return nil, domain.ErrUnauthorized
	}

	order, err := s.repo.UpdateOrder(ctx, orderID,
		func(_ context.Context, o *domain.Order, _ port.InventoryLedger) error {
			if !user.Owns(o.CreatedBy) {
				return domain.ErrForbidden
			}
			return o.Cancel(user.Username, time.Now())
		})
	if err != nil {
		return nil, s.storeError("Cancel order", err)
	}

	s.publisher.PublishOrderEvent(domain.NewOrderEvent(domain.OrderEventCancelled, order))
	return order, nil
}
