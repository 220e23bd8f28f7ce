package port

import (
	"context"

	"github.com/bookstore/orderservice/internal/core/domain"
	"github.com/google/uuid"
)

//go:generate mockgen -source=repository.go -destination=mock/repository.go -package=mock
type Repository interface {
	// Book
	CreateBook(ctx context.Context, book *domain.Book) (*domain.Book, error)
	ReadBook(ctx context.Context, isbn string) (*domain.Book, error)

	// Order
	CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error)
	ReadOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, username string, page domain.Page) ([]*domain.Order, error)
	// UpdateOrder loads the order, runs updateFn and writes the order back in one
	// transaction. The write is guarded by the order version; a lost race
	// returns domain.ErrConcurrentUpdate.
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updateFn UpdateOrderFn) (*domain.Order, error)
}

// InventoryLedger is the book stock as seen from inside an order transaction.
type InventoryLedger interface {
	ReadBook(ctx context.Context, isbn string) (*domain.Book, error)
	// Commit decrements inventory and increments purchases by quantity, failing
	// with an insufficient inventory error instead of going negative.
	Commit(ctx context.Context, isbn string, quantity int) error
}

type UpdateOrderFn func(ctx context.Context, order *domain.Order, ledger InventoryLedger) error
