// Package memory is an in-process store used when no database is configured
// and by tests that need real transaction semantics without PostgreSQL.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bookstore/orderservice/internal/core/domain"
	"github.com/bookstore/orderservice/internal/core/port"
	"github.com/google/uuid"
)

type Repository struct {
	mu     sync.Mutex
	books  map[string]*domain.Book
	orders map[uuid.UUID]*domain.Order
	nextID int64
}

func NewRepository() *Repository {
	return &Repository{
		books:  make(map[string]*domain.Book),
		orders: make(map[uuid.UUID]*domain.Order),
	}
}

func (r *Repository) CreateBook(_ context.Context, book *domain.Book) (*domain.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.books[book.ISBN]; ok {
		return nil, domain.ErrConflictingData
	}
	r.nextID++
	b := *book
	b.ID = r.nextID
	r.books[b.ISBN] = &b

	result := b
	return &result, nil
}

func (r *Repository) ReadBook(_ context.Context, isbn string) (*domain.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.books[isbn]
	if !ok {
		return nil, domain.ErrDataNotFound
	}
	result := *b
	return &result, nil
}

func (r *Repository) CreateOrder(_ context.Context, order *domain.Order) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[order.ID]; ok {
		return nil, domain.ErrConflictingData
	}
	r.orders[order.ID] = copyOrder(order)
	return copyOrder(order), nil
}

func (r *Repository) ReadOrder(_ context.Context, orderID uuid.UUID) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok {
		return nil, domain.ErrDataNotFound
	}
	return copyOrder(o), nil
}

func (r *Repository) ListOrdersByUser(_ context.Context, username string, page domain.Page) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := make([]*domain.Order, 0)
	for _, o := range r.orders {
		if o.CreatedBy == username {
			list = append(list, copyOrder(o))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})

	page = page.Normalize()
	offset := page.Offset()
	if offset >= uint64(len(list)) {
		return []*domain.Order{}, nil
	}
	end := min(int(offset)+page.Size, len(list))
	return list[offset:end], nil
}

// UpdateOrder runs updateFn against a working copy of the store. Nothing is
// visible to other callers unless updateFn succeeds and the version still matches.
func (r *Repository) UpdateOrder(ctx context.Context, orderID uuid.UUID,
	updateFn port.UpdateOrderFn) (*domain.Order, error) {
	r.mu.Lock()
	stored, ok := r.orders[orderID]
	if !ok {
		r.mu.Unlock()
		return nil, domain.ErrDataNotFound
	}
	order := copyOrder(stored)
	r.mu.Unlock()

	tx := &ledger{repo: r, pending: make(map[string]int)}
	if err := updateFn(ctx, order, tx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.orders[orderID]
	if current.Version != order.Version {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrConcurrentUpdate)
	}
	// stock may have moved since updateFn read it; re-apply the guard at commit
	for isbn, quantity := range tx.pending {
		if r.books[isbn].Inventory < quantity {
			return nil, domain.NewInsufficientInventory(isbn)
		}
	}
	for isbn, quantity := range tx.pending {
		b := r.books[isbn]
		b.Inventory -= quantity
		b.Purchases += int64(quantity)
	}

	order.Version++
	r.orders[orderID] = copyOrder(order)
	return copyOrder(order), nil
}

// ledger buffers stock commits until the surrounding UpdateOrder commits.
type ledger struct {
	repo    *Repository
	pending map[string]int
}

func (l *ledger) ReadBook(ctx context.Context, isbn string) (*domain.Book, error) {
	b, err := l.repo.ReadBook(ctx, isbn)
	if err != nil {
		return nil, err
	}
	b.Inventory -= l.pending[isbn]
	b.Purchases += int64(l.pending[isbn])
	return b, nil
}

func (l *ledger) Commit(ctx context.Context, isbn string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: commit of %d copies of %s", domain.ErrBadRequest, quantity, isbn)
	}
	b, err := l.ReadBook(ctx, isbn)
	if err != nil {
		return err
	}
	if b.Inventory < quantity {
		return domain.NewInsufficientInventory(isbn)
	}
	l.pending[isbn] += quantity
	return nil
}

func copyOrder(o *domain.Order) *domain.Order {
	c := *o
	c.LineItems = append([]domain.LineItem(nil), o.LineItems...)
	if o.OTPExpiresAt != nil {
		t := *o.OTPExpiresAt
		c.OTPExpiresAt = &t
	}
	return &c
}
