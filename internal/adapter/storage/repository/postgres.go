package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/bookstore/orderservice/internal/adapter/storage"
	"github.com/bookstore/orderservice/internal/core/domain"
	"github.com/bookstore/orderservice/internal/core/port"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Repository struct {
	db *storage.DB
}

func NewRepository(db *storage.DB) (*Repository, error) {
	return &Repository{db: db}, nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var bookColumns = []string{"id", "isbn", "title", "author", "price", "inventory", "purchases"}

var orderColumns = []string{
	"id", "total_price", "status", "payment_method",
	"customer_name", "customer_email", "customer_phone", "customer_address",
	"otp_hash", "otp_expires_at",
	"created_at", "created_by", "last_modified_at", "last_modified_by", "version",
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func (r *Repository) CreateBook(ctx context.Context, book *domain.Book) (*domain.Book, error) {
	statement := r.db.QueryBuilder.Insert("books").
		Columns("isbn", "title", "author", "price", "inventory", "purchases").
		Values(book.ISBN, book.Title, book.Author, book.Price, book.Inventory, book.Purchases).
		Suffix("returning id")

	sql, args, err := statement.ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.QueryRow(ctx, sql, args...).Scan(&book.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrConflictingData
		}
		return nil, err
	}
	return book, nil
}

func (r *Repository) ReadBook(ctx context.Context, isbn string) (*domain.Book, error) {
	return readBook(ctx, r.db.QueryBuilder, r.db, isbn)
}

func readBook(ctx context.Context, qb *sq.StatementBuilderType, q querier, isbn string) (*domain.Book, error) {
	statement := qb.Select(bookColumns...).
		From("books").
		Where(sq.Eq{"isbn": isbn})

	sql, args, err := statement.ToSql()
	if err != nil {
		return nil, err
	}

	book := domain.Book{}
	err = q.QueryRow(ctx, sql, args...).Scan(
		&book.ID,
		&book.ISBN,
		&book.Title,
		&book.Author,
		&book.Price,
		&book.Inventory,
		&book.Purchases,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDataNotFound
		}
		return nil, err
	}
	return &book, nil
}

func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var name, email, phone, address *string
		if c := order.Customer; c != nil {
			name, email, phone, address = nullable(c.FullName()), nullable(c.Email()),
				nullable(c.Phone()), nullable(c.Address())
		}

		orderSt := r.db.QueryBuilder.Insert("orders").
			Columns(orderColumns...).
			Values(order.ID, order.TotalPrice, order.Status, order.PaymentMethod,
				name, email, phone, address,
				nullable(order.OTPHash), order.OTPExpiresAt,
				order.CreatedAt, order.CreatedBy, order.LastModifiedAt, order.LastModifiedBy,
				order.Version)

		sql, args, err := orderSt.ToSql()
		if err != nil {
			return err
		}
		if _, err = tx.Exec(ctx, sql, args...); err != nil {
			return err
		}

		itemsSt := r.db.QueryBuilder.Insert("line_items").
			Columns("order_id", "isbn", "quantity", "price")
		for _, item := range order.LineItems {
			itemsSt = itemsSt.Values(order.ID, item.ISBN, item.Quantity, item.Price)
		}

		sql, args, err = itemsSt.ToSql()
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, sql, args...)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrConflictingData
		}
		return nil, err
	}

	return order, nil
}

func (r *Repository) ReadOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return r.readOrder(ctx, r.db, orderID)
}

func (r *Repository) readOrder(ctx context.Context, q querier, orderID uuid.UUID) (*domain.Order, error) {
	statement := r.db.QueryBuilder.
		Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": orderID})

	sql, args, err := statement.ToSql()
	if err != nil {
		return nil, err
	}

	order, err := scanOrder(q.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDataNotFound
		}
		return nil, err
	}

	items, err := r.readLineItems(ctx, q, []uuid.UUID{order.ID})
	if err != nil {
		return nil, err
	}
	order.LineItems = items[order.ID]

	return order, nil
}

func (r *Repository) ListOrdersByUser(ctx context.Context, username string, page domain.Page) ([]*domain.Order, error) {
	page = page.Normalize()
	statement := r.db.QueryBuilder.
		Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"created_by": username}).
		OrderBy("created_at DESC").
		Limit(uint64(page.Size)).
		Offset(page.Offset())

	sql, args, err := statement.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]*domain.Order, 0)
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, order)
		ids = append(ids, order.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return list, nil
	}

	items, err := r.readLineItems(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for _, order := range list {
		order.LineItems = items[order.ID]
	}

	return list, nil
}

func (r *Repository) UpdateOrder(ctx context.Context, orderID uuid.UUID,
	updateFn port.UpdateOrderFn) (*domain.Order, error) {
	var order *domain.Order

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		order, err = r.readOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		err = updateFn(ctx, order, &ledger{qb: r.db.QueryBuilder, tx: tx})
		if err != nil {
			return err
		}

		statement := r.db.QueryBuilder.Update("orders").
			Set("status", order.Status).
			Set("total_price", order.TotalPrice).
			Set("last_modified_at", order.LastModifiedAt).
			Set("last_modified_by", order.LastModifiedBy).
			Set("version", sq.Expr("version + 1")).
			Where(sq.Eq{"id": order.ID, "version": order.Version})

		sql, args, err := statement.ToSql()
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, sql, args...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("order %s: %w", order.ID, domain.ErrConcurrentUpdate)
		}
		order.Version++

		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

func (r *Repository) readLineItems(ctx context.Context, q querier,
	orderIDs []uuid.UUID) (map[uuid.UUID][]domain.LineItem, error) {
	statement := r.db.QueryBuilder.
		Select("order_id", "isbn", "quantity", "price").
		From("line_items").
		Where(sq.Eq{"order_id": orderIDs}).
		OrderBy("isbn")

	sql, args, err := statement.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[uuid.UUID][]domain.LineItem, len(orderIDs))
	for rows.Next() {
		item := domain.LineItem{}
		if err := rows.Scan(&item.OrderID, &item.ISBN, &item.Quantity, &item.Price); err != nil {
			return nil, err
		}
		result[item.OrderID] = append(result[item.OrderID], item)
	}

	return result, rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	order := domain.Order{}
	var name, email, phone, address, otpHash *string

	err := row.Scan(
		&order.ID,
		&order.TotalPrice,
		&order.Status,
		&order.PaymentMethod,
		&name, &email, &phone, &address,
		&otpHash,
		&order.OTPExpiresAt,
		&order.CreatedAt,
		&order.CreatedBy,
		&order.LastModifiedAt,
		&order.LastModifiedBy,
		&order.Version,
	)
	if err != nil {
		return nil, err
	}

	if name != nil {
		customer, err := domain.NewCustomerInfo(deref(name), deref(email), deref(phone), deref(address))
		if err != nil {
			return nil, fmt.Errorf("stored customer of order %s: %w", order.ID, err)
		}
		order.Customer = customer
	}
	order.OTPHash = deref(otpHash)

	return &order, nil
}

// ledger commits stock inside the order transaction.
type ledger struct {
	qb *sq.StatementBuilderType
	tx pgx.Tx
}

func (l *ledger) ReadBook(ctx context.Context, isbn string) (*domain.Book, error) {
	return readBook(ctx, l.qb, l.tx, isbn)
}

func (l *ledger) Commit(ctx context.Context, isbn string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: commit of %d copies of %s", domain.ErrBadRequest, quantity, isbn)
	}
	statement := l.qb.Update("books").
		Set("inventory", sq.Expr("inventory - ?", quantity)).
		Set("purchases", sq.Expr("purchases + ?", quantity)).
		Where(sq.Eq{"isbn": isbn}).
		Where(sq.GtOrEq{"inventory": quantity})

	sql, args, err := statement.ToSql()
	if err != nil {
		return err
	}

	tag, err := l.tx.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := l.ReadBook(ctx, isbn); err != nil {
			return err
		}
		return domain.NewInsufficientInventory(isbn)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
