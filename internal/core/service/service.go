package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookstore/orderservice/internal/core/domain"
	"github.com/bookstore/orderservice/internal/core/port"
	"github.com/bookstore/orderservice/internal/core/utils"
	"go.uber.org/zap"
)

type Service struct {
	repo      port.Repository
	gateway   port.PaymentGateway
	cache     port.Cache
	publisher port.OrderEventPublisher
	logger    *zap.Logger
}

func NewService(repo port.Repository, gateway port.PaymentGateway, cache port.Cache,
	publisher port.OrderEventPublisher, logger *zap.Logger) (*Service, error) {
	return &Service{
		repo:      repo,
		gateway:   gateway,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
	}, nil
}

// errors the caller is expected to act on; anything else from the store is internal.
var passthroughErrors = []error{
	domain.ErrDataNotFound,
	domain.ErrConflictingData,
	domain.ErrConcurrentUpdate,
	domain.ErrInsufficientInventory,
	domain.ErrConsistencyData,
	domain.ErrUnrecognizedStatusCode,
	domain.ErrBadRequest,
	domain.ErrForbidden,
	domain.ErrUnauthorized,
}

func (s *Service) storeError(msg string, err error) error {
	for _, known := range passthroughErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	s.logger.Error(msg, zap.Error(err))
	return domain.ErrInternal
}

func (s *Service) CreateBook(ctx context.Context, book *domain.Book) (*domain.Book, error) {
	isbn, err := utils.NormalizeISBN(book.ISBN)
	if err != nil {
		return nil, err
	}
	book.ISBN = isbn

	if book.Price <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", domain.ErrBadRequest)
	}
	if book.Inventory < 0 {
		return nil, fmt.Errorf("%w: inventory must not be negative", domain.ErrBadRequest)
	}
	book.Purchases = 0

	newBook, err := s.repo.CreateBook(ctx, book)
	if err != nil {
		return nil, s.storeError("Create book", err)
	}
	return newBook, nil
}

func (s *Service) GetBook(ctx context.Context, isbn string) (*domain.Book, error) {
	book, err := s.repo.ReadBook(ctx, utils.CanonicalISBN(isbn))
	if err != nil {
		return nil, s.storeError("Get book", err)
	}
	return book, nil
}
