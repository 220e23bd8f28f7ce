package http

import (
	"net/http"

	"github.com/bookstore/orderservice/internal/core/domain"
	"github.com/bookstore/orderservice/internal/core/port"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type BookHandler struct {
	Handler
	service port.CatalogService
}

func NewBookHandler(service port.CatalogService, logger *zap.Logger) (*BookHandler, error) {
	return &BookHandler{
		Handler: *NewHandler(logger),
		service: service,
	}, nil
}

type bookRequest struct {
	ISBN      string `json:"isbn" binding:"required"`
	Title     string `json:"title" binding:"required,max=255"`
	Author    string `json:"author" binding:"required,max=255"`
	Price     int64  `json:"price" binding:"required,gt=0"`
	Inventory int    `json:"inventory" binding:"gte=0"`
}

type bookResponse struct {
	ISBN      string `json:"isbn"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Price     int64  `json:"price"`
	Inventory int    `json:"inventory"`
	Purchases int64  `json:"purchases"`
}

func newBookResponse(b *domain.Book) bookResponse {
	return bookResponse{
		ISBN:      b.ISBN,
		Title:     b.Title,
		Author:    b.Author,
		Price:     b.Price,
		Inventory: b.Inventory,
		Purchases: b.Purchases,
	}
}

// CreateBook godoc
//
//	@Summary	Add a book to the catalog
//	@Tags		books
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		book	body		bookRequest	true	"Book"
//	@Success	201		{object}	bookResponse
//	@Failure	400		{object}	errorResponse
//	@Failure	403		{object}	errorResponse
//	@Failure	409		{object}	errorResponse
//	@Router		/books [post]
func (bh *BookHandler) CreateBook(ctx *gin.Context) {
	req := bookRequest{}
	err := ctx.ShouldBindJSON(&req)
	if err != nil {
		bh.handleValidationError(ctx, err)
		return
	}

	book, err := bh.service.CreateBook(ctx, &domain.Book{
		ISBN:      req.ISBN,
		Title:     req.Title,
		Author:    req.Author,
		Price:     req.Price,
		Inventory: req.Inventory,
	})
	if err != nil {
		bh.handleError(ctx, err)
		return
	}

	bh.handleSuccessWithStatus(ctx, newBookResponse(book), http.StatusCreated)
}

// GetBook godoc
//
//	@Summary	Get a book
//	@Tags		books
//	@Produce	json
//	@Param		isbn	path		string	true	"ISBN, hyphens allowed"
//	@Success	200		{object}	bookResponse
//	@Failure	404		{object}	errorResponse
//	@Router		/books/{isbn} [get]
func (bh *BookHandler) GetBook(ctx *gin.Context) {
	book, err := bh.service.GetBook(ctx, ctx.Param("isbn"))
	if err != nil {
		bh.handleError(ctx, err)
		return
	}
	bh.handleSuccess(ctx, newBookResponse(book))
}
