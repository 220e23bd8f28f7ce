package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bookstore/orderservice/internal/core/domain"
	"github.com/bookstore/orderservice/internal/core/port"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OrderHandler struct {
	Handler
	service port.OrderService
}

func NewOrderHandler(service port.OrderService, logger *zap.Logger) (*OrderHandler, error) {
	return &OrderHandler{
		Handler: *NewHandler(logger),
		service: service,
	}, nil
}

type lineItemRequest struct {
	ISBN     string `json:"isbn" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}

type userInformation struct {
	FullName string `json:"fullName"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phoneNumber,omitempty"`
	Address  string `json:"address"`
}

type orderRequest struct {
	LineItems       []lineItemRequest `json:"lineItems" binding:"required,min=1,dive"`
	UserInformation *userInformation  `json:"userInformation"`
	PaymentMethod   string            `json:"paymentMethod" binding:"required"`
}

type lineItemResponse struct {
	ISBN       string `json:"isbn"`
	Quantity   int    `json:"quantity"`
	Price      int64  `json:"price"`
	TotalPrice int64  `json:"totalPrice"`
}

type orderResponse struct {
	ID               uuid.UUID          `json:"id"`
	TotalPrice       int64              `json:"totalPrice"`
	Status           string             `json:"status"`
	PaymentMethod    string             `json:"paymentMethod"`
	LineItems        []lineItemResponse `json:"lineItems"`
	UserInformation  *userInformation   `json:"userInformation,omitempty"`
	CreatedDate      time.Time          `json:"createdDate"`
	CreatedBy        string             `json:"createdBy"`
	LastModifiedDate time.Time          `json:"lastModifiedDate"`
	LastModifiedBy   string             `json:"lastModifiedBy"`
	Version          int                `json:"version"`
	OTP              string             `json:"otp,omitempty"`
	OTPExpiredAt     *time.Time         `json:"otpExpiredAt,omitempty"`
}

func newOrderResponse(o *domain.Order) orderResponse {
	r := orderResponse{
		ID:               o.ID,
		TotalPrice:       o.TotalPrice,
		Status:           string(o.Status),
		PaymentMethod:    string(o.PaymentMethod),
		LineItems:        make([]lineItemResponse, 0, len(o.LineItems)),
		CreatedDate:      o.CreatedAt,
		CreatedBy:        o.CreatedBy,
		LastModifiedDate: o.LastModifiedAt,
		LastModifiedBy:   o.LastModifiedBy,
		Version:          o.Version,
	}
	for _, item := range o.LineItems {
		r.LineItems = append(r.LineItems, lineItemResponse{
			ISBN:       item.ISBN,
			Quantity:   item.Quantity,
			Price:      item.Price,
			TotalPrice: item.TotalPrice(),
		})
	}
	if c := o.Customer; c != nil {
		r.UserInformation = &userInformation{
			FullName: c.FullName(),
			Email:    c.Email(),
			Phone:    c.Phone(),
			Address:  c.Address(),
		}
	}
	return r
}

func parseOrderID(ctx *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: order id %q", domain.ErrBadRequest, ctx.Param("id"))
	}
	return id, nil
}

// SubmitOrder godoc
//
//	@Summary	Submit an order
//	@Tags		orders
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		order	body		orderRequest	true	"Line items and payment method, customer information for guests"
//	@Success	201		{object}	orderResponse
//	@Failure	400		{object}	errorResponse
//	@Failure	404		{object}	errorResponse
//	@Failure	409		{object}	errorResponse
//	@Router		/orders [post]
func (oh *OrderHandler) SubmitOrder(ctx *gin.Context) {
	req := orderRequest{}
	err := ctx.ShouldBindJSON(&req)
	if err != nil {
		oh.handleValidationError(ctx, err)
		return
	}

	var customer *domain.CustomerInfo
	if u := req.UserInformation; u != nil {
		customer, err = domain.NewCustomerInfo(u.FullName, u.Email, u.Phone, u.Address)
		if err != nil {
			oh.handleError(ctx, err)
			return
		}
	}

	items := make([]domain.LineItemRequest, 0, len(req.LineItems))
	for _, li := range req.LineItems {
		items = append(items, domain.LineItemRequest{ISBN: li.ISBN, Quantity: li.Quantity})
	}

	submitted, err := oh.service.SubmitOrder(ctx, port.SubmitOrderRequest{
		LineItems:     items,
		Customer:      customer,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		User:          getUser(ctx),
	})
	if err != nil {
		oh.handleError(ctx, err)
		return
	}

	resp := newOrderResponse(submitted.Order)
	resp.OTP = submitted.OTP
	resp.OTPExpiredAt = submitted.Order.OTPExpiresAt
	oh.handleSuccessWithStatus(ctx, resp, http.StatusCreated)
}

// ListOrdersByUser godoc
//
//	@Summary	List own orders, newest first
//	@Tags		orders
//	@Produce	json
//	@Security	BearerAuth
//	@Param		page	query		int	false	"Zero based page"
//	@Param		size	query		int	false	"Page size"
//	@Success	200		{array}		orderResponse
//	@Failure	401		{object}	errorResponse
//	@Router		/orders [get]
func (oh *OrderHandler) ListOrdersByUser(ctx *gin.Context) {
	page := domain.Page{}
	if v := ctx.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			oh.handleValidationError(ctx, err)
			return
		}
		page.Page = n
	}
	if v := ctx.Query("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			oh.handleValidationError(ctx, err)
			return
		}
		page.Size = n
	}

	list, err := oh.service.ListOrders(ctx, getUser(ctx), page)
	if err != nil {
		oh.handleError(ctx, err)
		return
	}

	result := make([]orderResponse, 0, len(list))
	for _, o := range list {
		result = append(result, newOrderResponse(o))
	}

	oh.handleSuccess(ctx, result)
}

// GetOrder godoc
//
//	@Summary	Get an order
//	@Tags		orders
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Order id"
//	@Success	200	{object}	orderResponse
//	@Failure	403	{object}	errorResponse
//	@Failure	404	{object}	errorResponse
//	@Router		/orders/{id} [get]
func (oh *OrderHandler) GetOrder(ctx *gin.Context) {
	id, err := parseOrderID(ctx)
	if err != nil {
		oh.handleError(ctx, err)
		return
	}

	order, err := oh.service.GetOrder(ctx, getUser(ctx), id)
	if err != nil {
		oh.handleError(ctx, err)
		return
	}
	oh.handleSuccess(ctx, newOrderResponse(order))
}

// GetGuestOrder godoc
//
//	@Summary	Get a guest order with its passcode
//	@Tags		orders
//	@Produce	json
//	@Param		id	path		string	true	"Order id"
//	@Param		otp	query		string	true	"Passcode returned at submission"
//	@Success	200	{object}	orderResponse
//	@Failure	401	{object}	errorResponse
//	@Failure	404	{object}	errorResponse
//	@Router		/guest-orders/{id} [get]
func (oh *OrderHandler) GetGuestOrder(ctx *gin.Context) {
	id, err := parseOrderID(ctx)
	if err != nil {
		oh.handleError(ctx, err)
		return
	}

	order, err := oh.service.GetGuestOrder(ctx, id, ctx.Query("otp"))
	if err != nil {
		oh.handleError(ctx, err)
		return
	}
	oh.handleSuccess(ctx, newOrderResponse(order))
}

// AcceptOrder godoc
//
//	@Summary	Accept a cash on delivery order and commit its stock
//	@Tags		orders
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Order id"
//	@Success	200	{object}	orderResponse
//	@Failure	403	{object}	errorResponse
//	@Failure	409	{object}	errorResponse
//	@Router		/orders/{id}/accept [post]
func (oh *OrderHandler) AcceptOrder(ctx *gin.Context) {
	id, err := parseOrderID(ctx)
	if err != nil {
		oh.handleError(ctx, err)
		return
	}

	order, err := oh.service.AcceptOrder(ctx, getUser(ctx), id)
	if err != nil {
		oh.handleError(ctx, err)
		return
	}
	oh.handleSuccess(ctx, newOrderResponse(order))
}

// CancelOrder godoc
//
//	@Summary	Cancel an order that is still waiting
//	@Tags		orders
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Order id"
//	@Success	200	{object}	orderResponse
//	@Failure	403	{object}	errorResponse
//	@Failure	409	{object}	errorResponse
//	@Router		/orders/{id}/cancel [post]
func (oh *OrderHandler) CancelOrder(ctx *gin.Context) {
	id, err := parseOrderID(ctx)
	if err != nil {
		oh.handleError(ctx, err)
		return
	}

	order, err := oh.service.CancelOrder(ctx, getUser(ctx), id)
	if err != nil {
		oh.handleError(ctx, err)
		return
	}
	oh.handleSuccess(ctx, newOrderResponse(order))
}

type paymentURLResponse struct {
	PaymentURL string `json:"paymentUrl"`
}

// PaymentURL godoc
//
//	@Summary	Get the gateway payment link of an order
//	@Tags		payments
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Order id"
//	@Param		otp	query		string	false	"Passcode, for guest orders"
//	@Success	200	{object}	paymentURLResponse
//	@Failure	401	{object}	errorResponse
//	@Failure	403	{object}	errorResponse
//	@Failure	409	{object}	errorResponse
//	@Router		/orders/{id}/payment [post]
func (oh *OrderHandler) PaymentURL(ctx *gin.Context) {
	id, err := parseOrderID(ctx)
	if err != nil {
		oh.handleError(ctx, err)
		return
	}

	paymentURL, err := oh.service.PaymentURL(ctx, getUser(ctx), id, ctx.Query("otp"), ctx.ClientIP())
	if err != nil {
		oh.handleError(ctx, err)
		return
	}
	oh.handleSuccess(ctx, paymentURLResponse{PaymentURL: paymentURL})
}

// PaymentCallback godoc
//
//	@Summary	Gateway return url, reconciles the payment result
//	@Tags		payments
//	@Produce	json
//	@Param		vnp_TxnRef			query		string	true	"Order id"
//	@Param		vnp_ResponseCode	query		string	true	"Gateway response code"
//	@Param		vnp_SecureHash		query		string	true	"Signature"
//	@Success	200					{object}	orderResponse
//	@Failure	400					{object}	errorResponse
//	@Failure	409					{object}	errorResponse
//	@Failure	422					{object}	errorResponse
//	@Router		/orders/payment/return [get]
func (oh *OrderHandler) PaymentCallback(ctx *gin.Context) {
	order, err := oh.service.HandlePaymentCallback(ctx, ctx.Request.URL.Query())
	if err != nil {
		oh.handleError(ctx, err)
		return
	}
	oh.handleSuccess(ctx, newOrderResponse(order))
}
