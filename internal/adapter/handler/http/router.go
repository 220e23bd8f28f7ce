package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	// OpenAPI description for /docs
	_ "github.com/bookstore/orderservice/docs"
	"github.com/bookstore/orderservice/internal/adapter/config"
	"github.com/bookstore/orderservice/internal/core/port"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type Router struct {
	*gin.Engine
	conf   *config.HTTP
	logger *zap.Logger
}

func NewRouter(
	conf *config.HTTP,
	tokenService port.TokenService,
	orderHandler *OrderHandler,
	bookHandler *BookHandler,
	logger *zap.Logger) (*Router, error) {

	router := gin.New()
	router.Use(gin.Recovery())

	h := NewHandler(logger)

	// Swagger
	router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := router.Group("/api")
	{
		books := api.Group("/books")
		{
			books.GET("/:isbn", bookHandler.GetBook)
			books.POST("", h.authCheck(tokenService), h.adminOnly(), bookHandler.CreateBook)
		}

		orders := api.Group("/orders")
		{
			orders.POST("", h.optionalAuth(tokenService), orderHandler.SubmitOrder)
			orders.GET("/payment/return", orderHandler.PaymentCallback)
			orders.POST("/:id/payment", h.optionalAuth(tokenService), orderHandler.PaymentURL)

			authorized := orders.Group("")
			{
				authorized.Use(h.authCheck(tokenService))
				authorized.GET("", orderHandler.ListOrdersByUser)
				authorized.GET("/:id", orderHandler.GetOrder)
				authorized.POST("/:id/accept", orderHandler.AcceptOrder)
				authorized.POST("/:id/cancel", orderHandler.CancelOrder)
			}
		}

		guest := api.Group("/guest-orders")
		{
			guest.GET("/:id", orderHandler.GetGuestOrder)
		}
	}

	return &Router{Engine: router, conf: conf, logger: logger}, nil
}

func (r *Router) handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   r.conf.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(r.Engine)
}

// Serve starts the HTTP server and shuts it down when ctx is cancelled.
func (r *Router) Serve(ctx context.Context, listenAddr string) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           r.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("server shutdown", zap.Error(err))
		}
	}()

	r.logger.Info("listening", zap.String("address", listenAddr))
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
