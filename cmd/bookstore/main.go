package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bookstore/orderservice/internal/adapter/auth"
	"github.com/bookstore/orderservice/internal/adapter/cache"
	"github.com/bookstore/orderservice/internal/adapter/client/broker"
	"github.com/bookstore/orderservice/internal/adapter/client/vnpay"
	"github.com/bookstore/orderservice/internal/adapter/config"
	"github.com/bookstore/orderservice/internal/adapter/handler/http"
	"github.com/bookstore/orderservice/internal/adapter/logger"
	"github.com/bookstore/orderservice/internal/adapter/storage"
	"github.com/bookstore/orderservice/internal/adapter/storage/memory"
	"github.com/bookstore/orderservice/internal/adapter/storage/repository"
	"github.com/bookstore/orderservice/internal/core/domain"
	"github.com/bookstore/orderservice/internal/core/port"
	"github.com/bookstore/orderservice/internal/core/service"
	"go.uber.org/zap"
)

//go:generate swag init -g cmd/bookstore/main.go -d ../../ -o ../../docs

//	@title						Bookstore order service
//	@version					1.0
//	@description				Orders, stock commitment and VNPay payments for the bookstore.
//	@BasePath					/api
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
func main() {
	conf, err := config.NewConfig()
	if err != nil {
		fmt.Printf("config error:%s", err)
		return
	}

	log := logger.NewLogger(conf.App)
	if log == nil {
		fmt.Printf("error creating log")
		return
	}
	defer func() {
		err := log.Sync()
		if err != nil {
			fmt.Printf("log error: %s", err)
		}
	}()

	tokenService, err := auth.New(conf.Token)
	if err != nil {
		log.Error("token service creating error", zap.Error(err))
		return
	}

	if conf.App.IssueToken != "" {
		if err := issueToken(tokenService, conf.App.IssueToken); err != nil {
			log.Error("token issue error", zap.Error(err))
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var repo port.Repository
	if conf.Database.DSN != "" {
		db, err := storage.NewDBStorage(ctx, conf.Database)
		if err != nil {
			log.Error("database error", zap.Error(err))
			return
		}
		defer db.Close()

		err = db.RunMigrations()
		if err != nil {
			log.Error("database migration error", zap.Error(err))
			return
		}

		repo, err = repository.NewRepository(db)
		if err != nil {
			log.Error("order repo creating error", zap.Error(err))
			return
		}
	} else {
		log.Warn("no database configured, using in-memory store")
		repo = memory.NewRepository()
	}

	gateway, err := vnpay.NewClient(conf.VNPay, log.Named("VNPay"))
	if err != nil {
		log.Error("vnpay client creating error", zap.Error(err))
		return
	}

	var orderCache port.Cache
	if conf.Redis.Addr != "" {
		orderCache, err = cache.NewRedisCache(ctx, conf.Redis)
		if err != nil {
			log.Error("redis cache creating error", zap.Error(err))
			return
		}
	} else {
		orderCache = cache.NewNoopCache()
	}

	var publisher port.OrderEventPublisher
	if conf.Broker.URL != "" {
		p, err := broker.NewPublisher(conf.Broker, log.Named("Broker"))
		if err != nil {
			log.Error("broker publisher creating error", zap.Error(err))
			return
		}
		defer p.Close()
		p.Start(ctx, conf.Broker.Workers)
		publisher = p
	} else {
		publisher = broker.NewLogPublisher(log.Named("Events"))
	}

	svc, err := service.NewService(repo, gateway, orderCache, publisher, log.Named("Service"))
	if err != nil {
		log.Error("order service creating error", zap.Error(err))
		return
	}

	orderHandler, err := http.NewOrderHandler(svc, log.Named("Order handler"))
	if err != nil {
		log.Error("order handler creating error", zap.Error(err))
		return
	}
	bookHandler, err := http.NewBookHandler(svc, log.Named("Book handler"))
	if err != nil {
		log.Error("book handler creating error", zap.Error(err))
		return
	}

	r, err := http.NewRouter(conf.HTTP, tokenService, orderHandler, bookHandler, log.Named("Router"))
	if err != nil {
		log.Error("router creating error", zap.Error(err))
		return
	}

	err = r.Serve(ctx, conf.HTTP.HostString)
	if err != nil {
		log.Error("router serve error", zap.Error(err))
		return
	}
}

// issueToken prints a bearer token for "username:role".
func issueToken(ts port.TokenService, principal string) error {
	username, role, found := strings.Cut(principal, ":")
	if !found {
		role = string(domain.RoleCustomer)
	}
	user := &domain.User{Username: username, Role: domain.Role(strings.ToUpper(role))}
	if user.Username == "" || (user.Role != domain.RoleCustomer && user.Role != domain.RoleAdmin) {
		return fmt.Errorf("%w: expected username:CUSTOMER|ADMIN, got %q", domain.ErrBadRequest, principal)
	}

	token, err := ts.CreateToken(user)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
