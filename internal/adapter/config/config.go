package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	Database *Database
	HTTP     *HTTP
	Token    *Token
	VNPay    *VNPay
	Redis    *Redis
	Broker   *Broker
	App      *App
}

const AppModeProduction = "PROD"
const AppModeDevelop = "DEV"

type App struct {
	LogLevel string `env:"LOG_LEVEL"`
	Mode     string `env:"APP_MODE"`
	// IssueToken is "username:role"; when set the binary prints a token and exits.
	IssueToken string
}

type Database struct {
	DSN      string `env:"DATABASE_URI"`
	MaxConns int32  `env:"DATABASE_MAX_CONNS"`
}

type HTTP struct {
	HostString     string   `env:"RUN_ADDRESS"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

type Token struct {
	// SymmetricKeyHex is a 32 byte PASETO v4 local key; a random key is used when empty.
	SymmetricKeyHex string        `env:"TOKEN_SYMMETRIC_KEY"`
	Duration        time.Duration `env:"TOKEN_DURATION"`
}

type VNPay struct {
	PayURL     string        `env:"VNPAY_PAY_URL"`
	ReturnURL  string        `env:"VNPAY_RETURN_URL"`
	TmnCode    string        `env:"VNPAY_TMN_CODE"`
	HashSecret string        `env:"VNPAY_HASH_SECRET"`
	Expiry     time.Duration `env:"VNPAY_EXPIRY"`
}

type Redis struct {
	Addr string `env:"REDIS_ADDRESS"`
}

type Broker struct {
	URL      string `env:"AMQP_URL"`
	Exchange string `env:"AMQP_EXCHANGE"`
	Workers  int    `env:"AMQP_WORKERS"`
}

func NewConfig() (*Config, error) {
	// .env is optional; real environment variables take precedence over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	var db Database
	var http HTTP
	var token Token
	var vnpay VNPay
	var redis Redis
	var broker Broker
	var app App

	flag.StringVar(&db.DSN, "d", "", "Database string, in-memory store when empty")
	flag.StringVar(&http.HostString, "a", `localhost:8080`, "HTTP server endpoint")
	flag.StringVar(&app.LogLevel, "l", `error`, "Log level")
	flag.StringVar(&app.Mode, "m", AppModeDevelop, "PROD / DEV")
	flag.StringVar(&app.IssueToken, "issue-token", "", "Print a token for username:role and exit")
	flag.StringVar(&token.SymmetricKeyHex, "k", "", "Token symmetric key (hex)")
	flag.DurationVar(&token.Duration, "token-duration", 24*time.Hour, "Token lifetime")
	flag.StringVar(&vnpay.PayURL, "vnpay-url", `https://sandbox.vnpayment.vn/paymentv2/vpcpay.html`, "VNPay payment page")
	flag.StringVar(&vnpay.ReturnURL, "vnpay-return", `http://localhost:8080/api/orders/payment/return`, "VNPay return url")
	flag.StringVar(&vnpay.TmnCode, "vnpay-tmn", "", "VNPay terminal code")
	flag.StringVar(&vnpay.HashSecret, "vnpay-secret", "", "VNPay hash secret")
	flag.DurationVar(&vnpay.Expiry, "vnpay-expiry", 15*time.Minute, "VNPay payment url lifetime")
	flag.StringVar(&redis.Addr, "redis", "", "Redis address, cache disabled when empty")
	flag.StringVar(&broker.URL, "amqp", "", "AMQP url, events only logged when empty")
	flag.StringVar(&broker.Exchange, "amqp-exchange", "bookstore.orders", "AMQP topic exchange")
	flag.IntVar(&broker.Workers, "amqp-workers", 2, "AMQP publishing workers")
	flag.Parse()

	err := env.Parse(&db)
	if err != nil {
		return nil, fmt.Errorf("error parsing env database config: %w", err)
	}
	err = env.Parse(&http)
	if err != nil {
		return nil, fmt.Errorf("error parsing http config: %w", err)
	}
	err = env.Parse(&token)
	if err != nil {
		return nil, fmt.Errorf("error parsing token config: %w", err)
	}
	err = env.Parse(&vnpay)
	if err != nil {
		return nil, fmt.Errorf("error parsing vnpay config: %w", err)
	}
	err = env.Parse(&redis)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis config: %w", err)
	}
	err = env.Parse(&broker)
	if err != nil {
		return nil, fmt.Errorf("error parsing broker config: %w", err)
	}
	err = env.Parse(&app)
	if err != nil {
		return nil, fmt.Errorf("error parsing app config: %w", err)
	}

	config := Config{
		Database: &db,
		HTTP:     &http,
		Token:    &token,
		VNPay:    &vnpay,
		Redis:    &redis,
		Broker:   &broker,
		App:      &app,
	}

	return &config, nil
}
