package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bookstore/orderservice/internal/adapter/config"
	"github.com/bookstore/orderservice/internal/core/domain"
	"go.uber.org/zap"
)

const (
	version      = "2.1.0"
	commandPay   = "pay"
	currencyCode = "VND"
	orderType    = "other"
	locale       = "vn"
	dateLayout   = "20060102150405"

	paramSecureHash     = "vnp_SecureHash"
	paramSecureHashType = "vnp_SecureHashType"
)

// VNPay timestamps are always in Indochina time.
var gatewayZone = time.FixedZone("ICT", 7*60*60)

type Client struct {
	payURL     string
	returnURL  string
	tmnCode    string
	hashSecret []byte
	expiry     time.Duration
	logger     *zap.Logger
}

func NewClient(cfg *config.VNPay, log *zap.Logger) (*Client, error) {
	if _, err := url.Parse(cfg.PayURL); err != nil {
		return nil, fmt.Errorf("invalid vnpay url: %w", err)
	}
	if cfg.Expiry <= 0 {
		return nil, fmt.Errorf("vnpay expiry must be positive, got %s", cfg.Expiry)
	}

	return &Client{
		payURL:     cfg.PayURL,
		returnURL:  cfg.ReturnURL,
		tmnCode:    cfg.TmnCode,
		hashSecret: []byte(cfg.HashSecret),
		expiry:     cfg.Expiry,
		logger:     log,
	}, nil
}

func (c *Client) PaymentURL(order *domain.Order, clientIP string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(c.expiry)

	params := url.Values{}
	params.Set("vnp_Version", version)
	params.Set("vnp_Command", commandPay)
	params.Set("vnp_TmnCode", c.tmnCode)
	params.Set("vnp_Amount", strconv.FormatInt(order.TotalPrice*100, 10))
	params.Set("vnp_CurrCode", currencyCode)
	params.Set("vnp_TxnRef", order.ID.String())
	params.Set("vnp_OrderInfo", "Thanh toan don hang:"+order.ID.String())
	params.Set("vnp_OrderType", orderType)
	params.Set("vnp_Locale", locale)
	params.Set("vnp_ReturnUrl", c.returnURL)
	params.Set("vnp_IpAddr", clientIP)
	params.Set("vnp_CreateDate", now.In(gatewayZone).Format(dateLayout))
	params.Set("vnp_ExpireDate", expiresAt.In(gatewayZone).Format(dateLayout))
	for key := range params {
		if params.Get(key) == "" {
			params.Del(key)
		}
	}

	// Encode sorts by key, which is the canonical form the gateway signs.
	query := params.Encode()
	paymentURL := c.payURL + "?" + query + "&" + paramSecureHash + "=" + c.sign(query)

	c.logger.Debug("Payment url generated",
		zap.String("order", order.ID.String()), zap.Time("expires", expiresAt))

	return paymentURL, expiresAt, nil
}

func (c *Client) ParseCallback(query url.Values) (*domain.PaymentCallback, error) {
	code := query.Get("vnp_ResponseCode")
	if code == "" {
		return nil, fmt.Errorf("%w: vnp_ResponseCode is missing", domain.ErrBadRequest)
	}

	amount, err := strconv.ParseInt(query.Get("vnp_Amount"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: vnp_Amount: %s", domain.ErrBadRequest, err)
	}

	return &domain.PaymentCallback{
		OrderRef:      query.Get("vnp_TxnRef"),
		ResponseCode:  code,
		Amount:        amount,
		TransactionNo: query.Get("vnp_TransactionNo"),
		BankCode:      query.Get("vnp_BankCode"),
	}, nil
}

func (c *Client) VerifyCallback(query url.Values) error {
	received := strings.ToLower(query.Get(paramSecureHash))
	if received == "" {
		return domain.ErrInvalidSignature
	}

	signed := url.Values{}
	for key, values := range query {
		if !strings.HasPrefix(key, "vnp_") || key == paramSecureHash || key == paramSecureHashType {
			continue
		}
		if len(values) > 0 && values[0] != "" {
			signed.Set(key, values[0])
		}
	}

	expected := c.sign(signed.Encode())
	if !hmac.Equal([]byte(expected), []byte(received)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

func (c *Client) sign(data string) string {
	mac := hmac.New(sha512.New, c.hashSecret)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}
