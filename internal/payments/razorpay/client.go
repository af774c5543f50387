package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultBaseURL  = "https://api.razorpay.com"
	defaultTimeout  = 15 * time.Second
	maxReceiptLen   = 40
	maxResponseSize = 1 << 20
)

var (
	// ErrNotConfigured - не заданы ключи API
	ErrNotConfigured = errors.New("razorpay api credentials are not configured")
	// ErrUpstream - провайдер отклонил запрос или недоступен
	ErrUpstream = errors.New("razorpay api request failed")
)

// ClientConfig - параметры клиента API заказов
type ClientConfig struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Currency  string
	Timeout   time.Duration
}

// Client создаёт заказы на стороне провайдера. Повторов нет: повтор может создать дубликат заказа.
type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	currency  string
	http      *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		currency:  cfg.Currency,
		http:      &http.Client{Timeout: cfg.Timeout},
	}
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes"`
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder создаёт заказ провайдера; merchantTransactionID попадает в notes,
// чтобы асинхронный вебхук можно было сопоставить с заказом. Ответ возвращается как есть.
func (c *Client) CreateOrder(ctx context.Context, amount int64, merchantTransactionID string) (json.RawMessage, error) {
	if c.keyID == "" || c.keySecret == "" {
		return nil, ErrNotConfigured
	}

	receipt := merchantTransactionID
	if len(receipt) > maxReceiptLen {
		receipt = receipt[:maxReceiptLen]
	}
	body, err := json.Marshal(createOrderRequest{
		Amount:   amount,
		Currency: c.currency,
		Receipt:  receipt,
		Notes:    map[string]string{NoteMerchantTransactionID: merchantTransactionID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", ErrUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Description != "" {
			return nil, fmt.Errorf("%w (%d): %s", ErrUpstream, resp.StatusCode, apiErr.Error.Description)
		}
		return nil, fmt.Errorf("%w (%d): %s", ErrUpstream, resp.StatusCode, string(respBody))
	}
	if !json.Valid(respBody) {
		return nil, fmt.Errorf("%w: response is not valid json", ErrUpstream)
	}

	return json.RawMessage(respBody), nil
}
