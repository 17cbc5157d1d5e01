// Package payment предоставляет клиент для внешней платёжной системы.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status описывает состояние платежа на стороне платёжной системы.
type Status string

const (
	StatusSucceeded Status = "SUCCEEDED"
	StatusPending   Status = "PENDING"
	StatusDeclined  Status = "DECLINED"
)

// ErrNotConfigured возвращается, если адрес платёжной системы не задан.
var ErrNotConfigured = errors.New("payment client not configured")

// Client инкапсулирует HTTP-взаимодействие с платёжной системой.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ChargeRequest описывает запрос на списание средств с карты клиента.
// ID используется платёжной системой как ключ идемпотентности.
type ChargeRequest struct {
	ID         string          `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	CardNumber string          `json:"cardNumber"`
}

// Payment описывает ответ платёжной системы по одному платежу.
type Payment struct {
	ID     string          `json:"id"`
	Status Status          `json:"status"`
	Amount decimal.Decimal `json:"amount"`
}

// NewClient создаёт HTTP-клиент для обращения к платёжной системе по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Charge отправляет платёж. Возвращает ответ, код статуса HTTP и паузу из Retry-After для ответа 429.
func (c *Client) Charge(ctx context.Context, charge ChargeRequest) (*Payment, int, time.Duration, error) {
	body, err := json.Marshal(charge)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, "/api/payments", body)
}

// GetPayment запрашивает текущее состояние платежа.
func (c *Client) GetPayment(ctx context.Context, id string) (*Payment, int, time.Duration, error) {
	return c.do(ctx, http.MethodGet, "/api/payments/"+id, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*Payment, int, time.Duration, error) {
	if c == nil || c.baseURL == "" {
		return nil, 0, 0, ErrNotConfigured
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, reader)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return nil, resp.StatusCode, retryAfter, nil
	case http.StatusNotFound:
		return nil, resp.StatusCode, 0, nil
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
	default:
		return nil, resp.StatusCode, 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result Payment
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, resp.StatusCode, 0, fmt.Errorf("decode response: %w", err)
	}

	return &result, resp.StatusCode, 0, nil
}
