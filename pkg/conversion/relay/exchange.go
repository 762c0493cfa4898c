package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	ordersPath   = "/orders"
	accountsPath = "/accounts"
	maxBody      = 1 << 20
)

// Order is a market order. Field order matches the signed body.
type Order struct {
	Side      string `json:"side"`
	ProductID string `json:"product_id"`
	Type      string `json:"type"`
	Funds     string `json:"funds,omitempty"`
	Size      string `json:"size,omitempty"`
}

// BuyFunds returns a market buy spending funds of the quote currency.
func BuyFunds(productID string, funds decimal.Decimal) Order {
	return Order{Side: "buy", ProductID: productID, Type: "market", Funds: funds.String()}
}

// SellSize returns a market sell of size units of the base currency.
func SellSize(productID string, size decimal.Decimal) Order {
	return Order{Side: "sell", ProductID: productID, Type: "market", Size: size.String()}
}

// Fill is the subset of the order response the relay uses.
type Fill struct {
	ID          string              `json:"id"`
	Status      string              `json:"status"`
	FilledSize  decimal.NullDecimal `json:"filled_size"`
	FilledFunds decimal.NullDecimal `json:"filled_funds"`
}

// UpstreamError carries a non-2xx exchange response.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("exchange returned status %d: %s", e.Status, e.Body)
}

// Exchanger is the exchange surface used by the relay handlers.
type Exchanger interface {
	PlaceOrder(ctx context.Context, o Order) (*Fill, error)
	Accounts(ctx context.Context) ([]byte, error)
}

// Exchange is a signed client for the sandbox exchange REST API.
type Exchange struct {
	baseURL    string
	signer     *Signer
	httpClient *http.Client
	logger     *zap.Logger
}

var _ Exchanger = (*Exchange)(nil)

// Option configures the exchange client.
type Option func(*Exchange)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(x *Exchange) { x.httpClient = c }
}

// WithLogger sets a custom logger.
func WithLogger(l *zap.Logger) Option {
	return func(x *Exchange) { x.logger = l }
}

// NewExchange creates an exchange client.
func NewExchange(baseURL string, signer *Signer, opts ...Option) (*Exchange, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("exchange url is required")
	}
	if signer == nil {
		return nil, fmt.Errorf("exchange signer is required")
	}
	x := &Exchange{
		baseURL:    strings.TrimRight(baseURL, "/"),
		signer:     signer,
		httpClient: http.DefaultClient,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(x)
		}
	}
	return x, nil
}

// PlaceOrder submits o and returns the fill reported by the exchange.
func (x *Exchange) PlaceOrder(ctx context.Context, o Order) (*Fill, error) {
	body, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order: %w", err)
	}
	data, err := x.do(ctx, http.MethodPost, ordersPath, body)
	if err != nil {
		return nil, err
	}

	var fill Fill
	if err := json.Unmarshal(data, &fill); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}
	x.logger.Info("order placed",
		zap.String("side", o.Side),
		zap.String("product_id", o.ProductID),
		zap.String("order_id", fill.ID),
		zap.String("status", fill.Status))
	return &fill, nil
}

// Accounts returns the raw /accounts response, used as a connectivity check.
func (x *Exchange) Accounts(ctx context.Context) ([]byte, error) {
	return x.do(ctx, http.MethodGet, accountsPath, nil)
}

func (x *Exchange) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, x.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create exchange request: %w", err)
	}
	x.signer.Authorize(req, path, body)

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exchange request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read exchange response: %w", err)
	}
	x.logger.Debug("exchange response",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode/100 != 2 {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}
