package conversion

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

const maxBody = 1 << 20

// Client calls the relay's /onramp and /offramp endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ Gateway = (*Client)(nil)

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithLogger sets a custom logger.
func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// NewClient creates a relay client rooted at baseURL (for example
// http://localhost:3001/coinbase).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("conversion base url is required")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// OnRamp converts usd to the issued asset.
func (c *Client) OnRamp(ctx context.Context, usd decimal.Decimal) (decimal.Decimal, error) {
	var resp OnRampResponse
	if err := c.post(ctx, DirectionOnRamp, OnRampRequest{USDAmount: usd}, &resp); err != nil {
		return decimal.Zero, err
	}
	if !resp.USDCAmount.Valid {
		return decimal.Zero, fmt.Errorf("%w: missing usdcAmount", ErrMalformedResponse)
	}
	c.logger.Info("on-ramp completed",
		zap.String("usd", usd.String()),
		zap.String("usdc", resp.USDCAmount.Decimal.String()),
	)
	return resp.USDCAmount.Decimal, nil
}

// OffRamp converts usdc back to USD.
func (c *Client) OffRamp(ctx context.Context, usdc decimal.Decimal) (decimal.Decimal, error) {
	var resp OffRampResponse
	if err := c.post(ctx, DirectionOffRamp, OffRampRequest{USDCAmount: usdc}, &resp); err != nil {
		return decimal.Zero, err
	}
	if !resp.USDAmount.Valid {
		return decimal.Zero, fmt.Errorf("%w: missing usdAmount", ErrMalformedResponse)
	}
	c.logger.Info("off-ramp completed",
		zap.String("usdc", usdc.String()),
		zap.String("usd", resp.USDAmount.Decimal.String()),
	)
	return resp.USDAmount.Decimal, nil
}

func (c *Client) post(ctx context.Context, dir Direction, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", dir, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+string(dir), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", dir, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", dir, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", dir, err)
	}

	if resp.StatusCode/100 != 2 {
		var er ErrorResponse
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &er) == nil && er.Error != "" {
			msg = er.Error
		}
		return &Error{Direction: dir, Status: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
