// Package oracle quotes the native asset against a fiat currency.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrUnavailable = errors.New("price oracle unavailable")
	ErrMalformed   = errors.New("malformed price response")
)

// Config configures a CoinGecko style simple price lookup.
type Config struct {
	URL        string
	CoinID     string
	VsCurrency string
	// RateLimit is the sustained requests per second; zero disables limiting.
	RateLimit float64
	Burst     int
}

// Client queries /simple/price.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

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

// New creates an oracle client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("oracle url is required")
	}
	if cfg.CoinID == "" || cfg.VsCurrency == "" {
		return nil, fmt.Errorf("oracle coin id and currency are required")
	}
	c := &Client{
		cfg:        cfg,
		httpClient: http.DefaultClient,
		logger:     zap.NewNop(),
	}
	c.cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.Burst, 1))
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Price returns the latest quote. The body shape is {"<coin>":{"<currency>":0.1}}.
func (c *Client) Price(ctx context.Context) (decimal.Decimal, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return decimal.Zero, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
	}

	q := url.Values{}
	q.Set("ids", c.cfg.CoinID)
	q.Set("vs_currencies", c.cfg.VsCurrency)
	endpoint := c.cfg.URL + "/simple/price?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var body map[string]map[string]decimal.NullDecimal
	if err := json.Unmarshal(data, &body); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	price, ok := body[c.cfg.CoinID][c.cfg.VsCurrency]
	if !ok || !price.Valid {
		return decimal.Zero, fmt.Errorf("%w: no %s/%s quote", ErrMalformed, c.cfg.CoinID, c.cfg.VsCurrency)
	}

	c.logger.Debug("price fetched",
		zap.String("coin", c.cfg.CoinID),
		zap.String("price", price.Decimal.String()),
		zap.Duration("elapsed", time.Since(start)))
	return price.Decimal, nil
}
