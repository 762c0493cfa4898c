package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOracle(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{URL: srv.URL + "/api/v3/", CoinID: "stellar", VsCurrency: "usd"}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func TestPrice(t *testing.T) {
	c := newOracle(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/simple/price", r.URL.Path)
		assert.Equal(t, "stellar", r.URL.Query().Get("ids"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		_, _ = w.Write([]byte(`{"stellar":{"usd":0.1234}}`))
	})

	got, err := c.Price(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("0.1234")))
}

func TestPrice_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusTooManyRequests, `{"status":{"error_code":429}}`, ErrUnavailable},
		{"not json", http.StatusOK, `<html>`, ErrMalformed},
		{"missing coin", http.StatusOK, `{}`, ErrMalformed},
		{"null price", http.StatusOK, `{"stellar":{"usd":null}}`, ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newOracle(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Price(context.Background())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPrice_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c, err := New(Config{URL: srv.URL, CoinID: "stellar", VsCurrency: "usd", RateLimit: 10, Burst: 1})
	require.NoError(t, err)

	_, err = c.Price(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{CoinID: "stellar", VsCurrency: "usd"})
	assert.Error(t, err)
	_, err = New(Config{URL: "http://x"})
	assert.Error(t, err)
}
