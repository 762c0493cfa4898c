package conversion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRelay(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL+"/coinbase/", WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func TestOnRamp(t *testing.T) {
	c := newRelay(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/coinbase/onramp", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "10", req["usdAmount"])
		_, _ = w.Write([]byte(`{"usdcAmount":"9.98"}`))
	})

	got, err := c.OnRamp(context.Background(), decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("9.98")))
}

func TestOffRamp_NumericAmount(t *testing.T) {
	c := newRelay(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/coinbase/offramp", r.URL.Path)
		_, _ = w.Write([]byte(`{"usdAmount":10}`))
	})

	got, err := c.OffRamp(context.Background(), decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(10)))
}

func TestOnRamp_ErrorBody(t *testing.T) {
	c := newRelay(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"insufficient funds"}`))
	})

	_, err := c.OnRamp(context.Background(), decimal.NewFromInt(10))
	var ce *Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, DirectionOnRamp, ce.Direction)
	assert.Equal(t, http.StatusBadGateway, ce.Status)
	assert.Equal(t, "insufficient funds", ce.Message)
}

func TestOnRamp_Malformed(t *testing.T) {
	c := newRelay(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected":true}`))
	})
	_, err := c.OnRamp(context.Background(), decimal.NewFromInt(10))
	assert.ErrorIs(t, err, ErrMalformedResponse)

	c = newRelay(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	_, err = c.OffRamp(context.Background(), decimal.NewFromInt(10))
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient("")
	assert.Error(t, err)
}
