package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockExchanger is an Exchanger test double.
type MockExchanger struct {
	PlaceOrderFunc func(ctx context.Context, o Order) (*Fill, error)
	AccountsFunc   func(ctx context.Context) ([]byte, error)
}

func (m *MockExchanger) PlaceOrder(ctx context.Context, o Order) (*Fill, error) {
	return m.PlaceOrderFunc(ctx, o)
}

func (m *MockExchanger) Accounts(ctx context.Context) ([]byte, error) {
	return m.AccountsFunc(ctx)
}

func newRelayServer(ex Exchanger) http.Handler {
	return NewRouter(ex, "USDC-USD", []string{"*"}, zap.NewNop())
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestOnRampHTTP(t *testing.T) {
	var got Order
	h := newRelayServer(&MockExchanger{PlaceOrderFunc: func(_ context.Context, o Order) (*Fill, error) {
		got = o
		return &Fill{FilledSize: decimal.NewNullDecimal(decimal.RequireFromString("9.98"))}, nil
	}})

	for _, path := range []string{"/onramp", "/coinbase/onramp"} {
		rec := post(t, h, path, `{"usdAmount":10}`)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, `{"usdcAmount":"9.98"}`, rec.Body.String())
		assert.Equal(t, BuyFunds("USDC-USD", decimal.NewFromInt(10)), got)
	}
}

func TestOffRampHTTP(t *testing.T) {
	h := newRelayServer(&MockExchanger{PlaceOrderFunc: func(_ context.Context, o Order) (*Fill, error) {
		assert.Equal(t, "sell", o.Side)
		assert.Equal(t, "10", o.Size)
		return &Fill{FilledFunds: decimal.NewNullDecimal(decimal.NewFromInt(10))}, nil
	}})

	rec := post(t, h, "/coinbase/offramp", `{"usdcAmount":"10"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"usdAmount":"10"}`, rec.Body.String())
}

func TestOnRampHTTP_UpstreamRejection(t *testing.T) {
	h := newRelayServer(&MockExchanger{PlaceOrderFunc: func(context.Context, Order) (*Fill, error) {
		return nil, &UpstreamError{Status: http.StatusBadRequest, Body: `{"message":"Insufficient funds"}`}
	}})

	rec := post(t, h, "/coinbase/onramp", `{"usdAmount":10}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Insufficient funds", resp.Error)
}

func TestOnRampHTTP_TransportFailure(t *testing.T) {
	h := newRelayServer(&MockExchanger{PlaceOrderFunc: func(context.Context, Order) (*Fill, error) {
		return nil, errors.New("dial tcp: connection refused")
	}})

	rec := post(t, h, "/onramp", `{"usdAmount":10}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestOnRampHTTP_BadRequest(t *testing.T) {
	h := newRelayServer(&MockExchanger{})

	rec := post(t, h, "/onramp", `{invalid`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, h, "/onramp", `{"usdAmount":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTestHTTP(t *testing.T) {
	h := newRelayServer(&MockExchanger{AccountsFunc: func(context.Context) ([]byte, error) {
		return []byte(`[]`), nil
	}})

	req := httptest.NewRequest(http.MethodGet, "/coinbase/test", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", rec.Body.String())
}
