package relay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSandbox(t *testing.T, h http.HandlerFunc) *Exchange {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	x, err := NewExchange(srv.URL+"/", testSigner(t), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return x
}

func TestPlaceOrder_SignedBody(t *testing.T) {
	x := newSandbox(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, buyTenBody, string(body))
		assert.Equal(t, "ef66fdce0977a581b35f1d489153bedeb81eb67c148b426489523b71b4678f6e", r.Header.Get(HeaderSign))
		_, _ = w.Write([]byte(`{"id":"o-1","status":"done","filled_size":"9.98000000","filled_funds":"10.0000000000000000"}`))
	})

	fill, err := x.PlaceOrder(context.Background(), BuyFunds("USDC-USD", decimal.NewFromInt(10)))
	require.NoError(t, err)
	assert.Equal(t, "o-1", fill.ID)
	assert.True(t, fill.FilledSize.Decimal.Equal(decimal.RequireFromString("9.98")))
}

func TestSellSize_Body(t *testing.T) {
	x := newSandbox(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"side":"sell","product_id":"USDC-USD","type":"market","size":"9.5"}`, string(body))
		_, _ = w.Write([]byte(`{"id":"o-2","filled_funds":"9.49"}`))
	})

	fill, err := x.PlaceOrder(context.Background(), SellSize("USDC-USD", decimal.RequireFromString("9.5")))
	require.NoError(t, err)
	assert.True(t, fill.FilledFunds.Valid)
	assert.False(t, fill.FilledSize.Valid)
}

func TestPlaceOrder_Upstream(t *testing.T) {
	x := newSandbox(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Insufficient funds"}`))
	})

	_, err := x.PlaceOrder(context.Background(), BuyFunds("USDC-USD", decimal.NewFromInt(10)))
	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusBadRequest, ue.Status)
	assert.Contains(t, ue.Body, "Insufficient funds")
}

func TestAccounts(t *testing.T) {
	x := newSandbox(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/accounts", r.URL.Path)
		assert.Equal(t, "62ef2676b8c925c1703370441693b3b48c783d87fa65bf2533a80f26e69979e6", r.Header.Get(HeaderSign))
		_, _ = w.Write([]byte(`[{"currency":"USDC"}]`))
	})

	data, err := x.Accounts(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `[{"currency":"USDC"}]`, string(data))
}
