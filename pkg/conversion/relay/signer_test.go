package relay

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret    = "c2FuZGJveC1zZWNyZXQtMDEyMzQ1Njc4OQ=="
	testTimestamp = int64(1700000000)
	buyTenBody    = `{"side":"buy","product_id":"USDC-USD","type":"market","funds":"10"}`
)

func testSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner(Credentials{Key: "key", Secret: testSecret, Passphrase: "phrase"})
	require.NoError(t, err)
	s.now = func() time.Time { return time.Unix(testTimestamp, 0) }
	return s
}

func TestSigner_Sign(t *testing.T) {
	s := testSigner(t)

	assert.Equal(t,
		"ef66fdce0977a581b35f1d489153bedeb81eb67c148b426489523b71b4678f6e",
		s.Sign("1700000000", http.MethodPost, "/orders", buyTenBody))
	assert.Equal(t,
		"62ef2676b8c925c1703370441693b3b48c783d87fa65bf2533a80f26e69979e6",
		s.Sign("1700000000", http.MethodGet, "/accounts", ""))
}

func TestSigner_Authorize(t *testing.T) {
	s := testSigner(t)
	req, err := http.NewRequest(http.MethodGet, "http://sandbox/accounts", nil)
	require.NoError(t, err)

	s.Authorize(req, "/accounts", nil)

	assert.Equal(t, "key", req.Header.Get(HeaderKey))
	assert.Equal(t, "phrase", req.Header.Get(HeaderPassphrase))
	assert.Equal(t, "1700000000", req.Header.Get(HeaderTimestamp))
	assert.Equal(t, "62ef2676b8c925c1703370441693b3b48c783d87fa65bf2533a80f26e69979e6", req.Header.Get(HeaderSign))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
}

func TestNewSigner_Errors(t *testing.T) {
	_, err := NewSigner(Credentials{Key: "key", Secret: "not base64!", Passphrase: "p"})
	assert.Error(t, err)
	_, err = NewSigner(Credentials{Secret: testSecret})
	assert.Error(t, err)
}
