package relay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Exchange authentication headers.
const (
	HeaderKey        = "CB-ACCESS-KEY"
	HeaderSign       = "CB-ACCESS-SIGN"
	HeaderTimestamp  = "CB-ACCESS-TIMESTAMP"
	HeaderPassphrase = "CB-ACCESS-PASSPHRASE"
)

// Credentials are the exchange API credentials. Secret is base64 encoded.
type Credentials struct {
	Key        string
	Secret     string
	Passphrase string
}

// Signer produces exchange request signatures.
type Signer struct {
	key        string
	secret     []byte
	passphrase string
	now        func() time.Time
}

// NewSigner decodes the credentials' secret.
func NewSigner(c Credentials) (*Signer, error) {
	if c.Key == "" || c.Secret == "" || c.Passphrase == "" {
		return nil, fmt.Errorf("exchange key, secret and passphrase are required")
	}
	secret, err := base64.StdEncoding.DecodeString(c.Secret)
	if err != nil {
		return nil, fmt.Errorf("decode exchange secret: %w", err)
	}
	return &Signer{key: c.Key, secret: secret, passphrase: c.Passphrase, now: time.Now}, nil
}

// Sign returns hex(HMAC-SHA256(secret, timestamp+method+path+body)).
func (s *Signer) Sign(timestamp, method, path, body string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(timestamp + method + path + body))
	return hex.EncodeToString(mac.Sum(nil))
}

// Authorize sets the authentication headers on req. The timestamp is in unix seconds.
func (s *Signer) Authorize(req *http.Request, path string, body []byte) {
	ts := strconv.FormatInt(s.now().Unix(), 10)
	req.Header.Set(HeaderKey, s.key)
	req.Header.Set(HeaderSign, s.Sign(ts, req.Method, path, string(body)))
	req.Header.Set(HeaderTimestamp, ts)
	req.Header.Set(HeaderPassphrase, s.passphrase)
	req.Header.Set("Content-Type", "application/json")
}
