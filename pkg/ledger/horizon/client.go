// Package horizon implements ledger.Gateway against a Horizon server and its
// friendbot faucet.
package horizon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/clients/horizonclient"
	hProtocol "github.com/stellar/go/protocols/horizon"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chainsafe/anchor-orchestrator/pkg/asset"
	"github.com/chainsafe/anchor-orchestrator/pkg/keys"
	"github.com/chainsafe/anchor-orchestrator/pkg/ledger"
)

const appName = "anchor-orchestrator"

// Client is a Horizon-backed ledger gateway.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
	limiter    *rate.Limiter
}

var _ ledger.Gateway = (*Client)(nil)

// New creates a Horizon client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid horizon config: %w", err)
	}
	if cfg.BaseFee == 0 {
		cfg.BaseFee = DefaultBaseFee
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")

	s := applyOptions(opts)
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.FundingRate > 0 {
		burst := cfg.FundingBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.FundingRate), burst)
	}

	return &Client{
		cfg:        cfg,
		httpClient: s.httpClient,
		logger:     s.logger,
		now:        s.now,
		limiter:    limiter,
	}, nil
}

// horizon returns a Horizon client whose requests are bound to ctx.
func (c *Client) horizon(ctx context.Context) *horizonclient.Client {
	return &horizonclient.Client{
		HorizonURL: c.cfg.URL,
		HTTP:       contextHTTP{ctx: ctx, client: c.httpClient},
		AppName:    appName,
	}
}

// RequestFunding asks friendbot to create and fund address.
func (c *Client) RequestFunding(ctx context.Context, address string) error {
	if !c.cfg.Friendbot {
		return fmt.Errorf("%w: friendbot disabled", ledger.ErrFundingRejected)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("funding rate limit wait: %w", err)
	}

	if _, err := c.horizon(ctx).Fund(address); err != nil {
		if herr := horizonclient.GetError(err); herr != nil {
			return fmt.Errorf("%w: status %d: %s", ledger.ErrFundingRejected, herr.Problem.Status, problemMessage(herr))
		}
		return fmt.Errorf("friendbot request failed: %w", err)
	}

	c.logger.Debug("friendbot funded account", zap.String("address", address))
	return nil
}

// LoadAccount fetches the account's sequence and balances.
func (c *Client) LoadAccount(ctx context.Context, address string) (*ledger.Account, error) {
	detail, err := c.horizon(ctx).AccountDetail(horizonclient.AccountRequest{AccountID: address})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, address)
		}
		if herr := horizonclient.GetError(err); herr != nil {
			return nil, fmt.Errorf("load account %s: status %d: %s", address, herr.Problem.Status, problemMessage(herr))
		}
		return nil, fmt.Errorf("account request failed: %w", err)
	}
	return toAccount(address, detail)
}

func toAccount(address string, detail hProtocol.Account) (*ledger.Account, error) {
	acct := &ledger.Account{Address: address, Sequence: detail.Sequence}
	for _, b := range detail.Balances {
		amt, err := decimal.NewFromString(b.Balance)
		if err != nil {
			return nil, fmt.Errorf("invalid balance %q: %w", b.Balance, err)
		}
		acct.Balances = append(acct.Balances, ledger.Balance{
			AssetType:   asset.Type(b.Type),
			AssetCode:   b.Code,
			AssetIssuer: b.Issuer,
			Amount:      amt,
		})
	}
	return acct, nil
}

// Submit signs tx with signer and posts it. On success the source account's
// in-memory sequence is advanced.
func (c *Client) Submit(ctx context.Context, tx *ledger.Transaction, signer *keys.KeyPair) (*ledger.Result, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	if signer == nil {
		return nil, errors.New("signer is required")
	}

	built, err := c.buildTransaction(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}
	signed, err := built.Sign(c.cfg.NetworkPassphrase, signer.Full())
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	resp, err := c.horizon(ctx).SubmitTransactionWithOptions(signed, horizonclient.SubmitTxOpts{SkipMemoRequiredCheck: true})
	if err != nil {
		if herr := horizonclient.GetError(err); herr != nil {
			return nil, submitError(herr)
		}
		return nil, fmt.Errorf("submit request failed: %w", err)
	}
	tx.Source.Sequence++

	c.logger.Debug("transaction accepted",
		zap.String("source", tx.Source.Address),
		zap.String("hash", resp.Hash),
		zap.Int32("ledger", resp.Ledger),
		zap.Int("operations", len(tx.Operations)),
	)
	return &ledger.Result{Hash: resp.Hash, Ledger: int64(resp.Ledger)}, nil
}

func submitError(herr *horizonclient.Error) *ledger.SubmitError {
	se := &ledger.SubmitError{Status: herr.Problem.Status, Detail: problemMessage(herr)}
	if se.Status == 0 && herr.Response != nil {
		se.Status = herr.Response.StatusCode
	}
	if codes, err := herr.ResultCodes(); err == nil {
		se.TxCode = codes.TransactionCode
		se.OperationCodes = codes.OperationCodes
	}
	return se
}

func problemMessage(herr *horizonclient.Error) string {
	if herr.Problem.Detail != "" {
		return herr.Problem.Detail
	}
	return herr.Problem.Title
}

func isNotFound(err error) bool {
	if horizonclient.IsNotFoundError(err) {
		return true
	}
	herr := horizonclient.GetError(err)
	return herr != nil && herr.Response != nil && herr.Response.StatusCode == http.StatusNotFound
}

// contextHTTP adapts an *http.Client to horizonclient.HTTP, binding every
// request to ctx.
type contextHTTP struct {
	ctx    context.Context
	client *http.Client
}

func (h contextHTTP) Do(req *http.Request) (*http.Response, error) {
	return h.client.Do(req.WithContext(h.ctx))
}

func (h contextHTTP) Get(u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(h.ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return h.client.Do(req)
}

func (h contextHTTP) PostForm(u string, data url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(h.ctx, http.MethodPost, u, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.client.Do(req)
}
