package horizon

import (
	"errors"
	"time"
)

const (
	// TestnetPassphrase identifies the public test network.
	TestnetPassphrase = "Test SDF Network ; September 2015"
	// DefaultBaseFee is the per-operation fee in stroops.
	DefaultBaseFee = 100
)

// Config contains the settings required to talk to a Horizon server.
type Config struct {
	URL               string
	NetworkPassphrase string
	BaseFee           uint32

	// Friendbot enables faucet funding through the server's /friendbot endpoint.
	Friendbot bool

	// FundingRate and FundingBurst throttle faucet requests. Zero disables throttling.
	FundingRate  float64
	FundingBurst int

	// MinTimeBound is subtracted from now for the lower time bound to absorb clock skew.
	MinTimeBound time.Duration
}

func (cfg *Config) validate() error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if cfg.URL == "" {
		return errors.New("horizon url is required")
	}
	if cfg.NetworkPassphrase == "" {
		return errors.New("network passphrase is required")
	}
	return nil
}
