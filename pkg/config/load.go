package config

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load builds the configuration from struct defaults, the optional YAML file
// at configPath and environment variables. Environment keys are the upper-cased
// config path with "." replaced by "_", e.g. RELAY_API_SECRET.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	// Seed viper with every key so AutomaticEnv can override keys absent from the file.
	base, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode defaults: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadConfig(bytes.NewReader(base)); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks struct constraints and the decimal-valued settings.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	reserve, err := decimal.NewFromString(c.Workflow.FeeReserve)
	if err != nil || reserve.IsNegative() {
		return fmt.Errorf("workflow.fee_reserve must be a non-negative decimal")
	}
	rate, err := decimal.NewFromString(c.Oracle.FallbackRate)
	if err != nil || !rate.IsPositive() {
		return fmt.Errorf("oracle.fallback_rate must be a positive decimal")
	}
	return nil
}

// FeeReserveAmount returns the parsed workflow.fee_reserve.
func (c *WorkflowConfig) FeeReserveAmount() decimal.Decimal {
	return decimal.RequireFromString(c.FeeReserve)
}

// FallbackRateAmount returns the parsed oracle.fallback_rate.
func (c *OracleConfig) FallbackRateAmount() decimal.Decimal {
	return decimal.RequireFromString(c.FallbackRate)
}

// Address returns host:port for the server.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Address returns host:port for the relay.
func (c *RelayConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Redacted returns a copy safe to log or print.
func (c *Config) Redacted() Config {
	out := *c
	for _, s := range []*string{
		&out.Database.Password,
		&out.Workflow.Mnemonic,
		&out.Workflow.MnemonicPassphrase,
		&out.Relay.APISecret,
		&out.Relay.APIPassphrase,
		&out.Auth.JWTSecret,
	} {
		if *s != "" {
			*s = "[redacted]"
		}
	}
	return out
}
