// Package asset describes ledger assets and fixed-precision amounts.
package asset

import (
	"errors"
	"fmt"
)

// Type mirrors the ledger's asset_type discriminator.
type Type string

const (
	TypeNative     Type = "native"
	TypeAlphaNum4  Type = "credit_alphanum4"
	TypeAlphaNum12 Type = "credit_alphanum12"
)

const (
	maxCodeLength   = 12
	shortCodeLength = 4
)

var (
	ErrInvalidCode   = errors.New("invalid asset code")
	ErrMissingIssuer = errors.New("issued asset requires an issuer")
)

// Asset identifies a unit of value. The zero value is the native asset.
type Asset struct {
	code   string
	issuer string
}

// Native returns the ledger's native asset.
func Native() Asset {
	return Asset{}
}

// NewIssued returns a non-native asset anchored to issuer.
func NewIssued(code, issuer string) (Asset, error) {
	if code == "" || len(code) > maxCodeLength {
		return Asset{}, fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	for _, r := range code {
		if !(r >= 'A' && r <= 'Z') && !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') {
			return Asset{}, fmt.Errorf("%w: %q", ErrInvalidCode, code)
		}
	}
	if issuer == "" {
		return Asset{}, ErrMissingIssuer
	}
	return Asset{code: code, issuer: issuer}, nil
}

// Code returns the asset code, "XLM" for the native asset.
func (a Asset) Code() string {
	if a.IsNative() {
		return "XLM"
	}
	return a.code
}

// Issuer returns the issuer address, empty for the native asset.
func (a Asset) Issuer() string {
	return a.issuer
}

// IsNative reports whether a is the native asset.
func (a Asset) IsNative() bool {
	return a.issuer == ""
}

// Type returns the ledger asset type for a.
func (a Asset) Type() Type {
	switch {
	case a.IsNative():
		return TypeNative
	case len(a.code) <= shortCodeLength:
		return TypeAlphaNum4
	default:
		return TypeAlphaNum12
	}
}

// Equal reports whether both assets name the same code and issuer.
func (a Asset) Equal(b Asset) bool {
	return a.code == b.code && a.issuer == b.issuer
}

func (a Asset) String() string {
	if a.IsNative() {
		return string(TypeNative)
	}
	return a.code + ":" + a.issuer
}
