// Package keys provides ledger account keypairs for workflow parties.
// Parties use Stellar ed25519 keypairs (G... addresses, S... seeds).
// Keys can be random or derived deterministically from a master seed.
package keys

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/strkey"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/hkdf"
)

const (
	// SeedSize is the size of the ed25519 private seed.
	SeedSize = 32

	minMasterSeedSize = 32
)

var ErrInvalidStrkey = errors.New("invalid strkey")

// KeyPair is a signing keypair for a ledger account.
type KeyPair struct {
	full *keypair.Full
}

// Generate creates a random keypair.
func Generate() (*KeyPair, error) {
	full, err := keypair.Random()
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return &KeyPair{full: full}, nil
}

// FromRawSeed builds a keypair from a 32-byte ed25519 seed.
func FromRawSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	var raw [SeedSize]byte
	copy(raw[:], seed)
	full, err := keypair.FromRawSeed(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to build keypair: %w", err)
	}
	return &KeyPair{full: full}, nil
}

// ParseSeed builds a keypair from an S... strkey.
func ParseSeed(s string) (*KeyPair, error) {
	full, err := keypair.ParseFull(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStrkey, err)
	}
	return &KeyPair{full: full}, nil
}

// Derive deterministically derives a keypair for label from masterSeed.
// Uses HKDF with SHA-256, so the same (masterSeed, label) pair always yields the same key.
func Derive(masterSeed []byte, label string) (*KeyPair, error) {
	if len(masterSeed) < minMasterSeedSize {
		return nil, fmt.Errorf("master seed must be at least %d bytes", minMasterSeedSize)
	}
	reader := hkdf.New(sha256.New, masterSeed, nil, []byte("anchor-party-"+label))
	seed := make([]byte, SeedSize)
	if _, err := io.ReadFull(reader, seed); err != nil {
		return nil, fmt.Errorf("failed to derive key seed: %w", err)
	}
	return FromRawSeed(seed)
}

// MasterSeedFromMnemonic validates a BIP-39 mnemonic and returns its 64-byte seed.
func MasterSeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}
	return bip39.NewSeed(mnemonic, passphrase), nil
}

// NewMnemonic returns a fresh 24-word BIP-39 mnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", fmt.Errorf("failed to create entropy: %w", err)
	}
	return bip39.NewMnemonic(entropy)
}

// Address returns the public G... account address.
func (kp *KeyPair) Address() string {
	return kp.full.Address()
}

// Seed returns the private S... seed. Never log it.
func (kp *KeyPair) Seed() string {
	return kp.full.Seed()
}

// Full returns the underlying Stellar keypair used to sign transactions.
func (kp *KeyPair) Full() *keypair.Full {
	return kp.full
}

// Sign signs message with the private key.
func (kp *KeyPair) Sign(message []byte) ([]byte, error) {
	return kp.full.Sign(message)
}

// Verify checks signature against message.
func (kp *KeyPair) Verify(message, signature []byte) bool {
	return kp.full.Verify(message, signature) == nil
}

// DecodeAddress returns the raw public key of a G... address.
func DecodeAddress(address string) ([]byte, error) {
	pub, err := strkey.Decode(strkey.VersionByteAccountID, address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStrkey, err)
	}
	return pub, nil
}
