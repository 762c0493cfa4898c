package party

import (
	"fmt"

	"github.com/chainsafe/anchor-orchestrator/pkg/keys"
)

// Registry owns the parties of a single run. It is immutable after construction.
type Registry struct {
	parties map[Role]*Party
}

// NewRegistry creates a registry with a fresh random keypair per role.
func NewRegistry() (*Registry, error) {
	return build(func(Role) (*keys.KeyPair, error) {
		return keys.Generate()
	})
}

// NewDerivedRegistry derives every party from masterSeed. runLabel separates
// runs so each run gets distinct accounts from the same master seed.
func NewDerivedRegistry(masterSeed []byte, runLabel string) (*Registry, error) {
	return build(func(role Role) (*keys.KeyPair, error) {
		return keys.Derive(masterSeed, runLabel+"/"+string(role))
	})
}

// NewRegistryFromKeys builds a registry from caller-supplied keypairs.
func NewRegistryFromKeys(kps map[Role]*keys.KeyPair) (*Registry, error) {
	return build(func(role Role) (*keys.KeyPair, error) {
		kp, ok := kps[role]
		if !ok || kp == nil {
			return nil, fmt.Errorf("missing keypair for %s", role)
		}
		return kp, nil
	})
}

func build(newKey func(Role) (*keys.KeyPair, error)) (*Registry, error) {
	r := &Registry{parties: make(map[Role]*Party, len(Roles))}
	for _, role := range Roles {
		kp, err := newKey(role)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s keypair: %w", role, err)
		}
		r.parties[role] = &Party{Role: role, Keys: kp}
	}
	return r, nil
}

// Get returns the party for role.
func (r *Registry) Get(role Role) (*Party, error) {
	p, ok := r.parties[role]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	return p, nil
}

// MustGet is Get for the fixed roles, which always exist in a built registry.
func (r *Registry) MustGet(role Role) *Party {
	p, err := r.Get(role)
	if err != nil {
		panic(err)
	}
	return p
}

func (r *Registry) Sender() *Party       { return r.MustGet(RoleSender) }
func (r *Registry) Intermediary() *Party { return r.MustGet(RoleIntermediary) }
func (r *Registry) Recipient() *Party    { return r.MustGet(RoleRecipient) }
func (r *Registry) Issuer() *Party       { return r.MustGet(RoleIssuer) }

// All returns every party in registry order.
func (r *Registry) All() []*Party {
	out := make([]*Party, 0, len(Roles))
	for _, role := range Roles {
		out = append(out, r.parties[role])
	}
	return out
}

// Public returns the role and address of every party.
func (r *Registry) Public() []Info {
	out := make([]Info, 0, len(Roles))
	for _, p := range r.All() {
		out = append(out, Info{Role: p.Role, Address: p.Address()})
	}
	return out
}
