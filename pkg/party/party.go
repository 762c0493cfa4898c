// Package party holds the identities that take part in one workflow run.
package party

import (
	"errors"
	"fmt"

	"github.com/chainsafe/anchor-orchestrator/pkg/keys"
)

// Role identifies a party's position in the transfer.
type Role string

const (
	RoleSender       Role = "sender"
	RoleIntermediary Role = "intermediary"
	RoleRecipient    Role = "recipient"
	RoleIssuer       Role = "issuer"
)

// Roles lists every role in registry order.
var Roles = []Role{RoleSender, RoleIntermediary, RoleRecipient, RoleIssuer}

// Holders lists the roles that hold the issued asset and need a trustline.
var Holders = []Role{RoleSender, RoleIntermediary, RoleRecipient}

var ErrUnknownRole = errors.New("unknown role")

// Party is one account participating in a run.
type Party struct {
	Role Role
	Keys *keys.KeyPair
}

// Address returns the party's public account address.
func (p *Party) Address() string {
	return p.Keys.Address()
}

// String never includes the signing seed.
func (p *Party) String() string {
	return fmt.Sprintf("%s(%s)", p.Role, p.Address())
}

// Info is the public view of a party.
type Info struct {
	Role    Role   `json:"role" yaml:"role"`
	Address string `json:"address" yaml:"address"`
}
