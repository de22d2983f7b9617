// Package auth answers who is calling and whether they administer an election.
package auth

import (
	"github.com/ethereum/go-ethereum/common"

	"sealed-ballot/models"
)

// Authority decides whether caller may act as the administrator of election.
type Authority interface {
	IsAdmin(election models.Election, caller common.Address) bool
}

// OwnerAuthority accepts the wallet that created the election plus any
// configured operator wallets.
type OwnerAuthority struct {
	operators map[common.Address]struct{}
}

func NewOwnerAuthority(operators ...common.Address) *OwnerAuthority {
	set := make(map[common.Address]struct{}, len(operators))
	for _, operator := range operators {
		set[operator] = struct{}{}
	}
	return &OwnerAuthority{operators: set}
}

func (a *OwnerAuthority) IsAdmin(election models.Election, caller common.Address) bool {
	if caller == (common.Address{}) {
		return false
	}
	if caller == election.Admin {
		return true
	}
	_, ok := a.operators[caller]
	return ok
}
