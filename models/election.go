package models

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// RevealWindow is how long, in seconds, voters have after VotingEnd to reveal.
const RevealWindow int64 = 86400

// Election is the configuration of one election. ExclusiveRoles is the role
// policy in force at creation and stays fixed for the life of the election.
type Election struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Admin          common.Address `json:"admin"`
	VotingStart    int64          `json:"voting_start"`
	VotingEnd      int64          `json:"voting_end"`
	Active         bool           `json:"active"`
	CreatedAt      int64          `json:"created_at"`
	ExclusiveRoles bool           `json:"exclusive_roles"`
}

// RevealDeadline is the first second at which reveals are no longer accepted.
func (e Election) RevealDeadline() int64 {
	return e.VotingEnd + RevealWindow
}

// Validate checks the creation invariants of an election.
func (e Election) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("%w: election name is required", ErrInvalidInput)
	}
	if e.Admin == (common.Address{}) {
		return fmt.Errorf("%w: election admin is required", ErrInvalidInput)
	}
	if e.VotingStart <= 0 || e.VotingEnd <= 0 {
		return fmt.Errorf("%w: voting window must be set", ErrInvalidInput)
	}
	if e.VotingStart >= e.VotingEnd {
		return fmt.Errorf("%w: voting start %d must be before voting end %d", ErrInvalidInput, e.VotingStart, e.VotingEnd)
	}
	return nil
}
