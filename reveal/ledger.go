// Package reveal validates reveals against stored commitments and keeps the
// revealed tally.
package reveal

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"sealed-ballot/commitment"
	"sealed-ballot/models"
)

// Ledger is not safe for concurrent use; the owning election serializes access.
type Ledger struct {
	revealed map[common.Address]uint64
	tallies  map[uint64]uint64
	total    uint64
}

func NewLedger() *Ledger {
	return &Ledger{
		revealed: make(map[common.Address]uint64),
		tallies:  make(map[uint64]uint64),
	}
}

// Claim is a voter's opening of their commitment.
type Claim struct {
	Voter       common.Address
	CandidateID uint64
	Secret      *uint256.Int
}

// CheckReveal validates claim in a fixed order: phase, commitment present, not
// yet revealed, commitment matches, candidate approved.
func (l *Ledger) CheckReveal(current models.Phase, claim Claim, stored models.Commitment, committed bool, candidateApproved bool) error {
	if current != models.PhaseReveal {
		return fmt.Errorf("%w: reveals are accepted during reveal, election is %s", models.ErrWrongPhase, current)
	}
	if !committed {
		return fmt.Errorf("%w: %s", models.ErrNoCommitment, claim.Voter.Hex())
	}
	if l.HasRevealed(claim.Voter) {
		return fmt.Errorf("%w: %s", models.ErrAlreadyRevealed, claim.Voter.Hex())
	}

	ok, err := commitment.Verify(claim.CandidateID, claim.Secret, stored.Hash)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrCommitmentMismatch, claim.Voter.Hex())
	}

	if !candidateApproved {
		return fmt.Errorf("%w: candidate %d", models.ErrUnknownCandidate, claim.CandidateID)
	}
	return nil
}

// Record marks voter as revealed and adds one vote to candidateID.
func (l *Ledger) Record(voter common.Address, candidateID uint64) (uint64, error) {
	if l.HasRevealed(voter) {
		return 0, fmt.Errorf("%w: %s", models.ErrAlreadyRevealed, voter.Hex())
	}
	l.revealed[voter] = candidateID
	l.tallies[candidateID]++
	l.total++
	return l.tallies[candidateID], nil
}

func (l *Ledger) HasRevealed(voter common.Address) bool {
	_, ok := l.revealed[voter]
	return ok
}

func (l *Ledger) RevealedCount(candidateID uint64) uint64 {
	return l.tallies[candidateID]
}

// Tallies returns a copy of the per-candidate counts.
func (l *Ledger) Tallies() map[uint64]uint64 {
	result := make(map[uint64]uint64, len(l.tallies))
	for id, count := range l.tallies {
		result[id] = count
	}
	return result
}

// Total is the number of successful reveals.
func (l *Ledger) Total() uint64 {
	return l.total
}
