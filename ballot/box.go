// Package ballot stores sealed ballots: at most one commitment per voter, ever.
package ballot

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"sealed-ballot/models"
)

// Box is not safe for concurrent use; the owning election serializes access.
type Box struct {
	commitments map[common.Address]models.Commitment
	order       []common.Address
}

func NewBox() *Box {
	return &Box{commitments: make(map[common.Address]models.Commitment)}
}

// CheckCommit reports whether voter may commit hash now. approved and current
// come from the registry and the phase clock.
func (b *Box) CheckCommit(voter common.Address, hash common.Hash, approved bool, current models.Phase) error {
	if hash == (common.Hash{}) {
		return fmt.Errorf("%w: commitment is the zero hash", models.ErrInvalidInput)
	}
	if !approved {
		return fmt.Errorf("%w: %s", models.ErrNotApprovedVoter, voter.Hex())
	}
	if _, exists := b.commitments[voter]; exists {
		return fmt.Errorf("%w: %s", models.ErrAlreadyCommitted, voter.Hex())
	}
	if current != models.PhaseVoting {
		return fmt.Errorf("%w: commits are accepted during voting, election is %s", models.ErrWrongPhase, current)
	}
	return nil
}

// Record stores the commitment. It never overwrites an existing one.
func (b *Box) Record(voter common.Address, hash common.Hash, at int64) (models.Commitment, error) {
	if hash == (common.Hash{}) {
		return models.Commitment{}, fmt.Errorf("%w: commitment is the zero hash", models.ErrInvalidInput)
	}
	if _, exists := b.commitments[voter]; exists {
		return models.Commitment{}, fmt.Errorf("%w: %s", models.ErrAlreadyCommitted, voter.Hex())
	}

	commitment := models.Commitment{Voter: voter, Hash: hash, CommittedAt: at}
	b.commitments[voter] = commitment
	b.order = append(b.order, voter)
	return commitment, nil
}

func (b *Box) Commitment(voter common.Address) (models.Commitment, bool) {
	commitment, ok := b.commitments[voter]
	return commitment, ok
}

// Commitments returns every commitment in the order it was recorded.
func (b *Box) Commitments() []models.Commitment {
	result := make([]models.Commitment, 0, len(b.order))
	for _, voter := range b.order {
		result = append(result, b.commitments[voter])
	}
	return result
}

func (b *Box) Count() int {
	return len(b.order)
}
