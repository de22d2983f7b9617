package service

import (
	"github.com/ethereum/go-ethereum/common"

	"sealed-ballot/models"
	"sealed-ballot/phase"
	"sealed-ballot/registry"
	"sealed-ballot/tally"
)

// Transition is the next scheduled phase change.
type Transition struct {
	Phase models.Phase `json:"phase"`
	At    int64        `json:"at"`
}

// Info is the election overview.
type Info struct {
	models.Election
	Phase          models.Phase    `json:"phase"`
	RevealDeadline int64           `json:"reveal_deadline"`
	Next           *Transition     `json:"next,omitempty"`
	Registry       registry.Counts `json:"registry"`
	Commitments    int             `json:"commitments"`
	Reveals        uint64          `json:"reveals"`
}

// Results wraps the tally with display data. Provisional is true until the
// election has Ended.
type Results struct {
	tally.Result
	ElectionID   string             `json:"election_id"`
	Phase        models.Phase       `json:"phase"`
	Provisional  bool               `json:"provisional"`
	WinnerNames  []string           `json:"winner_names"`
	TotalVotes   uint64             `json:"total_votes"`
	Standings    []tally.Standing   `json:"standings"`
	Verification tally.Verification `json:"verification"`
}

// AuditTrail is the journaled chain of an election.
type AuditTrail struct {
	ElectionID string          `json:"election_id"`
	BlockCount int             `json:"block_count"`
	Blocks     []*models.Block `json:"blocks"`
	IsValid    bool            `json:"is_valid"`
	LastHash   string          `json:"last_hash"`
	Error      string          `json:"error,omitempty"`
}

func (s *ElectionService) now() int64 {
	return s.deps.Clock.Now().Unix()
}

func (s *ElectionService) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.election.ID
}

func (s *ElectionService) Election() models.Election {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.election
}

// Phase is derived on every call; there is no stored phase.
func (s *ElectionService) Phase() models.Phase {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return phase.Derive(s.election, now)
}

func (s *ElectionService) Info() Info {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := Info{
		Election:       s.election,
		Phase:          phase.Derive(s.election, now),
		RevealDeadline: s.election.RevealDeadline(),
		Registry:       s.registry.Counts(),
		Commitments:    s.box.Count(),
		Reveals:        s.reveals.Total(),
	}
	if next, at, ok := phase.NextTransition(s.election, now); ok {
		info.Next = &Transition{Phase: next, At: at}
	}
	return info
}

func (s *ElectionService) CandidateStatus(wallet common.Address) models.RegistrationStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.CandidateStatus(wallet)
}

func (s *ElectionService) VoterStatus(wallet common.Address) models.VoterStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, committed := s.box.Commitment(wallet)
	return models.VoterStatus{
		RegistrationStatus: s.registry.VoterStatus(wallet),
		HasCommitted:       committed,
		HasRevealed:        s.reveals.HasRevealed(wallet),
	}
}

func (s *ElectionService) Candidates(filter registry.Filter) []models.Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.Candidates(filter)
}

func (s *ElectionService) Voters(filter registry.Filter) []models.Voter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.Voters(filter)
}

func (s *ElectionService) Candidate(id uint64) (models.Candidate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.Candidate(id)
}

func (s *ElectionService) Commitment(voter common.Address) (models.Commitment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.box.Commitment(voter)
}

// Commitments lists every commitment in the order it was accepted.
func (s *ElectionService) Commitments() []models.Commitment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.box.Commitments()
}

// UnrevealedCommitments lists commitments whose voter has not revealed yet.
func (s *ElectionService) UnrevealedCommitments() []models.Commitment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	unrevealed := make([]models.Commitment, 0)
	for _, commitment := range s.box.Commitments() {
		if !s.reveals.HasRevealed(commitment.Voter) {
			unrevealed = append(unrevealed, commitment)
		}
	}
	return unrevealed
}

func (s *ElectionService) RevealedCount(candidateID uint64) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reveals.RevealedCount(candidateID)
}

func (s *ElectionService) Tallies() map[uint64]uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reveals.Tallies()
}

func (s *ElectionService) Results() Results {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	current := phase.Derive(s.election, now)
	tallies := s.reveals.Tallies()
	result := tally.Compute(tallies)

	names := make([]string, 0, len(result.Winners))
	for _, id := range result.Winners {
		if candidate, ok := s.registry.Candidate(id); ok {
			names = append(names, candidate.Name)
		}
	}

	counts := s.registry.Counts()
	return Results{
		ElectionID:   s.election.ID,
		Phase:        current,
		Provisional:  current != models.PhaseEnded,
		Result:       result,
		WinnerNames:  names,
		TotalVotes:   s.reveals.Total(),
		Standings:    tally.Standings(s.registry.Candidates(registry.Approved), tallies, result),
		Verification: tally.Verify(counts.ApprovedVoters, s.box.Count(), int(s.reveals.Total())),
	}
}

// Audit returns the chain with a fresh validation of every block.
func (s *ElectionService) Audit() AuditTrail {
	blocks := s.chain.Blocks()
	trail := AuditTrail{
		ElectionID: s.ID(),
		BlockCount: len(blocks),
		Blocks:     blocks,
		IsValid:    true,
	}
	if len(blocks) > 0 {
		trail.LastHash = blocks[len(blocks)-1].Hash.Hex()
	}
	if err := models.ValidateChain(blocks); err != nil {
		trail.IsValid = false
		trail.Error = err.Error()
	}
	return trail
}
