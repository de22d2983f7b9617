// Package tally turns revealed counts into results.
//
// Nothing here knows about phases: results computed before an election has
// Ended are provisional, and callers are expected to say so.
package tally

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"sealed-ballot/models"
)

// Result is the winner set. More than one winner is a tie, not an error.
type Result struct {
	Winners  []uint64 `json:"winners"`
	MaxVotes uint64   `json:"max_votes"`
}

// IsWinner reports whether id is in the winner set.
func (r Result) IsWinner(id uint64) bool {
	for _, winner := range r.Winners {
		if winner == id {
			return true
		}
	}
	return false
}

// Compute finds the highest tally and every candidate that reached it. With no
// votes at all, Winners is empty and MaxVotes is 0.
func Compute(tallies map[uint64]uint64) Result {
	result := Result{Winners: []uint64{}}
	for id, count := range tallies {
		switch {
		case count == 0:
			continue
		case count > result.MaxVotes:
			result.MaxVotes = count
			result.Winners = append(result.Winners[:0], id)
		case count == result.MaxVotes:
			result.Winners = append(result.Winners, id)
		}
	}
	sort.Slice(result.Winners, func(i, j int) bool { return result.Winners[i] < result.Winners[j] })
	return result
}

// Standing is one candidate's line in the results table.
type Standing struct {
	CandidateID uint64          `json:"candidate_id"`
	Name        string          `json:"name"`
	Party       string          `json:"party"`
	Wallet      common.Address  `json:"wallet"`
	Votes       uint64          `json:"votes"`
	Share       decimal.Decimal `json:"share_percent"`
	Winner      bool            `json:"winner"`
}

// Standings ranks candidates by votes, highest first, ties broken by id. Share
// is the percentage of all revealed votes, rounded to one decimal place.
func Standings(candidates []models.Candidate, tallies map[uint64]uint64, result Result) []Standing {
	var total uint64
	for _, count := range tallies {
		total += count
	}

	hundred := decimal.NewFromInt(100)
	standings := make([]Standing, 0, len(candidates))
	for _, candidate := range candidates {
		votes := tallies[candidate.ID]
		share := decimal.Zero
		if total > 0 {
			share = decimal.NewFromInt(int64(votes)).
				Mul(hundred).
				DivRound(decimal.NewFromInt(int64(total)), 1)
		}
		standings = append(standings, Standing{
			CandidateID: candidate.ID,
			Name:        candidate.Name,
			Party:       candidate.Party,
			Wallet:      candidate.Wallet,
			Votes:       votes,
			Share:       share,
			Winner:      result.IsWinner(candidate.ID),
		})
	}

	sort.SliceStable(standings, func(i, j int) bool {
		if standings[i].Votes != standings[j].Votes {
			return standings[i].Votes > standings[j].Votes
		}
		return standings[i].CandidateID < standings[j].CandidateID
	})
	return standings
}

// Verification cross-checks the counts of a finished election.
type Verification struct {
	ApprovedVoters int  `json:"approved_voters"`
	Commitments    int  `json:"commitments"`
	Reveals        int  `json:"reveals"`
	Unrevealed     int  `json:"unrevealed"`
	IsValid        bool `json:"is_valid"`
}

// Verify checks reveals <= commitments <= approved voters.
func Verify(approvedVoters, commitments, reveals int) Verification {
	return Verification{
		ApprovedVoters: approvedVoters,
		Commitments:    commitments,
		Reveals:        reveals,
		Unrevealed:     commitments - reveals,
		IsValid:        reveals <= commitments && commitments <= approvedVoters,
	}
}
