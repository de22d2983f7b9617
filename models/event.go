package models

import "github.com/ethereum/go-ethereum/common"

type EventType string

const (
	EventElectionCreated    EventType = "election.created"
	EventCandidateRequested EventType = "candidate.requested"
	EventCandidateApproved  EventType = "candidate.approved"
	EventVoterRequested     EventType = "voter.requested"
	EventVoterApproved      EventType = "voter.approved"
	EventVoteCommitted      EventType = "vote.committed"
	EventVoteRevealed       EventType = "vote.revealed"
	EventElectionEnded      EventType = "election.ended"
)

// Event is an accepted mutation of an election. Events are journaled before
// they are applied, and replaying them in order rebuilds the election.
type Event struct {
	ID          string         `json:"id"`
	ElectionID  string         `json:"election_id"`
	Type        EventType      `json:"type"`
	Actor       common.Address `json:"actor"`
	Subject     common.Address `json:"subject"`
	Name        string         `json:"name,omitempty"`
	Party       string         `json:"party,omitempty"`
	CandidateID uint64         `json:"candidate_id,omitempty"`
	Commitment  *common.Hash   `json:"commitment,omitempty"`
	Secret      string         `json:"secret,omitempty"`
	Winners     []uint64       `json:"winners,omitempty"`
	Votes       uint64         `json:"votes,omitempty"`
	Election    *Election      `json:"election,omitempty"`
	Timestamp   int64          `json:"timestamp"`
}
