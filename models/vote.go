package models

import "github.com/ethereum/go-ethereum/common"

// Commitment is a sealed ballot: keccak256(candidateID, secret) stored for one voter.
type Commitment struct {
	Voter       common.Address `json:"voter"`
	Hash        common.Hash    `json:"hash"`
	CommittedAt int64          `json:"committed_at"`
}
