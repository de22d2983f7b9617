package models

import "github.com/ethereum/go-ethereum/common"

type Candidate struct {
	ID          uint64         `json:"id"`
	Name        string         `json:"name"`
	Party       string         `json:"party"`
	Wallet      common.Address `json:"wallet"`
	Approved    bool           `json:"approved"`
	RequestedAt int64          `json:"requested_at"`
	ApprovedAt  int64          `json:"approved_at,omitempty"`
}

type Voter struct {
	ID          uint64         `json:"id"`
	Name        string         `json:"name"`
	Wallet      common.Address `json:"wallet"`
	Approved    bool           `json:"approved"`
	RequestedAt int64          `json:"requested_at"`
	ApprovedAt  int64          `json:"approved_at,omitempty"`
}
