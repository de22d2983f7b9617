// Package storage persists election journals: ordered, hash-chained blocks of
// accepted events, one chain per election.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"sealed-ballot/models"
)

var (
	// ErrConflict means the block does not extend the stored chain, usually
	// because another writer appended first.
	ErrConflict = errors.New("block does not extend the stored chain")

	ErrInvalidElectionID = errors.New("invalid election id")
)

// Journal is the durable record an election is rebuilt from.
type Journal interface {
	Append(ctx context.Context, electionID string, block *models.Block) error
	Load(ctx context.Context, electionID string) ([]*models.Block, error)
	Elections(ctx context.Context) ([]string, error)
}

var electionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

func checkElectionID(id string) error {
	if !electionIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidElectionID, id)
	}
	return nil
}

// checkAppend verifies block is the next link after blocks.
func checkAppend(blocks []*models.Block, block *models.Block) error {
	var (
		tip  common.Hash
		last int64
	)
	if len(blocks) > 0 {
		tip = blocks[len(blocks)-1].Hash
		last = blocks[len(blocks)-1].Timestamp
	}
	return checkLink(uint64(len(blocks)), tip, last, block)
}

// checkLink verifies block follows a chain of length n whose last block has
// hash tip and timestamp last.
func checkLink(n uint64, tip common.Hash, last int64, block *models.Block) error {
	if block == nil {
		return fmt.Errorf("%w: nil block", ErrConflict)
	}
	if block.Index != n {
		return fmt.Errorf("%w: got index %d, chain has %d blocks", ErrConflict, block.Index, n)
	}
	if block.PrevHash != tip {
		return fmt.Errorf("%w: previous hash %s does not match tip %s", ErrConflict, block.PrevHash.Hex(), tip.Hex())
	}
	if block.Timestamp < last {
		return fmt.Errorf("%w: timestamp %d precedes tip timestamp %d", ErrConflict, block.Timestamp, last)
	}
	return nil
}

// MemoryStore keeps journals in memory. It backs ephemeral deployments and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	chains map[string][]*models.Block
	order  []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chains: make(map[string][]*models.Block)}
}

func (s *MemoryStore) Append(ctx context.Context, electionID string, block *models.Block) error {
	if err := checkElectionID(electionID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chain, exists := s.chains[electionID]
	if err := checkAppend(chain, block); err != nil {
		return err
	}
	if !exists {
		s.order = append(s.order, electionID)
	}
	stored := *block
	s.chains[electionID] = append(chain, &stored)
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, electionID string) ([]*models.Block, error) {
	if err := checkElectionID(electionID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return copyBlocks(s.chains[electionID]), nil
}

func (s *MemoryStore) Elections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, len(s.order))
	copy(ids, s.order)
	return ids, nil
}

func copyBlocks(blocks []*models.Block) []*models.Block {
	result := make([]*models.Block, len(blocks))
	for i, block := range blocks {
		b := *block
		result[i] = &b
	}
	return result
}
