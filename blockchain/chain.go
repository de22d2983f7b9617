// Package blockchain keeps the in-memory audit chain of one election: every
// accepted event wrapped in a Keccak-256 linked block.
package blockchain

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"sealed-ballot/models"
)

var ErrBrokenLink = errors.New("block does not extend the chain")

type Chain struct {
	mutex  sync.RWMutex
	blocks []*models.Block
}

func New() *Chain {
	return &Chain{blocks: make([]*models.Block, 0)}
}

// Restore adopts journaled blocks after validating them.
func Restore(blocks []*models.Block) (*Chain, error) {
	if err := models.ValidateChain(blocks); err != nil {
		return nil, err
	}
	chain := New()
	chain.blocks = append(chain.blocks, blocks...)
	return chain, nil
}

// Next builds the block that would carry event on top of the current tip. The
// chain is not modified; pass the block to Append once it is durable.
func (c *Chain) Next(event models.Event) (*models.Block, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}

	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return models.NewBlock(uint64(len(c.blocks)), event.Timestamp, data, c.lastHash()), nil
}

func (c *Chain) Append(block *models.Block) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if block.Index != uint64(len(c.blocks)) || block.PrevHash != c.lastHash() {
		return fmt.Errorf("%w: block %d", ErrBrokenLink, block.Index)
	}
	if !block.Validate() {
		return fmt.Errorf("%w: block %d hash mismatch", ErrBrokenLink, block.Index)
	}
	if block.Timestamp < c.lastTimestamp() {
		return fmt.Errorf("%w: block %d timestamp precedes tip", ErrBrokenLink, block.Index)
	}
	c.blocks = append(c.blocks, block)
	return nil
}

// Blocks returns a copy of the chain.
func (c *Chain) Blocks() []*models.Block {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	blocks := make([]*models.Block, len(c.blocks))
	for i, block := range c.blocks {
		copied := *block
		copied.Data = append([]byte(nil), block.Data...)
		blocks[i] = &copied
	}
	return blocks
}

func (c *Chain) Block(index uint64) (*models.Block, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if index >= uint64(len(c.blocks)) {
		return nil, false
	}
	copied := *c.blocks[index]
	return &copied, true
}

func (c *Chain) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.blocks)
}

func (c *Chain) LastHash() common.Hash {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.lastHash()
}

// LastTimestamp is the timestamp of the tip, or zero for an empty chain. A
// block appended next must not be older.
func (c *Chain) LastTimestamp() int64 {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.lastTimestamp()
}

func (c *Chain) lastTimestamp() int64 {
	if len(c.blocks) == 0 {
		return 0
	}
	return c.blocks[len(c.blocks)-1].Timestamp
}

func (c *Chain) lastHash() common.Hash {
	if len(c.blocks) == 0 {
		return common.Hash{}
	}
	return c.blocks[len(c.blocks)-1].Hash
}

// Validate re-checks every hash and link.
func (c *Chain) Validate() error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return models.ValidateChain(c.blocks)
}
