package models

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Block wraps one journaled event and links it to its predecessor by hash.
type Block struct {
	Index     uint64      `json:"index"`
	Timestamp int64       `json:"timestamp"`
	Data      []byte      `json:"data"`
	PrevHash  common.Hash `json:"prev_hash"`
	Hash      common.Hash `json:"hash"`
}

func NewBlock(index uint64, timestamp int64, data []byte, prevHash common.Hash) *Block {
	block := &Block{
		Index:     index,
		Timestamp: timestamp,
		Data:      data,
		PrevHash:  prevHash,
	}
	block.Hash = block.CalculateHash()
	return block
}

// CalculateHash is keccak256(index || timestamp || data || prevHash).
func (b *Block) CalculateHash() common.Hash {
	buffer := new(bytes.Buffer)
	binary.Write(buffer, binary.BigEndian, b.Index)
	binary.Write(buffer, binary.BigEndian, b.Timestamp)
	buffer.Write(b.Data)
	buffer.Write(b.PrevHash[:])

	return crypto.Keccak256Hash(buffer.Bytes())
}

func (b *Block) Validate() bool {
	return b.CalculateHash() == b.Hash
}

// Event decodes the event carried by the block.
func (b *Block) Event() (Event, error) {
	var event Event
	if err := json.Unmarshal(b.Data, &event); err != nil {
		return Event{}, fmt.Errorf("decode block %d: %w", b.Index, err)
	}
	return event, nil
}

// ChainError reports the first block that breaks the chain.
type ChainError struct {
	Index  uint64
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("chain invalid at block %d: %s", e.Index, e.Reason)
}

// ValidateChain validates the entire chain. An empty chain is valid.
func ValidateChain(blocks []*Block) error {
	if len(blocks) == 0 {
		return nil
	}

	genesis := blocks[0]
	if genesis.Index != 0 {
		return &ChainError{Index: genesis.Index, Reason: "genesis index is not zero"}
	}
	if genesis.PrevHash != (common.Hash{}) {
		return &ChainError{Index: 0, Reason: "genesis has a previous hash"}
	}
	if !genesis.Validate() {
		return &ChainError{Index: 0, Reason: fmt.Sprintf("hash %s does not match contents", genesis.Hash.Hex())}
	}

	for i := 1; i < len(blocks); i++ {
		current := blocks[i]
		previous := blocks[i-1]

		if current.Index != previous.Index+1 {
			return &ChainError{Index: current.Index, Reason: "index is not sequential"}
		}
		if !current.Validate() {
			return &ChainError{Index: current.Index, Reason: fmt.Sprintf("hash %s does not match contents", current.Hash.Hex())}
		}
		if current.PrevHash != previous.Hash {
			return &ChainError{Index: current.Index, Reason: "previous hash link is broken"}
		}
		// Events may share a second but never go back in time.
		if current.Timestamp < previous.Timestamp {
			return &ChainError{Index: current.Index, Reason: "timestamp precedes previous block"}
		}
	}

	return nil
}
