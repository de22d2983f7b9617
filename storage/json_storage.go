package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"sealed-ballot/models"
)

const chainFileSuffix = "_chain.json"

// Chain is the on-disk form of one election journal.
type Chain struct {
	ElectionID string          `json:"election_id"`
	Blocks     []*models.Block `json:"blocks"`
}

// JSONStore keeps one JSON file per election under basePath and rewrites it
// atomically on every append.
type JSONStore struct {
	basePath string
	mu       sync.RWMutex
	chains   map[string]*Chain
}

func NewJSONStore(basePath string) (*JSONStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	store := &JSONStore{
		basePath: basePath,
		chains:   make(map[string]*Chain),
	}

	ids, err := store.scan()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		chain, err := store.loadChainFromFile(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load chain %s: %w", id, err)
		}
		store.chains[id] = chain
	}

	return store, nil
}

func (s *JSONStore) Append(ctx context.Context, electionID string, block *models.Block) error {
	if err := checkElectionID(electionID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chain, exists := s.chains[electionID]
	if !exists {
		chain = &Chain{ElectionID: electionID, Blocks: make([]*models.Block, 0)}
	}
	if err := checkAppend(chain.Blocks, block); err != nil {
		return err
	}

	stored := *block
	next := &Chain{ElectionID: electionID, Blocks: append(chain.Blocks[:len(chain.Blocks):len(chain.Blocks)], &stored)}
	if err := s.saveChainToFile(next); err != nil {
		return err
	}
	s.chains[electionID] = next
	return nil
}

func (s *JSONStore) Load(ctx context.Context, electionID string) ([]*models.Block, error) {
	if err := checkElectionID(electionID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	chain, exists := s.chains[electionID]
	if !exists {
		return make([]*models.Block, 0), nil
	}
	return copyBlocks(chain.Blocks), nil
}

// Elections lists stored journals sorted by id.
func (s *JSONStore) Elections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.chains))
	for id := range s.chains {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *JSONStore) path(electionID string) string {
	return filepath.Join(s.basePath, electionID+chainFileSuffix)
}

func (s *JSONStore) scan() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(s.basePath, "*"+chainFileSuffix))
	if err != nil {
		return nil, fmt.Errorf("failed to list chain files: %w", err)
	}

	ids := make([]string, 0, len(files))
	for _, file := range files {
		id := strings.TrimSuffix(filepath.Base(file), chainFileSuffix)
		if checkElectionID(id) != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *JSONStore) loadChainFromFile(electionID string) (*Chain, error) {
	data, err := os.ReadFile(s.path(electionID))
	if err != nil {
		return nil, err
	}

	var chain Chain
	if err := json.Unmarshal(data, &chain); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chain: %w", err)
	}
	if chain.ElectionID != electionID {
		return nil, fmt.Errorf("chain file %s belongs to election %q", s.path(electionID), chain.ElectionID)
	}
	if chain.Blocks == nil {
		chain.Blocks = make([]*models.Block, 0)
	}
	return &chain, nil
}

func (s *JSONStore) saveChainToFile(chain *Chain) error {
	path := s.path(chain.ElectionID)

	data, err := json.MarshalIndent(chain, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal chain: %w", err)
	}

	// Write to temporary file first
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write chain file: %w", err)
	}

	// Atomic rename to ensure consistency
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save chain file: %w", err)
	}

	return nil
}
