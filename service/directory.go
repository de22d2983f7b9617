package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"sealed-ballot/models"
)

// Directory holds every election hosted by this process.
type Directory struct {
	mu        sync.RWMutex
	elections map[string]*ElectionService
	deps      Dependencies
	closed    bool
}

// NewDirectory restores every election found in the journal. A journal that
// fails validation is a startup error.
func NewDirectory(ctx context.Context, deps Dependencies) (*Directory, error) {
	deps, err := deps.withDefaults()
	if err != nil {
		return nil, err
	}

	d := &Directory{
		elections: make(map[string]*ElectionService),
		deps:      deps,
	}

	ids, err := deps.Journal.Elections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list journaled elections: %w", err)
	}
	for _, id := range ids {
		blocks, err := deps.Journal.Load(ctx, id)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("load election %s: %w", id, err)
		}
		election, err := restoreElection(deps, blocks)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("restore election %s: %w", id, err)
		}
		d.elections[id] = election

		deps.Logger.Info("election restored",
			"event", "election_restored",
			"module", module,
			"layer", "application",
			"election_id", id,
			"blocks", len(blocks),
		)
	}

	return d, nil
}

// Create opens a new election administered by admin. Voting must start in the
// future.
func (d *Directory) Create(ctx context.Context, admin common.Address, name, description string, start, end int64) (*ElectionService, error) {
	now := d.deps.Clock.Now().Unix()
	if start <= now {
		return nil, fmt.Errorf("%w: voting start %d is not in the future", models.ErrInvalidInput, start)
	}

	election := models.Election{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		Admin:       admin,
		VotingStart: start,
		VotingEnd:   end,
		Active:      true,
		CreatedAt:   now,
	}

	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	// Journaling happens outside the directory lock so a slow store does not
	// block lookups of other elections.
	started := time.Now()
	s, err := createElection(ctx, d.deps, election)
	d.deps.Metrics.Record("create_election", started, err)
	if err != nil {
		d.deps.Logger.Warn("election rejected",
			"event", "create_election_rejected",
			"module", module,
			"layer", "application",
			"code", ErrorCode(err),
			"error", err.Error(),
		)
		return nil, err
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		// Already journaled; the next startup restores it.
		s.Close()
		return nil, ErrClosed
	}
	d.elections[election.ID] = s
	d.mu.Unlock()

	d.deps.Logger.Info("election created",
		"event", "create_election_applied",
		"module", module,
		"layer", "application",
		"election_id", election.ID,
		"admin", admin.Hex(),
		"voting_start", start,
		"voting_end", end,
	)
	return s, nil
}

func (d *Directory) Get(id string) (*ElectionService, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.elections[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrElectionNotFound, id)
	}
	return s, nil
}

// List returns every election ordered by creation time.
func (d *Directory) List() []Info {
	d.mu.RLock()
	services := make([]*ElectionService, 0, len(d.elections))
	for _, s := range d.elections {
		services = append(services, s)
	}
	d.mu.RUnlock()

	infos := make([]Info, 0, len(services))
	for _, s := range services {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt != infos[j].CreatedAt {
			return infos[i].CreatedAt < infos[j].CreatedAt
		}
		return infos[i].ID < infos[j].ID
	})
	return infos
}

// Metrics is the collector shared by every election, possibly nil.
func (d *Directory) Metrics() *MetricsCollector {
	return d.deps.Metrics
}

// Close stops every election. It is safe to call more than once.
func (d *Directory) Close() {
	d.mu.Lock()
	d.closed = true
	services := make([]*ElectionService, 0, len(d.elections))
	for _, s := range d.elections {
		services = append(services, s)
	}
	d.mu.Unlock()

	for _, s := range services {
		s.Close()
	}
}

// IsNotFound reports whether err means an unknown election.
func IsNotFound(err error) bool {
	return errors.Is(err, models.ErrElectionNotFound)
}
