package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"sealed-ballot/auth"
	"sealed-ballot/ballot"
	"sealed-ballot/blockchain"
	"sealed-ballot/messaging"
	"sealed-ballot/models"
	"sealed-ballot/phase"
	"sealed-ballot/registry"
	"sealed-ballot/reveal"
	"sealed-ballot/storage"
	"sealed-ballot/tally"
)

const module = "service"

// Dependencies are the collaborators an election needs. Journal is required;
// everything else has a default. Registry sets the role policy of elections
// created from now on; restored elections keep the policy they were created
// with.
type Dependencies struct {
	Journal        storage.Journal
	Publisher      messaging.Publisher
	Authority      auth.Authority
	Clock          phase.Clock
	Metrics        *MetricsCollector
	Logger         *slog.Logger
	Registry       registry.Options
	QueueSize      int
	JournalTimeout time.Duration
}

func (d Dependencies) withDefaults() (Dependencies, error) {
	if d.Journal == nil {
		return d, errors.New("journal is required")
	}
	if d.Authority == nil {
		d.Authority = auth.NewOwnerAuthority()
	}
	if d.Clock == nil {
		d.Clock = phase.SystemClock{}
	}
	if d.JournalTimeout <= 0 {
		d.JournalTimeout = 10 * time.Second
	}
	d.Logger = ResolveLogger(d.Logger)
	return d, nil
}

// ResolveLogger returns logger, or the default logger when it is nil.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// ElectionService owns one election: its registries, ballot box and reveal
// ledger. Mutations are applied one at a time by a single writer goroutine;
// reads take a shared lock and return copies.
type ElectionService struct {
	mu       sync.RWMutex
	election models.Election
	registry *registry.Registry
	box      *ballot.Box
	reveals  *reveal.Ledger
	chain    *blockchain.Chain

	deps   Dependencies
	logger *slog.Logger
	queue  *applyQueue
}

func newElectionService(deps Dependencies) *ElectionService {
	return &ElectionService{
		registry: registry.New(deps.Registry),
		box:      ballot.NewBox(),
		reveals:  reveal.NewLedger(),
		chain:    blockchain.New(),
		deps:     deps,
		logger:   deps.Logger,
		queue:    newApplyQueue(deps.QueueSize),
	}
}

// createElection journals the genesis block of a new election and starts it.
func createElection(ctx context.Context, deps Dependencies, election models.Election) (*ElectionService, error) {
	if err := election.Validate(); err != nil {
		return nil, err
	}

	s := newElectionService(deps)
	election.ExclusiveRoles = deps.Registry.ExclusiveRoles
	created := election
	event := models.Event{
		ID:         uuid.NewString(),
		ElectionID: election.ID,
		Type:       models.EventElectionCreated,
		Actor:      election.Admin,
		Name:       election.Name,
		Election:   &created,
		Timestamp:  election.CreatedAt,
	}

	block, err := s.chain.Next(event)
	if err != nil {
		return nil, err
	}
	if err := deps.Journal.Append(ctx, election.ID, block); err != nil {
		return nil, fmt.Errorf("journal election %s: %w", election.ID, err)
	}
	if _, err := s.apply(event); err != nil {
		return nil, err
	}
	if err := s.chain.Append(block); err != nil {
		return nil, err
	}

	s.publish(event)
	s.start()
	return s, nil
}

// restoreElection rebuilds an election from its journal and starts it.
func restoreElection(deps Dependencies, blocks []*models.Block) (*ElectionService, error) {
	if len(blocks) == 0 {
		return nil, errors.New("empty journal")
	}
	chain, err := blockchain.Restore(blocks)
	if err != nil {
		return nil, err
	}

	s := newElectionService(deps)
	s.chain = chain
	for _, block := range blocks {
		event, err := block.Event()
		if err != nil {
			return nil, err
		}
		if block.Index == 0 && event.Type != models.EventElectionCreated {
			return nil, fmt.Errorf("block 0 is %s, want %s", event.Type, models.EventElectionCreated)
		}
		if _, err := s.apply(event); err != nil {
			return nil, fmt.Errorf("replay block %d: %w", block.Index, err)
		}
	}

	s.start()
	return s, nil
}

func (s *ElectionService) start() {
	s.queue.start(s.execute)
}

// Close stops the writer. Operations still queued fail with ErrClosed.
func (s *ElectionService) Close() {
	s.queue.stop()
}

// submit hands an operation to the writer and waits for its outcome. Once
// submitted, an operation is applied even if ctx ends first; callers must
// check state before retrying.
func (s *ElectionService) submit(ctx context.Context, name string, decide func(now int64) (models.Event, error)) (operationResult, error) {
	if err := ctx.Err(); err != nil {
		return operationResult{}, err
	}

	op := &operation{name: name, decide: decide, result: make(chan operationResult, 1)}
	if err := s.queue.submit(op); err != nil {
		s.deps.Metrics.Record(name, time.Now(), err)
		return operationResult{}, err
	}

	select {
	case res := <-op.result:
		return res, res.err
	case <-ctx.Done():
		return operationResult{}, ctx.Err()
	case <-s.queue.done:
		select {
		case res := <-op.result:
			return res, res.err
		default:
			return operationResult{}, ErrClosed
		}
	}
}

// execute runs on the writer goroutine: decide, journal, apply, then notify.
func (s *ElectionService) execute(op *operation) {
	started := time.Now()
	now := s.deps.Clock.Now().Unix()

	s.mu.RLock()
	event, err := op.decide(now)
	s.mu.RUnlock()
	if err != nil {
		s.finish(op, started, operationResult{err: err})
		return
	}

	event.ID = uuid.NewString()
	event.ElectionID = s.election.ID
	// Blocks never go back in time, even when the clock does.
	event.Timestamp = max(now, s.chain.LastTimestamp())

	block, err := s.chain.Next(event)
	if err != nil {
		s.finish(op, started, operationResult{err: err})
		return
	}

	// Durability wait happens outside the state lock.
	ctx, cancel := context.WithTimeout(context.Background(), s.deps.JournalTimeout)
	err = s.deps.Journal.Append(ctx, event.ElectionID, block)
	cancel()
	if err != nil {
		s.finish(op, started, operationResult{err: fmt.Errorf("journal %s: %w", op.name, err)})
		return
	}

	s.mu.Lock()
	value, err := s.apply(event)
	if err == nil {
		err = s.chain.Append(block)
	}
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("journaled event could not be applied",
			"event", "apply_failed",
			"module", module,
			"layer", "application",
			"election_id", event.ElectionID,
			"event_id", event.ID,
			"event_type", string(event.Type),
			"error", err.Error(),
		)
		s.finish(op, started, operationResult{err: err})
		return
	}

	s.publish(event)
	s.finish(op, started, operationResult{event: event, value: value})
}

func (s *ElectionService) finish(op *operation, started time.Time, res operationResult) {
	s.deps.Metrics.Record(op.name, started, res.err)

	if res.err != nil {
		level := slog.LevelWarn
		if models.Code(res.err) == "" {
			level = slog.LevelError
		}
		s.logger.Log(context.Background(), level, "operation rejected",
			"event", op.name+"_rejected",
			"module", module,
			"layer", "application",
			"election_id", s.election.ID,
			"code", ErrorCode(res.err),
			"error", res.err.Error(),
		)
	} else {
		s.logger.Info("operation applied",
			"event", op.name+"_applied",
			"module", module,
			"layer", "application",
			"election_id", res.event.ElectionID,
			"event_id", res.event.ID,
			"event_type", string(res.event.Type),
			"actor", res.event.Actor.Hex(),
			"duration_ms", time.Since(started).Milliseconds(),
		)
	}

	op.result <- res
}

func (s *ElectionService) publish(event models.Event) {
	if s.deps.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.deps.Publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed",
			"event", "event_publish_failed",
			"module", module,
			"layer", "application",
			"election_id", event.ElectionID,
			"event_id", event.ID,
			"event_type", string(event.Type),
			"error", err.Error(),
		)
	}
}

// apply mutates state for an accepted event. It is used both live and on
// replay, so it must not consult the clock or the authority.
func (s *ElectionService) apply(event models.Event) (any, error) {
	switch event.Type {
	case models.EventElectionCreated:
		if event.Election == nil {
			return nil, errors.New("election.created without election")
		}
		s.election = *event.Election
		s.registry = registry.New(registry.Options{ExclusiveRoles: s.election.ExclusiveRoles})
		return s.election, nil
	case models.EventCandidateRequested:
		return s.registry.RequestCandidate(event.Subject, event.Name, event.Party, event.Timestamp)
	case models.EventCandidateApproved:
		return s.registry.ApproveCandidate(event.Subject, event.Timestamp)
	case models.EventVoterRequested:
		return s.registry.RequestVoter(event.Subject, event.Name, event.Timestamp)
	case models.EventVoterApproved:
		return s.registry.ApproveVoter(event.Subject, event.Timestamp)
	case models.EventVoteCommitted:
		if event.Commitment == nil {
			return nil, errors.New("vote.committed without commitment")
		}
		return s.box.Record(event.Subject, *event.Commitment, event.Timestamp)
	case models.EventVoteRevealed:
		count, err := s.reveals.Record(event.Subject, event.CandidateID)
		if err != nil {
			return nil, err
		}
		return RevealReceipt{Voter: event.Subject, CandidateID: event.CandidateID, Count: count}, nil
	case models.EventElectionEnded:
		s.election.Active = false
		winners := event.Winners
		if winners == nil {
			winners = []uint64{}
		}
		return tally.Result{Winners: winners, MaxVotes: event.Votes}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", event.Type)
	}
}

// RevealReceipt confirms an accepted reveal.
type RevealReceipt struct {
	Voter       common.Address `json:"voter"`
	CandidateID uint64         `json:"candidate_id"`
	Count       uint64         `json:"count"`
}

func (s *ElectionService) RequestCandidate(ctx context.Context, wallet common.Address, name, party string) (models.Candidate, error) {
	res, err := s.submit(ctx, "request_candidate", func(now int64) (models.Event, error) {
		if err := s.registry.CheckCandidateRequest(wallet, name, party); err != nil {
			return models.Event{}, err
		}
		return models.Event{
			Type:    models.EventCandidateRequested,
			Actor:   wallet,
			Subject: wallet,
			Name:    name,
			Party:   party,
		}, nil
	})
	if err != nil {
		return models.Candidate{}, err
	}
	return res.value.(models.Candidate), nil
}

func (s *ElectionService) RequestVoter(ctx context.Context, wallet common.Address, name string) (models.Voter, error) {
	res, err := s.submit(ctx, "request_voter", func(now int64) (models.Event, error) {
		if err := s.registry.CheckVoterRequest(wallet, name); err != nil {
			return models.Event{}, err
		}
		return models.Event{
			Type:    models.EventVoterRequested,
			Actor:   wallet,
			Subject: wallet,
			Name:    name,
		}, nil
	})
	if err != nil {
		return models.Voter{}, err
	}
	return res.value.(models.Voter), nil
}

func (s *ElectionService) ApproveCandidate(ctx context.Context, caller, wallet common.Address) (models.Candidate, error) {
	res, err := s.submit(ctx, "approve_candidate", func(now int64) (models.Event, error) {
		if err := s.checkAdmin(caller); err != nil {
			return models.Event{}, err
		}
		if err := s.registry.CheckCandidateApproval(wallet); err != nil {
			return models.Event{}, err
		}
		candidate, _ := s.registry.CandidateByWallet(wallet)
		return models.Event{
			Type:        models.EventCandidateApproved,
			Actor:       caller,
			Subject:     wallet,
			Name:        candidate.Name,
			CandidateID: candidate.ID,
		}, nil
	})
	if err != nil {
		return models.Candidate{}, err
	}
	return res.value.(models.Candidate), nil
}

func (s *ElectionService) ApproveVoter(ctx context.Context, caller, wallet common.Address) (models.Voter, error) {
	res, err := s.submit(ctx, "approve_voter", func(now int64) (models.Event, error) {
		if err := s.checkAdmin(caller); err != nil {
			return models.Event{}, err
		}
		if err := s.registry.CheckVoterApproval(wallet); err != nil {
			return models.Event{}, err
		}
		voter, _ := s.registry.Voter(wallet)
		return models.Event{
			Type:    models.EventVoterApproved,
			Actor:   caller,
			Subject: wallet,
			Name:    voter.Name,
		}, nil
	})
	if err != nil {
		return models.Voter{}, err
	}
	return res.value.(models.Voter), nil
}

// CommitVote stores voter's sealed ballot. It succeeds at most once per voter.
func (s *ElectionService) CommitVote(ctx context.Context, voter common.Address, hash common.Hash) (models.Commitment, error) {
	res, err := s.submit(ctx, "commit_vote", func(now int64) (models.Event, error) {
		current := phase.Derive(s.election, now)
		if err := s.box.CheckCommit(voter, hash, s.registry.IsApprovedVoter(voter), current); err != nil {
			return models.Event{}, err
		}
		committed := hash
		return models.Event{
			Type:       models.EventVoteCommitted,
			Actor:      voter,
			Subject:    voter,
			Commitment: &committed,
		}, nil
	})
	if err != nil {
		return models.Commitment{}, err
	}
	return res.value.(models.Commitment), nil
}

// RevealVote opens voter's commitment and counts it for candidateID.
func (s *ElectionService) RevealVote(ctx context.Context, voter common.Address, candidateID uint64, secret *uint256.Int) (RevealReceipt, error) {
	res, err := s.submit(ctx, "reveal_vote", func(now int64) (models.Event, error) {
		current := phase.Derive(s.election, now)
		stored, committed := s.box.Commitment(voter)
		claim := reveal.Claim{Voter: voter, CandidateID: candidateID, Secret: secret}
		if err := s.reveals.CheckReveal(current, claim, stored, committed, s.registry.IsApprovedCandidate(candidateID)); err != nil {
			return models.Event{}, err
		}
		return models.Event{
			Type:        models.EventVoteRevealed,
			Actor:       voter,
			Subject:     voter,
			CandidateID: candidateID,
			Commitment:  &stored.Hash,
			Secret:      secret.Dec(),
		}, nil
	})
	if err != nil {
		return RevealReceipt{}, err
	}
	return res.value.(RevealReceipt), nil
}

// EndElection deactivates the election. Before VotingEnd this skips the
// reveal window entirely and any unrevealed commitments are lost.
func (s *ElectionService) EndElection(ctx context.Context, caller common.Address) (tally.Result, error) {
	res, err := s.submit(ctx, "end_election", func(now int64) (models.Event, error) {
		if err := s.checkAdmin(caller); err != nil {
			return models.Event{}, err
		}
		if !s.election.Active {
			return models.Event{}, fmt.Errorf("%w: election already ended", models.ErrWrongPhase)
		}
		result := tally.Compute(s.reveals.Tallies())
		return models.Event{
			Type:    models.EventElectionEnded,
			Actor:   caller,
			Winners: result.Winners,
			Votes:   result.MaxVotes,
		}, nil
	})
	if err != nil {
		return tally.Result{}, err
	}
	return res.value.(tally.Result), nil
}

func (s *ElectionService) checkAdmin(caller common.Address) error {
	if !s.deps.Authority.IsAdmin(s.election, caller) {
		return fmt.Errorf("%w: %s", models.ErrUnauthorized, caller.Hex())
	}
	return nil
}
