// Package registry tracks candidate and voter registration requests and their
// approval by the election administrator.
//
// A Registry is not safe for concurrent use; the owning election serializes
// access to it.
package registry

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"sealed-ballot/models"
)

// Filter selects records by approval state.
type Filter int

const (
	All Filter = iota
	Pending
	Approved
)

// ParseFilter maps "", "all", "pending" and "approved" to a Filter.
func ParseFilter(s string) (Filter, error) {
	switch s {
	case "", "all":
		return All, nil
	case "pending":
		return Pending, nil
	case "approved":
		return Approved, nil
	default:
		return All, fmt.Errorf("%w: unknown status filter %q", models.ErrInvalidInput, s)
	}
}

func (f Filter) match(approved bool) bool {
	switch f {
	case Pending:
		return !approved
	case Approved:
		return approved
	default:
		return true
	}
}

type Options struct {
	// ExclusiveRoles rejects a request when the wallet already holds the
	// other role. Both roles are allowed by default.
	ExclusiveRoles bool
}

type Registry struct {
	opts Options

	candidates         []*models.Candidate // index = id-1
	candidatesByWallet map[common.Address]*models.Candidate

	voters         []*models.Voter // index = id-1
	votersByWallet map[common.Address]*models.Voter
}

func New(opts Options) *Registry {
	return &Registry{
		opts:               opts,
		candidatesByWallet: make(map[common.Address]*models.Candidate),
		votersByWallet:     make(map[common.Address]*models.Voter),
	}
}

// CheckCandidateRequest reports whether RequestCandidate would succeed.
func (r *Registry) CheckCandidateRequest(wallet common.Address, name, party string) error {
	if err := verifyWallet(wallet); err != nil {
		return err
	}
	if err := verifyName("candidate name", name); err != nil {
		return err
	}
	if err := verifyName("party", party); err != nil {
		return err
	}
	if _, exists := r.candidatesByWallet[wallet]; exists {
		return fmt.Errorf("%w: candidate %s", models.ErrDuplicateRequest, wallet.Hex())
	}
	if _, isVoter := r.votersByWallet[wallet]; isVoter && r.opts.ExclusiveRoles {
		return fmt.Errorf("%w: %s is already registered as a voter", models.ErrDuplicateRequest, wallet.Hex())
	}
	return nil
}

// RequestCandidate records an unapproved candidate and assigns the next id.
func (r *Registry) RequestCandidate(wallet common.Address, name, party string, at int64) (models.Candidate, error) {
	if err := r.CheckCandidateRequest(wallet, name, party); err != nil {
		return models.Candidate{}, err
	}

	candidate := &models.Candidate{
		ID:          uint64(len(r.candidates)) + 1,
		Name:        normalizeName(name),
		Party:       normalizeName(party),
		Wallet:      wallet,
		RequestedAt: at,
	}
	r.candidates = append(r.candidates, candidate)
	r.candidatesByWallet[wallet] = candidate
	return *candidate, nil
}

func (r *Registry) CheckCandidateApproval(wallet common.Address) error {
	candidate, exists := r.candidatesByWallet[wallet]
	if !exists {
		return fmt.Errorf("%w: candidate %s", models.ErrNotFound, wallet.Hex())
	}
	if candidate.Approved {
		return fmt.Errorf("%w: candidate %s", models.ErrAlreadyApproved, wallet.Hex())
	}
	return nil
}

func (r *Registry) ApproveCandidate(wallet common.Address, at int64) (models.Candidate, error) {
	if err := r.CheckCandidateApproval(wallet); err != nil {
		return models.Candidate{}, err
	}
	candidate := r.candidatesByWallet[wallet]
	candidate.Approved = true
	candidate.ApprovedAt = at
	return *candidate, nil
}

// CheckVoterRequest reports whether RequestVoter would succeed.
func (r *Registry) CheckVoterRequest(wallet common.Address, name string) error {
	if err := verifyWallet(wallet); err != nil {
		return err
	}
	if err := verifyName("voter name", name); err != nil {
		return err
	}
	if _, exists := r.votersByWallet[wallet]; exists {
		return fmt.Errorf("%w: voter %s", models.ErrDuplicateRequest, wallet.Hex())
	}
	if _, isCandidate := r.candidatesByWallet[wallet]; isCandidate && r.opts.ExclusiveRoles {
		return fmt.Errorf("%w: %s is already registered as a candidate", models.ErrDuplicateRequest, wallet.Hex())
	}
	return nil
}

// RequestVoter records an unapproved voter and assigns the next id.
func (r *Registry) RequestVoter(wallet common.Address, name string, at int64) (models.Voter, error) {
	if err := r.CheckVoterRequest(wallet, name); err != nil {
		return models.Voter{}, err
	}

	voter := &models.Voter{
		ID:          uint64(len(r.voters)) + 1,
		Name:        normalizeName(name),
		Wallet:      wallet,
		RequestedAt: at,
	}
	r.voters = append(r.voters, voter)
	r.votersByWallet[wallet] = voter
	return *voter, nil
}

func (r *Registry) CheckVoterApproval(wallet common.Address) error {
	voter, exists := r.votersByWallet[wallet]
	if !exists {
		return fmt.Errorf("%w: voter %s", models.ErrNotFound, wallet.Hex())
	}
	if voter.Approved {
		return fmt.Errorf("%w: voter %s", models.ErrAlreadyApproved, wallet.Hex())
	}
	return nil
}

func (r *Registry) ApproveVoter(wallet common.Address, at int64) (models.Voter, error) {
	if err := r.CheckVoterApproval(wallet); err != nil {
		return models.Voter{}, err
	}
	voter := r.votersByWallet[wallet]
	voter.Approved = true
	voter.ApprovedAt = at
	return *voter, nil
}

func (r *Registry) CandidateStatus(wallet common.Address) models.RegistrationStatus {
	candidate, exists := r.candidatesByWallet[wallet]
	if !exists {
		return models.RegistrationStatus{}
	}
	return models.RegistrationStatus{Registered: true, Approved: candidate.Approved}
}

func (r *Registry) VoterStatus(wallet common.Address) models.RegistrationStatus {
	voter, exists := r.votersByWallet[wallet]
	if !exists {
		return models.RegistrationStatus{}
	}
	return models.RegistrationStatus{Registered: true, Approved: voter.Approved}
}

func (r *Registry) Candidate(id uint64) (models.Candidate, bool) {
	if id == 0 || id > uint64(len(r.candidates)) {
		return models.Candidate{}, false
	}
	return *r.candidates[id-1], true
}

func (r *Registry) CandidateByWallet(wallet common.Address) (models.Candidate, bool) {
	candidate, exists := r.candidatesByWallet[wallet]
	if !exists {
		return models.Candidate{}, false
	}
	return *candidate, true
}

func (r *Registry) Voter(wallet common.Address) (models.Voter, bool) {
	voter, exists := r.votersByWallet[wallet]
	if !exists {
		return models.Voter{}, false
	}
	return *voter, true
}

func (r *Registry) IsApprovedCandidate(id uint64) bool {
	candidate, ok := r.Candidate(id)
	return ok && candidate.Approved
}

func (r *Registry) IsApprovedVoter(wallet common.Address) bool {
	voter, exists := r.votersByWallet[wallet]
	return exists && voter.Approved
}

// Candidates returns copies of the matching candidates in id order.
func (r *Registry) Candidates(filter Filter) []models.Candidate {
	result := make([]models.Candidate, 0, len(r.candidates))
	for _, candidate := range r.candidates {
		if filter.match(candidate.Approved) {
			result = append(result, *candidate)
		}
	}
	return result
}

// Voters returns copies of the matching voters in id order.
func (r *Registry) Voters(filter Filter) []models.Voter {
	result := make([]models.Voter, 0, len(r.voters))
	for _, voter := range r.voters {
		if filter.match(voter.Approved) {
			result = append(result, *voter)
		}
	}
	return result
}

// Counts summarizes both registries.
type Counts struct {
	Candidates         int `json:"candidates"`
	ApprovedCandidates int `json:"approved_candidates"`
	Voters             int `json:"voters"`
	ApprovedVoters     int `json:"approved_voters"`
}

func (r *Registry) Counts() Counts {
	counts := Counts{Candidates: len(r.candidates), Voters: len(r.voters)}
	for _, candidate := range r.candidates {
		if candidate.Approved {
			counts.ApprovedCandidates++
		}
	}
	for _, voter := range r.voters {
		if voter.Approved {
			counts.ApprovedVoters++
		}
	}
	return counts
}
