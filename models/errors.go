package models

import "errors"

var (
	ErrDuplicateRequest   = errors.New("registration request already exists")
	ErrNotFound           = errors.New("registration request not found")
	ErrAlreadyApproved    = errors.New("registration already approved")
	ErrNotApprovedVoter   = errors.New("caller is not an approved voter")
	ErrAlreadyCommitted   = errors.New("vote already committed")
	ErrWrongPhase         = errors.New("operation not allowed in the current phase")
	ErrNoCommitment       = errors.New("no vote commitment found")
	ErrAlreadyRevealed    = errors.New("vote already revealed")
	ErrCommitmentMismatch = errors.New("reveal does not match the stored commitment")
	ErrUnknownCandidate   = errors.New("candidate is unknown or not approved")
	ErrInvalidInput       = errors.New("invalid input")

	ErrUnauthorized     = errors.New("caller is not the election administrator")
	ErrElectionNotFound = errors.New("election not found")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrDuplicateRequest, "DuplicateRequest"},
	{ErrNotFound, "NotFound"},
	{ErrAlreadyApproved, "AlreadyApproved"},
	{ErrNotApprovedVoter, "NotApprovedVoter"},
	{ErrAlreadyCommitted, "AlreadyCommitted"},
	{ErrWrongPhase, "WrongPhase"},
	{ErrNoCommitment, "NoCommitment"},
	{ErrAlreadyRevealed, "AlreadyRevealed"},
	{ErrCommitmentMismatch, "CommitmentMismatch"},
	{ErrUnknownCandidate, "UnknownCandidate"},
	{ErrInvalidInput, "InvalidInput"},
	{ErrUnauthorized, "Unauthorized"},
	{ErrElectionNotFound, "ElectionNotFound"},
}

// Code returns the stable name of a domain error, or "" when err is not one.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range errorCodes {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return ""
}
