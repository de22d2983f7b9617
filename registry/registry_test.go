package registry

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealed-ballot/models"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol = common.HexToAddress("0x00000000000000000000000000000000000ca201")
)

func TestRequestCandidateAssignsDenseIDs(t *testing.T) {
	r := New(Options{})

	first, err := r.RequestCandidate(alice, "Alice", "Blue", 10)
	require.NoError(t, err)
	second, err := r.RequestCandidate(bob, "Bob", "Green", 11)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first.ID)
	assert.Equal(t, uint64(2), second.ID)
	assert.False(t, first.Approved)
	assert.Equal(t, int64(10), first.RequestedAt)
}

func TestCandidateAndVoterIDsAreSeparate(t *testing.T) {
	r := New(Options{})

	candidate, err := r.RequestCandidate(alice, "Alice", "Blue", 1)
	require.NoError(t, err)
	voter, err := r.RequestVoter(bob, "Bob", 1)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), candidate.ID)
	assert.Equal(t, uint64(1), voter.ID)
}

func TestDuplicateRequests(t *testing.T) {
	r := New(Options{})

	_, err := r.RequestCandidate(alice, "Alice", "Blue", 1)
	require.NoError(t, err)
	_, err = r.RequestCandidate(alice, "Alice again", "Red", 2)
	assert.ErrorIs(t, err, models.ErrDuplicateRequest)

	_, err = r.ApproveCandidate(alice, 3)
	require.NoError(t, err)
	_, err = r.RequestCandidate(alice, "Alice", "Blue", 4)
	assert.ErrorIs(t, err, models.ErrDuplicateRequest)

	_, err = r.RequestVoter(bob, "Bob", 1)
	require.NoError(t, err)
	_, err = r.RequestVoter(bob, "Bob", 2)
	assert.ErrorIs(t, err, models.ErrDuplicateRequest)
}

func TestIDsAreNeverReused(t *testing.T) {
	r := New(Options{})

	_, err := r.RequestCandidate(alice, "Alice", "Blue", 1)
	require.NoError(t, err)
	_, err = r.RequestCandidate(alice, "Alice", "Blue", 1)
	require.Error(t, err)

	next, err := r.RequestCandidate(bob, "Bob", "Green", 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), next.ID)
}

func TestApprovals(t *testing.T) {
	r := New(Options{})

	_, err := r.ApproveVoter(alice, 1)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = r.RequestVoter(alice, "Alice", 1)
	require.NoError(t, err)
	assert.False(t, r.IsApprovedVoter(alice))

	voter, err := r.ApproveVoter(alice, 5)
	require.NoError(t, err)
	assert.True(t, voter.Approved)
	assert.Equal(t, int64(5), voter.ApprovedAt)
	assert.True(t, r.IsApprovedVoter(alice))

	_, err = r.ApproveVoter(alice, 6)
	assert.ErrorIs(t, err, models.ErrAlreadyApproved)

	_, err = r.ApproveCandidate(bob, 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = r.RequestCandidate(bob, "Bob", "Green", 1)
	require.NoError(t, err)
	_, err = r.ApproveCandidate(bob, 2)
	require.NoError(t, err)
	_, err = r.ApproveCandidate(bob, 3)
	assert.ErrorIs(t, err, models.ErrAlreadyApproved)
	assert.True(t, r.IsApprovedCandidate(1))
	assert.False(t, r.IsApprovedCandidate(2))
	assert.False(t, r.IsApprovedCandidate(0))
}

func TestStatus(t *testing.T) {
	r := New(Options{})

	assert.Equal(t, models.RegistrationStatus{}, r.CandidateStatus(alice))

	_, err := r.RequestCandidate(alice, "Alice", "Blue", 1)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatus{Registered: true}, r.CandidateStatus(alice))

	_, err = r.ApproveCandidate(alice, 2)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatus{Registered: true, Approved: true}, r.CandidateStatus(alice))
	assert.Equal(t, models.RegistrationStatus{}, r.VoterStatus(alice))
}

func TestListings(t *testing.T) {
	r := New(Options{})

	for i, wallet := range []common.Address{alice, bob, carol} {
		_, err := r.RequestVoter(wallet, "voter", int64(i))
		require.NoError(t, err)
	}
	_, err := r.ApproveVoter(bob, 10)
	require.NoError(t, err)

	assert.Len(t, r.Voters(All), 3)

	pending := r.Voters(Pending)
	require.Len(t, pending, 2)
	assert.Equal(t, alice, pending[0].Wallet)
	assert.Equal(t, carol, pending[1].Wallet)

	approved := r.Voters(Approved)
	require.Len(t, approved, 1)
	assert.Equal(t, bob, approved[0].Wallet)

	assert.Equal(t, Counts{Voters: 3, ApprovedVoters: 1}, r.Counts())
}

func TestListingsReturnCopies(t *testing.T) {
	r := New(Options{})
	_, err := r.RequestCandidate(alice, "Alice", "Blue", 1)
	require.NoError(t, err)

	list := r.Candidates(All)
	list[0].Approved = true

	assert.False(t, r.CandidateStatus(alice).Approved)
}

func TestBothRolesAllowedByDefault(t *testing.T) {
	r := New(Options{})

	_, err := r.RequestCandidate(alice, "Alice", "Blue", 1)
	require.NoError(t, err)
	_, err = r.RequestVoter(alice, "Alice", 1)
	assert.NoError(t, err)
}

func TestExclusiveRoles(t *testing.T) {
	r := New(Options{ExclusiveRoles: true})

	_, err := r.RequestCandidate(alice, "Alice", "Blue", 1)
	require.NoError(t, err)
	_, err = r.RequestVoter(alice, "Alice", 1)
	assert.ErrorIs(t, err, models.ErrDuplicateRequest)

	_, err = r.RequestVoter(bob, "Bob", 1)
	require.NoError(t, err)
	_, err = r.RequestCandidate(bob, "Bob", "Green", 1)
	assert.ErrorIs(t, err, models.ErrDuplicateRequest)
}

func TestRequestValidation(t *testing.T) {
	r := New(Options{})

	_, err := r.RequestCandidate(common.Address{}, "Zero", "None", 1)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = r.RequestCandidate(alice, "   ", "Blue", 1)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = r.RequestCandidate(alice, "Alice", "", 1)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = r.RequestVoter(alice, strings.Repeat("x", maxNameLength+1), 1)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = r.RequestVoter(alice, "bad\x07name", 1)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	assert.Empty(t, r.Voters(All))
	assert.Empty(t, r.Candidates(All))
}

func TestParseWallet(t *testing.T) {
	wallet, err := ParseWallet("0x00000000000000000000000000000000000A11CE")
	require.NoError(t, err)
	assert.Equal(t, alice, wallet)

	_, err = ParseWallet("0x1234")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = ParseWallet("0x0000000000000000000000000000000000000000")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("pending")
	require.NoError(t, err)
	assert.Equal(t, Pending, f)

	f, err = ParseFilter("")
	require.NoError(t, err)
	assert.Equal(t, All, f)

	_, err = ParseFilter("rejected")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
