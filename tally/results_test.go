package tally

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealed-ballot/models"
)

func TestComputeTie(t *testing.T) {
	result := Compute(map[uint64]uint64{1: 5, 2: 5, 3: 3})

	assert.Equal(t, []uint64{1, 2}, result.Winners)
	assert.Equal(t, uint64(5), result.MaxVotes)
}

func TestComputeSingleWinner(t *testing.T) {
	result := Compute(map[uint64]uint64{4: 1, 2: 7, 9: 6})

	assert.Equal(t, []uint64{2}, result.Winners)
	assert.Equal(t, uint64(7), result.MaxVotes)
	assert.True(t, result.IsWinner(2))
	assert.False(t, result.IsWinner(9))
}

func TestComputeNoVotes(t *testing.T) {
	for _, tallies := range []map[uint64]uint64{nil, {}, {1: 0, 2: 0}} {
		result := Compute(tallies)
		assert.NotNil(t, result.Winners)
		assert.Empty(t, result.Winners)
		assert.Equal(t, uint64(0), result.MaxVotes)
	}
}

func TestComputeLaterMaxResetsWinners(t *testing.T) {
	result := Compute(map[uint64]uint64{1: 2, 2: 2, 3: 2, 4: 3})

	assert.Equal(t, []uint64{4}, result.Winners)
}

func TestStandings(t *testing.T) {
	candidates := []models.Candidate{
		{ID: 1, Name: "Ada", Party: "Blue"},
		{ID: 2, Name: "Ben", Party: "Green"},
		{ID: 3, Name: "Cy", Party: "Red"},
	}
	tallies := map[uint64]uint64{1: 1, 2: 2}
	result := Compute(tallies)

	standings := Standings(candidates, tallies, result)
	require.Len(t, standings, 3)

	assert.Equal(t, uint64(2), standings[0].CandidateID)
	assert.True(t, standings[0].Winner)
	assert.Equal(t, "66.7", standings[0].Share.StringFixed(1))

	assert.Equal(t, uint64(1), standings[1].CandidateID)
	assert.Equal(t, "33.3", standings[1].Share.StringFixed(1))
	assert.False(t, standings[1].Winner)

	assert.Equal(t, uint64(3), standings[2].CandidateID)
	assert.Equal(t, uint64(0), standings[2].Votes)
	assert.True(t, standings[2].Share.IsZero())
}

func TestStandingsWithoutVotes(t *testing.T) {
	candidates := []models.Candidate{{ID: 2, Name: "Ben"}, {ID: 1, Name: "Ada"}}

	standings := Standings(candidates, nil, Compute(nil))
	require.Len(t, standings, 2)
	assert.Equal(t, uint64(1), standings[0].CandidateID)
	assert.Equal(t, uint64(2), standings[1].CandidateID)
	assert.True(t, standings[0].Share.IsZero())
}

func TestVerify(t *testing.T) {
	v := Verify(10, 8, 6)
	assert.True(t, v.IsValid)
	assert.Equal(t, 2, v.Unrevealed)

	assert.False(t, Verify(2, 3, 1).IsValid)
	assert.False(t, Verify(5, 3, 4).IsValid)
}
