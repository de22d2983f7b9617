// Package phase derives the protocol stage of an election from wall-clock time.
package phase

import "sealed-ballot/models"

// Derive returns the phase of e at now (unix seconds). It has no hidden state.
//
// An inactive election is Ended regardless of time: ending early forfeits the
// reveal window.
func Derive(e models.Election, now int64) models.Phase {
	switch {
	case !e.Active:
		return models.PhaseEnded
	case now < e.VotingStart:
		return models.PhaseUpcoming
	case now < e.VotingEnd:
		return models.PhaseVoting
	case now < e.RevealDeadline():
		return models.PhaseReveal
	default:
		return models.PhaseEnded
	}
}

// NextTransition reports the phase e moves into next and the unix second at
// which it does. ok is false once the election has Ended.
func NextTransition(e models.Election, now int64) (next models.Phase, at int64, ok bool) {
	switch Derive(e, now) {
	case models.PhaseUpcoming:
		return models.PhaseVoting, e.VotingStart, true
	case models.PhaseVoting:
		return models.PhaseReveal, e.VotingEnd, true
	case models.PhaseReveal:
		return models.PhaseEnded, e.RevealDeadline(), true
	default:
		return models.PhaseEnded, 0, false
	}
}
