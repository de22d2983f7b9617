// File: models/types.go
package models

import (
	"fmt"
	"strings"
)

// Phase is the protocol stage of an election, derived from wall-clock time.
type Phase int

const (
	PhaseUpcoming Phase = iota
	PhaseVoting
	PhaseReveal
	PhaseEnded
)

var phaseNames = [...]string{"upcoming", "voting", "reveal", "ended"}

func (p Phase) String() string {
	if p < PhaseUpcoming || p > PhaseEnded {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePhase accepts the lowercase names produced by String.
func ParsePhase(s string) (Phase, error) {
	for i, name := range phaseNames {
		if strings.EqualFold(s, name) {
			return Phase(i), nil
		}
	}
	return PhaseUpcoming, fmt.Errorf("%w: unknown phase %q", ErrInvalidInput, s)
}

// RegistrationStatus is the public view of a wallet in one registry.
type RegistrationStatus struct {
	Registered bool `json:"registered"`
	Approved   bool `json:"approved"`
}

// VoterStatus extends the registry view with ballot progress.
type VoterStatus struct {
	RegistrationStatus
	HasCommitted bool `json:"has_committed"`
	HasRevealed  bool `json:"has_revealed"`
}
