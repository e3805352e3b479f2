package fsrs

import (
	"encoding"
	"encoding/json"
	"fmt"
)

// Phase is the lifecycle stage of a card's scheduling state.
type Phase int

const (
	New        Phase = iota + 1 // Never reviewed.
	Learning                    // In the initial learning steps.
	Review                      // Entered the long-term review cycle.
	Relearning                  // Forgotten after Review, relearning.
)

var (
	phaseNames = [...]string{New: "new", Learning: "learning", Review: "review", Relearning: "relearning"}

	phaseByName = map[string]Phase{
		"new":        New,
		"learning":   Learning,
		"review":     Review,
		"relearning": Relearning,
	}
)

// Compile-time interface checks.
var (
	_ fmt.Stringer             = Phase(0)
	_ encoding.TextMarshaler   = Phase(0)
	_ encoding.TextUnmarshaler = (*Phase)(nil)
)

// IsValid reports whether p is one of the four defined phases.
func (p Phase) IsValid() bool {
	return p >= New && p <= Relearning
}

// String returns the lowercase name of the phase.
// For invalid values it returns "Phase(n)".
func (p Phase) String() string {
	if p.IsValid() {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// ParsePhase converts a lowercase phase name to a Phase.
func ParsePhase(s string) (Phase, error) {
	p, ok := phaseByName[s]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPhase, s)
	}
	return p, nil
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	if !p.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPhase, int(p))
	}
	return []byte(phaseNames[p]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(text []byte) error {
	v, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// MarshalJSON implements json.Marshaler. Phase serializes as a JSON string.
func (p Phase) MarshalJSON() ([]byte, error) {
	text, err := p.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON implements json.Unmarshaler. Expects a JSON string.
func (p *Phase) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPhase, data)
	}
	return p.UnmarshalText([]byte(s))
}
