// Package card defines the immutable card content model. Cards are created
// on import or authoring and never mutated by the scheduling core.
package card

import (
	"encoding"
	"encoding/json"
	"fmt"
)

// Kind distinguishes free-recall cards from multiple-choice cards.
type Kind int

const (
	Simple Kind = iota + 1 // Prompt/answer recall card.
	Choice                 // Multiple-choice card with options.
)

var (
	kindNames = [...]string{Simple: "simple", Choice: "choice"}

	kindByName = map[string]Kind{
		"simple": Simple,
		"choice": Choice,
	}
)

// Compile-time interface checks.
var (
	_ fmt.Stringer             = Kind(0)
	_ encoding.TextMarshaler   = Kind(0)
	_ encoding.TextUnmarshaler = (*Kind)(nil)
)

// IsValid reports whether k is a defined card kind.
func (k Kind) IsValid() bool {
	return k == Simple || k == Choice
}

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	if k.IsValid() {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.IsValid() {
		return nil, fmt.Errorf("card: invalid kind: %d", int(k))
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	v, ok := kindByName[string(text)]
	if !ok {
		return fmt.Errorf("card: invalid kind: %q", text)
	}
	*k = v
	return nil
}

// MarshalJSON implements json.Marshaler. Kind serializes as a JSON string.
func (k Kind) MarshalJSON() ([]byte, error) {
	text, err := k.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON implements json.Unmarshaler. Expects a JSON string.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("card: invalid kind: %s", data)
	}
	return k.UnmarshalText([]byte(s))
}

// Card is a single immutable flashcard.
type Card struct {
	ID          string   `json:"id"`
	DeckID      string   `json:"deck_id"`
	Prompt      string   `json:"prompt"`
	Answer      string   `json:"answer"`
	PromptImage string   `json:"prompt_image,omitempty"`
	AnswerImage string   `json:"answer_image,omitempty"`
	Kind        Kind     `json:"kind"`
	Options     []string `json:"options,omitempty"` // present iff Kind == Choice
	Position    int      `json:"position"`          // order within the deck
}

// Deck groups cards for study.
type Deck struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
