package fsrs

import "errors"

// Sentinel errors for the fsrs package.
// Check with errors.Is, e.g. errors.Is(err, fsrs.ErrInvalidRating).
var (
	ErrInvalidRating     = errors.New("fsrs: invalid rating")
	ErrInvalidPhase      = errors.New("fsrs: invalid phase")
	ErrInvalidParameters = errors.New("fsrs: parameters out of bounds")
)
