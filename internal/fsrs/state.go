package fsrs

import "time"

// SchedulingState is the memory model's belief state for one (card, learner)
// pair. It is created in the New phase and mutated only by the Scheduler's
// ComputeUpdate, once per rating.
type SchedulingState struct {
	Stability     float64    `json:"stability"`      // estimated days until recall decays to the retention threshold
	Difficulty    float64    `json:"difficulty"`     // intrinsic item hardness, clamped to [1, 10]
	ElapsedDays   float64    `json:"elapsed_days"`   // days between the last two reviews
	ScheduledDays float64    `json:"scheduled_days"` // length of the current scheduled interval
	Reps          int        `json:"reps"`           // total reviews; non-decreasing
	Lapses        int        `json:"lapses"`         // Again ratings on Review-phase cards; non-decreasing
	Phase         Phase      `json:"phase"`
	Step          int        `json:"step"` // learning/relearning step index; meaningful only in those phases
	Due           time.Time  `json:"due"`
	LastReview    *time.Time `json:"last_review"` // nil before the first review
}

// NewState returns a fresh New-phase state, due immediately.
func NewState(now time.Time) SchedulingState {
	return SchedulingState{
		Phase: New,
		Due:   now,
	}
}

// Reviewed reports whether the state has seen at least one rating.
func (s SchedulingState) Reviewed() bool {
	return s.LastReview != nil
}

// IsDue reports whether the card is eligible for re-presentation at now.
func (s SchedulingState) IsDue(now time.Time) bool {
	return !now.Before(s.Due)
}

// AuthoritativeUpdate is the subset of scheduling fields computed by the
// external authoritative scheduler. Locally-maintained counters (reps,
// lapses) are not part of the remote contract.
type AuthoritativeUpdate struct {
	Stability  float64
	Difficulty float64
	Phase      Phase
	Due        time.Time
}

// MergeAuthoritative overwrites the memory-model fields of s with the
// authoritative values, keeping the local counters and review timestamps.
func (s SchedulingState) MergeAuthoritative(u AuthoritativeUpdate) SchedulingState {
	out := s
	out.Stability = clampStability(u.Stability)
	out.Difficulty = clampDifficulty(u.Difficulty)
	out.Phase = u.Phase
	out.Due = u.Due
	if s.LastReview != nil {
		out.ScheduledDays = u.Due.Sub(*s.LastReview).Hours() / 24.0
	}
	return out
}
