package fsrs

import (
	"fmt"
	"time"
)

// Scheduler computes scheduling updates using the FSRS v6 memory model.
// It is pure: the same (state, rating, now) inputs always yield the same
// outputs, and no input is mutated. Interval fuzzing is deliberately not
// implemented — determinism is required for preview/commit consistency
// and safe retry.
type Scheduler struct {
	algo             algo
	desiredRetention float64
	learningSteps    []time.Duration
	relearningSteps  []time.Duration
	maximumInterval  int
}

// NewScheduler creates a Scheduler from the given params.
// Zero-value fields are filled with defaults; invalid values return an error.
func NewScheduler(p Params) (*Scheduler, error) {
	weights := p.Weights
	if weights == ([21]float64{}) {
		weights = DefaultWeights
	}
	if err := validateWeights(weights); err != nil {
		return nil, err
	}

	dr := p.DesiredRetention
	if dr == 0 {
		dr = 0.9
	}
	if dr < 0 || dr > 1 {
		return nil, fmt.Errorf("%w: desired retention %f out of range (0, 1]", ErrInvalidParameters, dr)
	}

	maxIvl := p.MaximumInterval
	if maxIvl == 0 {
		maxIvl = 36500
	}
	if maxIvl < 0 {
		return nil, fmt.Errorf("%w: maximum interval %d must be positive", ErrInvalidParameters, maxIvl)
	}

	ls := p.LearningSteps
	if ls == nil {
		ls = []time.Duration{time.Minute, 10 * time.Minute}
	}
	rs := p.RelearningSteps
	if rs == nil {
		rs = []time.Duration{10 * time.Minute}
	}

	return &Scheduler{
		algo:             newAlgo(weights),
		desiredRetention: dr,
		learningSteps:    ls,
		relearningSteps:  rs,
		maximumInterval:  maxIvl,
	}, nil
}

// Previews holds the hypothetical next interval, in days, for each rating
// applied to the same pre-update state. The scheduler guarantees
// Again <= Hard <= Good <= Easy.
type Previews struct {
	Again float64 `json:"again"`
	Hard  float64 `json:"hard"`
	Good  float64 `json:"good"`
	Easy  float64 `json:"easy"`
}

// For returns the preview interval for the given rating.
func (p Previews) For(r Rating) float64 {
	switch r {
	case Again:
		return p.Again
	case Hard:
		return p.Hard
	case Good:
		return p.Good
	default:
		return p.Easy
	}
}

// ComputeUpdate applies the rating to the state at the given time and
// returns the next state along with the four interval previews computed
// from the pre-update state. The committed state always equals the state
// implied by the matching preview.
//
// Invalid ratings are a caller contract violation; validate with
// Rating.IsValid before calling.
func (s *Scheduler) ComputeUpdate(state SchedulingState, rating Rating, now time.Time) (SchedulingState, Previews) {
	candidates := s.candidates(state, now)
	return candidates[rating], previewsOf(candidates)
}

// Preview returns the four hypothetical next intervals for the state
// without committing an update.
func (s *Scheduler) Preview(state SchedulingState, now time.Time) Previews {
	return previewsOf(s.candidates(state, now))
}

// Retrievability returns the current probability of recall for the state.
// Returns 0 for never-reviewed states.
func (s *Scheduler) Retrievability(state SchedulingState, now time.Time) float64 {
	if !state.Reviewed() || state.Stability <= 0 {
		return 0
	}
	elapsed := now.Sub(*state.LastReview).Hours() / 24.0
	return s.algo.retrievability(elapsed, state.Stability)
}

// candidates computes the full next state for each of the four ratings and
// enforces interval monotonicity across them: a higher rating never yields
// a shorter scheduled interval than a lower one.
func (s *Scheduler) candidates(state SchedulingState, now time.Time) map[Rating]SchedulingState {
	out := make(map[Rating]SchedulingState, len(AllRatings))
	maxDays := 0.0
	for _, r := range AllRatings {
		c := s.reviewOnce(state, r, now)
		if c.ScheduledDays < maxDays {
			c.ScheduledDays = maxDays
			c.Due = now.Add(daysToDuration(maxDays))
		} else {
			maxDays = c.ScheduledDays
		}
		out[r] = c
	}
	return out
}

func previewsOf(candidates map[Rating]SchedulingState) Previews {
	return Previews{
		Again: candidates[Again].ScheduledDays,
		Hard:  candidates[Hard].ScheduledDays,
		Good:  candidates[Good].ScheduledDays,
		Easy:  candidates[Easy].ScheduledDays,
	}
}

// reviewOnce computes the raw next state for a single rating, before the
// monotonicity sweep.
func (s *Scheduler) reviewOnce(state SchedulingState, rating Rating, now time.Time) SchedulingState {
	c := state

	var elapsedDays float64
	if c.LastReview != nil {
		elapsedDays = now.Sub(*c.LastReview).Hours() / 24.0
		if elapsedDays < 0 {
			elapsedDays = 0
		}
	}
	c.ElapsedDays = elapsedDays

	s.updateMemory(&c, rating, elapsedDays)

	// A lapse is an Again rating on a card previously in Review.
	if rating == Again && state.Phase == Review {
		c.Lapses++
	}
	c.Reps++

	interval := s.transition(&c, state.Phase, rating)

	c.ScheduledDays = interval.Hours() / 24.0
	c.Due = now.Add(interval)
	reviewedAt := now
	c.LastReview = &reviewedAt
	return c
}

// updateMemory updates stability and difficulty for the review.
func (s *Scheduler) updateMemory(c *SchedulingState, rating Rating, elapsedDays float64) {
	if !c.Reviewed() {
		c.Stability = s.algo.initStability(rating)
		c.Difficulty = s.algo.initDifficulty(rating, true)
		return
	}

	if elapsedDays < 1 {
		c.Stability = s.algo.shortTermStability(c.Stability, rating)
	} else {
		r := s.algo.retrievability(elapsedDays, c.Stability)
		c.Stability = s.algo.nextStability(c.Difficulty, c.Stability, r, rating)
	}
	c.Difficulty = s.algo.nextDifficulty(c.Difficulty, rating)
}

// transition applies the phase state machine and returns the next interval.
func (s *Scheduler) transition(c *SchedulingState, from Phase, rating Rating) time.Duration {
	switch from {
	case New:
		return s.transitionNew(c, rating)
	case Learning:
		return s.transitionSteps(c, rating, s.learningSteps)
	case Relearning:
		return s.transitionSteps(c, rating, s.relearningSteps)
	default:
		return s.transitionReview(c, rating)
	}
}

// transitionNew handles the first rating of a card. Easy shortcuts the
// learning steps entirely; Good advances into them; Again and Hard start
// at the first step.
func (s *Scheduler) transitionNew(c *SchedulingState, rating Rating) time.Duration {
	steps := s.learningSteps
	if len(steps) == 0 || rating == Easy {
		return s.graduate(c)
	}

	c.Phase = Learning
	switch rating {
	case Again:
		c.Step = 0
		return steps[0]
	case Hard:
		c.Step = 0
		return hardStepInterval(steps, 0)
	default: // Good
		if len(steps) < 2 {
			return s.graduate(c)
		}
		c.Step = 1
		return steps[1]
	}
}

// transitionSteps handles Learning and Relearning step progression.
func (s *Scheduler) transitionSteps(c *SchedulingState, rating Rating, steps []time.Duration) time.Duration {
	step := c.Step

	// No steps configured, or overflowed steps with a passing rating.
	if len(steps) == 0 || (step >= len(steps) && rating != Again) {
		return s.graduate(c)
	}

	switch rating {
	case Again:
		c.Step = 0
		return steps[0]

	case Hard:
		return hardStepInterval(steps, step)

	case Good:
		next := step + 1
		if next >= len(steps) {
			return s.graduate(c)
		}
		c.Step = next
		return steps[next]

	default: // Easy
		return s.graduate(c)
	}
}

// transitionReview handles ratings on Review-phase cards. Again demotes to
// Relearning when relearning steps are configured.
func (s *Scheduler) transitionReview(c *SchedulingState, rating Rating) time.Duration {
	if rating == Again && len(s.relearningSteps) > 0 {
		c.Phase = Relearning
		c.Step = 0
		return s.relearningSteps[0]
	}

	c.Step = 0
	days := s.algo.nextInterval(c.Stability, s.desiredRetention, s.maximumInterval)
	return daysToDuration(float64(days))
}

// graduate moves the card into the Review phase with a full interval.
func (s *Scheduler) graduate(c *SchedulingState) time.Duration {
	c.Phase = Review
	c.Step = 0
	days := s.algo.nextInterval(c.Stability, s.desiredRetention, s.maximumInterval)
	return daysToDuration(float64(days))
}

// hardStepInterval is the Hard interval at the given step: repeat the
// current step, except at the first step where it lands between the first
// and second steps.
func hardStepInterval(steps []time.Duration, step int) time.Duration {
	if step == 0 && len(steps) == 1 {
		return time.Duration(float64(steps[0]) * 1.5)
	}
	if step == 0 && len(steps) >= 2 {
		return (steps[0] + steps[1]) / 2
	}
	if step >= len(steps) {
		step = len(steps) - 1
	}
	return steps[step]
}

func daysToDuration(days float64) time.Duration {
	return time.Duration(days * 24 * float64(time.Hour))
}
