package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jfoster/retain/internal/fsrs"
	"github.com/jfoster/retain/internal/store"
)

// RateResult is the synchronous outcome of a rating. A refused rating is a
// defined no-op, not an error: the caller surfaces Reason to the learner.
type RateResult struct {
	Refused  bool
	Reason   string
	State    fsrs.SchedulingState // the committed optimistic state
	Previews fsrs.Previews        // previews used for the commit
}

// RateCard applies the rating to the current card. The scheduling update is
// computed locally and applied immediately (optimistic, local-first); the
// rating is then submitted to the authoritative remote scheduler in the
// background. A remote failure never blocks or rolls back the session: the
// optimistic state stands and the submission is queued for a later sync.
func (m *Manager) RateCard(ctx context.Context, rating fsrs.Rating) (*RateResult, error) {
	if !rating.IsValid() {
		return nil, fmt.Errorf("%w: %d", fsrs.ErrInvalidRating, int(rating))
	}

	m.mu.Lock()
	e := m.currentLocked()
	if e == nil {
		status := m.status
		m.mu.Unlock()
		if status != InProgress {
			return nil, ErrNotInProgress
		}
		return nil, ErrNoCurrentCard
	}

	if e.Restricted && rating.Correct() {
		m.mu.Unlock()
		return &RateResult{Refused: true, Reason: RefusalChoiceFloor}, nil
	}

	now := m.clock()
	reviewTime := now.Sub(m.shownAt)
	if reviewTime < 0 {
		reviewTime = 0
	}

	phaseAtReview := e.State.Phase
	next, previews := m.sched.ComputeUpdate(e.State, rating, now)
	e.State = next
	e.Rated = true
	m.reviewed++
	if rating.Correct() {
		m.correct++
	}
	cardID := e.Card.ID
	m.mu.Unlock()

	// Local-first: the optimistic state must be visible before the remote
	// call is dispatched.
	if err := m.states.PutOptimistic(ctx, cardID, m.learnerID, next); err != nil {
		m.log.WithError(err).WithField("card", cardID).Warn("optimistic state not persisted")
	}

	// The review event is recorded regardless of the remote outcome.
	err := m.reviews.Append(ctx, store.ReviewEventData{
		ID:            uuid.NewString(),
		CardID:        cardID,
		LearnerID:     m.learnerID,
		Rating:        rating,
		Phase:         phaseAtReview,
		ElapsedDays:   next.ElapsedDays,
		ScheduledDays: next.ScheduledDays,
		DurationMs:    reviewTime.Milliseconds(),
		Timestamp:     now,
	})
	if err != nil {
		m.log.WithError(err).WithField("card", cardID).Warn("review event not recorded")
	}

	if m.remote != nil {
		m.wg.Add(1)
		go m.reconcile(cardID, rating, reviewTime, next.Reps)
	}

	return &RateResult{State: next, Previews: previews}, nil
}

// reconcileTimeout bounds one background reconciliation, including the
// client's internal retries.
const reconcileTimeout = time.Minute

// reconcile submits the rating to the authoritative scheduler and posts the
// result back into the manager's control flow. It runs detached from the
// session context: ending the session does not cancel it.
func (m *Manager) reconcile(cardID string, rating fsrs.Rating, reviewTime time.Duration, reps int) {
	defer m.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	update, err := m.remote.SubmitReview(ctx, cardID, rating, reviewTime)
	if err != nil {
		m.log.WithError(err).WithField("card", cardID).
			Warn("reconciliation failed, optimistic state retained")
		m.enqueuePending(ctx, cardID, rating, reviewTime, reps)
		return
	}

	m.applyAuthoritative(ctx, cardID, *update)
}

func (m *Manager) enqueuePending(ctx context.Context, cardID string, rating fsrs.Rating, reviewTime time.Duration, reps int) {
	if m.pending == nil {
		return
	}
	err := m.pending.Enqueue(ctx, store.PendingReview{
		CardID:       cardID,
		LearnerID:    m.learnerID,
		Rating:       rating,
		ReviewTimeMs: reviewTime.Milliseconds(),
		Reps:         reps,
		CreatedAt:    m.clock(),
	})
	if err != nil {
		m.log.WithError(err).WithField("card", cardID).Warn("pending review not queued")
	}
}

// applyAuthoritative reconciles an authoritative response, addressed by
// card identity. The state store entry is always overwritten; the
// in-memory session snapshot is updated only when the card is still
// current, so a late response cannot corrupt a card the learner has
// advanced past.
func (m *Manager) applyAuthoritative(ctx context.Context, cardID string, update fsrs.AuthoritativeUpdate) {
	m.mu.Lock()
	var base *fsrs.SchedulingState
	entry := m.byCard[cardID]
	if entry != nil {
		st := entry.State
		base = &st
	}
	m.mu.Unlock()

	if base == nil {
		// The session record is gone (ended or restarted); merge over the
		// stored state instead.
		rec, err := m.states.Get(ctx, cardID, m.learnerID)
		if err != nil || rec == nil {
			if err != nil {
				m.log.WithError(err).WithField("card", cardID).Warn("authoritative merge base unavailable")
			}
			st := fsrs.NewState(m.clock())
			base = &st
		} else {
			base = &rec.State
		}
	}

	merged := base.MergeAuthoritative(update)
	if err := m.states.PutAuthoritative(ctx, cardID, m.learnerID, merged); err != nil {
		m.log.WithError(err).WithField("card", cardID).Warn("authoritative state not persisted")
		return
	}

	m.mu.Lock()
	if e := m.byCard[cardID]; e != nil && m.currentLocked() == e {
		e.State = merged
	}
	m.mu.Unlock()
}
