// Package session implements the study-session state machine: one bounded
// pass over a deck's due cards with optimistic local scheduling updates and
// asynchronous reconciliation against the authoritative remote scheduler.
package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jfoster/retain/internal/card"
	"github.com/jfoster/retain/internal/fsrs"
	"github.com/jfoster/retain/internal/store"
)

// Status is the session lifecycle state. There is no path back to
// NotStarted except an explicit restart via Start.
type Status int

const (
	NotStarted Status = iota
	InProgress
	Complete
)

// String returns the name of the status.
func (s Status) String() string {
	switch s {
	case InProgress:
		return "in-progress"
	case Complete:
		return "complete"
	default:
		return "not-started"
	}
}

var (
	ErrNotInProgress = errors.New("session: not in progress")
	ErrNoCurrentCard = errors.New("session: no current card")
	ErrNotChoice     = errors.New("session: current card is not a choice card")
	ErrNotStarted    = errors.New("session: not started")
)

// RefusalChoiceFloor explains why Good/Easy are unavailable after a wrong
// choice answer. Surfaced to the learner, not treated as an error.
const RefusalChoiceFloor = "choice answered incorrectly: only 'again' and 'hard' are accepted"

// Reconciler submits a rating to the authoritative remote scheduler and
// returns its next-state computation. *remote.Client satisfies this.
type Reconciler interface {
	SubmitReview(ctx context.Context, cardID string, rating fsrs.Rating, reviewTime time.Duration) (*fsrs.AuthoritativeUpdate, error)
}

// Entry is one card's slot in the session: the card, its scheduling state
// snapshot, and the four rating previews computed at presentation time.
type Entry struct {
	Card       card.Card
	State      fsrs.SchedulingState
	Previews   fsrs.Previews
	Restricted bool // wrong choice answer: ratings above Hard are refused
	Rated      bool
}

// CurrentCard is the caller-facing view of the card at the session cursor.
type CurrentCard struct {
	Card     card.Card
	State    fsrs.SchedulingState
	Previews fsrs.Previews
	Position int // 0-based index in the session
}

// Progress reports the session cursor as (current, total, percentage).
type Progress struct {
	Current    int
	Total      int
	Percentage float64 // always within [0, 100]; 0 when Total == 0
}

// Summary is the end-of-session record.
type Summary struct {
	SessionID string
	DeckID    string
	Reviewed  int
	Correct   int
	Duration  time.Duration
}

// Options configures a Manager.
type Options struct {
	LearnerID string
	Scheduler *fsrs.Scheduler
	States    store.StateRepo
	Reviews   store.ReviewLogRepo
	Pending   store.PendingRepo // nil disables the durable retry queue
	Remote    Reconciler        // nil runs fully offline (optimistic only)
	Log       *logrus.Logger
	Clock     func() time.Time // nil → time.Now; injected by tests
}

// Manager owns all session state. Mutation happens under one mutex: the
// synchronous rate/advance path and the reconciliation callbacks posted by
// remote submissions both funnel through it, so there is no re-entrant
// mutation from arbitrary call stacks.
type Manager struct {
	learnerID string
	sched     *fsrs.Scheduler
	states    store.StateRepo
	reviews   store.ReviewLogRepo
	pending   store.PendingRepo
	remote    Reconciler
	log       *logrus.Logger
	clock     func() time.Time

	mu        sync.Mutex
	wg        sync.WaitGroup
	status    Status
	sessionID string
	deckID    string
	entries   []*Entry
	byCard    map[string]*Entry
	index     int
	reviewed  int
	correct   int
	startedAt time.Time
	shownAt   time.Time
}

// New creates a Manager in the NotStarted state.
func New(opts Options) *Manager {
	log := opts.Log
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		learnerID: opts.LearnerID,
		sched:     opts.Scheduler,
		states:    opts.States,
		reviews:   opts.Reviews,
		pending:   opts.Pending,
		remote:    opts.Remote,
		log:       log,
		clock:     clock,
		status:    NotStarted,
	}
}

// Start builds a fresh session record over the given cards and transitions
// to InProgress. Cards already seen by this learner reuse their stored
// scheduling state; unknown or unreadable states fall back to a fresh
// new-phase state so partial storage loss never blocks studying.
// Duplicate card IDs are dropped: a card appears at most once per session.
// Calling Start again discards any previous record entirely.
func (m *Manager) Start(ctx context.Context, deckID string, cards []card.Card) error {
	now := m.clock()

	entries := make([]*Entry, 0, len(cards))
	byCard := make(map[string]*Entry, len(cards))
	for _, c := range cards {
		if _, dup := byCard[c.ID]; dup {
			m.log.WithField("card", c.ID).Warn("duplicate card dropped from session")
			continue
		}

		st := fsrs.NewState(now)
		rec, err := m.states.Get(ctx, c.ID, m.learnerID)
		switch {
		case err != nil:
			m.log.WithError(err).WithField("card", c.ID).
				Warn("unreadable scheduling state, falling back to new")
		case rec != nil:
			st = rec.State
		}

		e := &Entry{
			Card:     c,
			State:    st,
			Previews: m.sched.Preview(st, now),
		}
		entries = append(entries, e)
		byCard[c.ID] = e
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = InProgress
	m.sessionID = uuid.NewString()
	m.deckID = deckID
	m.entries = entries
	m.byCard = byCard
	m.index = 0
	m.reviewed = 0
	m.correct = 0
	m.startedAt = now
	m.shownAt = now
	return nil
}

// Status returns the current lifecycle state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// SessionID returns the identifier of the current session record.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// CurrentCard returns the card at the session cursor, or nil when the
// cursor is past the last card or the session is not in progress.
func (m *Manager) CurrentCard() *CurrentCard {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.currentLocked()
	if e == nil {
		return nil
	}
	return &CurrentCard{
		Card:     e.Card,
		State:    e.State,
		Previews: e.Previews,
		Position: m.index,
	}
}

func (m *Manager) currentLocked() *Entry {
	if m.status != InProgress || m.index >= len(m.entries) {
		return nil
	}
	return m.entries[m.index]
}

// AnswerChoice checks the selected option of the current choice card and
// reports whether it was correct. A wrong selection restricts the
// acceptable ratings for this card to Again and Hard.
func (m *Manager) AnswerChoice(selected string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.currentLocked()
	if e == nil {
		if m.status != InProgress {
			return false, ErrNotInProgress
		}
		return false, ErrNoCurrentCard
	}
	if e.Card.Kind != card.Choice {
		return false, ErrNotChoice
	}

	correct := selected == e.Card.Answer
	if !correct {
		e.Restricted = true
	}
	return correct, nil
}

// NextCard advances the cursor and reports whether a card remains. When
// the pass is exhausted the session transitions to Complete.
func (m *Manager) NextCard() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != InProgress {
		return false
	}
	if m.index < len(m.entries) {
		m.index++
	}
	if m.index >= len(m.entries) {
		m.status = Complete
		return false
	}
	m.shownAt = m.clock()
	return true
}

// Progress returns (currentIndex+1, total, percentage). Percentage is 0
// for an empty session and clamped to [0, 100] otherwise.
func (m *Manager) Progress() Progress {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := len(m.entries)
	if total == 0 {
		return Progress{}
	}
	current := m.index + 1
	if current > total {
		current = total
	}
	return Progress{
		Current:    current,
		Total:      total,
		Percentage: float64(current) / float64(total) * 100,
	}
}

// EndSession emits the session summary record and discards the session
// record. Not-yet-reconciled optimistic state stays pinned in the
// scheduling state store under the card identity; in-flight remote calls
// are not cancelled and complete against the store independently.
func (m *Manager) EndSession(ctx context.Context) (*Summary, error) {
	m.mu.Lock()
	if m.status == NotStarted {
		m.mu.Unlock()
		return nil, ErrNotStarted
	}

	now := m.clock()
	summary := &Summary{
		SessionID: m.sessionID,
		DeckID:    m.deckID,
		Reviewed:  m.reviewed,
		Correct:   m.correct,
		Duration:  now.Sub(m.startedAt),
	}
	m.entries = nil
	m.byCard = nil
	m.status = Complete
	m.mu.Unlock()

	err := m.reviews.AppendSession(ctx, store.SessionEventData{
		SessionID:    summary.SessionID,
		DeckID:       summary.DeckID,
		LearnerID:    m.learnerID,
		Reviewed:     summary.Reviewed,
		Correct:      summary.Correct,
		DurationSecs: int(summary.Duration.Seconds()),
		Timestamp:    now,
	})
	if err != nil {
		m.log.WithError(err).Warn("session summary not recorded")
	}
	return summary, nil
}

// Wait blocks until all dispatched reconciliation calls have completed.
// Intended for shutdown and tests; the session flow itself never waits.
func (m *Manager) Wait() {
	m.wg.Wait()
}
