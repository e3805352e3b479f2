package store

import (
	"context"
	"time"

	"github.com/jfoster/retain/internal/card"
	"github.com/jfoster/retain/internal/fsrs"
)

// Origin tags how a scheduling state was last written. An authoritative
// write always overwrites an optimistic one for the same review; the
// reverse is refused.
type Origin string

const (
	OriginOptimistic    Origin = "optimistic"
	OriginAuthoritative Origin = "authoritative"
)

// StateRecord is one stored scheduling state with its write provenance.
type StateRecord struct {
	CardID    string
	LearnerID string
	State     fsrs.SchedulingState
	Origin    Origin
	UpdatedAt time.Time
}

// StateRepo manages the one mutable scheduling record per (card, learner).
type StateRepo interface {
	// Get returns the record for the pair, or nil if none exists.
	Get(ctx context.Context, cardID, learnerID string) (*StateRecord, error)

	// PutOptimistic writes a locally-computed state. The write is skipped
	// (without error) when the stored record is authoritative for the same
	// or a later review, so a delayed optimistic write can never clobber
	// an authoritative result.
	PutOptimistic(ctx context.Context, cardID, learnerID string, st fsrs.SchedulingState) error

	// PutAuthoritative writes a remotely-confirmed state, unconditionally.
	PutAuthoritative(ctx context.Context, cardID, learnerID string, st fsrs.SchedulingState) error

	// DeckStates returns all records for cards of the given deck.
	DeckStates(ctx context.Context, deckID, learnerID string) ([]StateRecord, error)
}

// ReviewEventData is one append-only review log record.
type ReviewEventData struct {
	ID            string
	CardID        string
	LearnerID     string
	Rating        fsrs.Rating
	Phase         fsrs.Phase // phase at time of review
	ElapsedDays   float64
	ScheduledDays float64
	DurationMs    int64
	Timestamp     time.Time
}

// SessionEventData is an end-of-session summary record.
type SessionEventData struct {
	SessionID    string
	DeckID       string
	LearnerID    string
	Reviewed     int
	Correct      int
	DurationSecs int
	Timestamp    time.Time
}

// ReviewLogRepo provides append access to the review event log and the
// read access the stats aggregator needs. Events are never read back into
// scheduling decisions.
type ReviewLogRepo interface {
	Append(ctx context.Context, data ReviewEventData) error
	AppendSession(ctx context.Context, data SessionEventData) error

	// Timestamps returns all review timestamps for the learner, ascending.
	Timestamps(ctx context.Context, learnerID string) ([]time.Time, error)

	// CountSince returns the number of reviews at or after since.
	CountSince(ctx context.Context, learnerID string, since time.Time) (int, error)
}

// PendingReview is a rating whose remote reconciliation has not yet
// succeeded.
type PendingReview struct {
	ID           int64
	CardID       string
	LearnerID    string
	Rating       fsrs.Rating
	ReviewTimeMs int64
	Reps         int // repetition count of the optimistic state; stale confirmations are dropped on sync
	Attempts     int
	CreatedAt    time.Time
}

// PendingRepo manages the queue of reviews awaiting reconciliation.
type PendingRepo interface {
	Enqueue(ctx context.Context, p PendingReview) error
	List(ctx context.Context, limit int) ([]PendingReview, error)
	Delete(ctx context.Context, id int64) error
	MarkAttempt(ctx context.Context, id int64) error
}

// CardRepo stores immutable card content and serves the due-card fetch.
type CardRepo interface {
	PutDeck(ctx context.Context, d card.Deck) error
	PutCard(ctx context.Context, c card.Card) error
	Decks(ctx context.Context) ([]card.Deck, error)
	DeckCards(ctx context.Context, deckID string) ([]card.Card, error)

	// DueCards returns the deck's cards whose scheduling state satisfies
	// due <= now, including cards with no state yet (new), paged and
	// ordered by due date then deck position.
	DueCards(ctx context.Context, deckID, learnerID string, now time.Time, limit, offset int) ([]card.Card, error)
}
