// Package stats derives study statistics by projecting the scheduling
// state store and the review event log. It holds no state of its own:
// every figure is recomputable from the store and the log alone.
package stats

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/jfoster/retain/internal/card"
	"github.com/jfoster/retain/internal/fsrs"
	"github.com/jfoster/retain/internal/store"
)

// DefaultMatureIntervalDays is the scheduled interval at which a
// review-phase card counts as mastered-equivalent.
const DefaultMatureIntervalDays = 21.0

// StateSource is the slice of the state store the aggregator reads.
type StateSource interface {
	DeckStates(ctx context.Context, deckID, learnerID string) ([]store.StateRecord, error)
}

// CardSource supplies deck content so never-studied cards count as new.
type CardSource interface {
	DeckCards(ctx context.Context, deckID string) ([]card.Card, error)
}

// EventSource is the slice of the review log the aggregator reads.
type EventSource interface {
	Timestamps(ctx context.Context, learnerID string) ([]time.Time, error)
	CountSince(ctx context.Context, learnerID string, since time.Time) (int, error)
}

// Aggregator computes per-deck and global statistics for one learner.
type Aggregator struct {
	learnerID  string
	states     StateSource
	cards      CardSource
	events     EventSource
	loc        *time.Location
	matureDays float64
}

// New creates an Aggregator. loc is the learner's local time zone, used
// for calendar-day boundaries; nil means time.Local.
func New(learnerID string, states StateSource, cards CardSource, events EventSource, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{
		learnerID:  learnerID,
		states:     states,
		cards:      cards,
		events:     events,
		loc:        loc,
		matureDays: DefaultMatureIntervalDays,
	}
}

// DeckStats are the per-deck projections.
type DeckStats struct {
	Total      int
	New        int
	Learning   int
	Review     int
	Relearning int
	Due        int
	Mastered   int // review-phase cards at a mature interval
	Ratio      float64
}

// Deck projects phase counts, due count and mastery ratio for one deck.
// Cards without a scheduling record count as new and due.
func (a *Aggregator) Deck(ctx context.Context, deckID string, now time.Time) (*DeckStats, error) {
	cards, err := a.cards.DeckCards(ctx, deckID)
	if err != nil {
		return nil, err
	}
	records, err := a.states.DeckStates(ctx, deckID, a.learnerID)
	if err != nil {
		return nil, err
	}

	byCard := lo.KeyBy(records, func(r store.StateRecord) string { return r.CardID })

	ds := &DeckStats{Total: len(cards)}
	for _, c := range cards {
		rec, ok := byCard[c.ID]
		if !ok {
			ds.New++
			ds.Due++
			continue
		}

		switch rec.State.Phase {
		case fsrs.New:
			ds.New++
		case fsrs.Learning:
			ds.Learning++
		case fsrs.Review:
			ds.Review++
			if rec.State.ScheduledDays >= a.matureDays {
				ds.Mastered++
			}
		case fsrs.Relearning:
			ds.Relearning++
		}
		if rec.State.IsDue(now) {
			ds.Due++
		}
	}

	if ds.Total > 0 {
		ds.Ratio = float64(ds.Mastered) / float64(ds.Total)
	}
	return ds, nil
}

// Streak returns the number of consecutive local calendar days, ending at
// now's day (or the day before, when today has no reviews yet), that each
// contain at least one review event.
func (a *Aggregator) Streak(ctx context.Context, now time.Time) (int, error) {
	timestamps, err := a.events.Timestamps(ctx, a.learnerID)
	if err != nil {
		return 0, err
	}

	days := lo.SliceToMap(timestamps, func(t time.Time) (string, struct{}) {
		return t.In(a.loc).Format(time.DateOnly), struct{}{}
	})

	day := now.In(a.loc)
	if _, ok := days[day.Format(time.DateOnly)]; !ok {
		day = day.AddDate(0, 0, -1)
	}

	streak := 0
	for {
		if _, ok := days[day.Format(time.DateOnly)]; !ok {
			break
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak, nil
}

// ReviewedToday returns the number of reviews since local midnight. The
// count resets at midnight in the learner's time zone.
func (a *Aggregator) ReviewedToday(ctx context.Context, now time.Time) (int, error) {
	local := now.In(a.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, a.loc)
	return a.events.CountSince(ctx, a.learnerID, midnight)
}
