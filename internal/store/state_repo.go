package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jfoster/retain/internal/fsrs"
)

type stateRepo struct {
	db *sql.DB
}

const stateColumns = `card_id, learner_id, stability, difficulty, elapsed_days,
	scheduled_days, reps, lapses, phase, step, due, last_review, origin, updated_at`

func (r *stateRepo) Get(ctx context.Context, cardID, learnerID string) (*StateRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+stateColumns+`
		FROM scheduling_states WHERE card_id = ? AND learner_id = ?
	`, cardID, learnerID)

	rec, err := scanStateRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get scheduling state %s/%s: %w", cardID, learnerID, err)
	}
	return rec, nil
}

func (r *stateRepo) PutOptimistic(ctx context.Context, cardID, learnerID string, st fsrs.SchedulingState) error {
	// The conflict guard refuses optimistic writes over an authoritative
	// record at the same or a later repetition, never the reverse.
	err := r.upsert(ctx, cardID, learnerID, st, OriginOptimistic, `
		WHERE NOT (scheduling_states.origin = 'authoritative'
			AND scheduling_states.reps >= excluded.reps)`)
	if err != nil {
		return fmt.Errorf("put optimistic state %s/%s: %w", cardID, learnerID, err)
	}
	return nil
}

func (r *stateRepo) PutAuthoritative(ctx context.Context, cardID, learnerID string, st fsrs.SchedulingState) error {
	if err := r.upsert(ctx, cardID, learnerID, st, OriginAuthoritative, ""); err != nil {
		return fmt.Errorf("put authoritative state %s/%s: %w", cardID, learnerID, err)
	}
	return nil
}

func (r *stateRepo) upsert(ctx context.Context, cardID, learnerID string, st fsrs.SchedulingState, origin Origin, guard string) error {
	var lastReview sql.NullTime
	if st.LastReview != nil {
		lastReview = sql.NullTime{Time: *st.LastReview, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scheduling_states (`+stateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(card_id, learner_id) DO UPDATE SET
			stability = excluded.stability,
			difficulty = excluded.difficulty,
			elapsed_days = excluded.elapsed_days,
			scheduled_days = excluded.scheduled_days,
			reps = excluded.reps,
			lapses = excluded.lapses,
			phase = excluded.phase,
			step = excluded.step,
			due = excluded.due,
			last_review = excluded.last_review,
			origin = excluded.origin,
			updated_at = excluded.updated_at
		`+guard,
		cardID, learnerID,
		st.Stability, st.Difficulty, st.ElapsedDays, st.ScheduledDays,
		st.Reps, st.Lapses, st.Phase.String(), st.Step,
		st.Due, lastReview, string(origin), time.Now(),
	)
	return err
}

func (r *stateRepo) DeckStates(ctx context.Context, deckID, learnerID string) ([]StateRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.card_id, s.learner_id, s.stability, s.difficulty, s.elapsed_days,
			s.scheduled_days, s.reps, s.lapses, s.phase, s.step, s.due, s.last_review,
			s.origin, s.updated_at
		FROM scheduling_states s
		JOIN cards c ON c.id = s.card_id
		WHERE c.deck_id = ? AND s.learner_id = ?
	`, deckID, learnerID)
	if err != nil {
		return nil, fmt.Errorf("query deck states %s: %w", deckID, err)
	}
	defer rows.Close()

	var records []StateRecord
	for rows.Next() {
		rec, err := scanStateRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deck state row: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanStateRecord(row rowScanner) (*StateRecord, error) {
	var (
		rec        StateRecord
		phase      string
		lastReview sql.NullTime
		origin     string
	)
	err := row.Scan(
		&rec.CardID, &rec.LearnerID,
		&rec.State.Stability, &rec.State.Difficulty,
		&rec.State.ElapsedDays, &rec.State.ScheduledDays,
		&rec.State.Reps, &rec.State.Lapses,
		&phase, &rec.State.Step,
		&rec.State.Due, &lastReview,
		&origin, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p, err := fsrs.ParsePhase(phase)
	if err != nil {
		return nil, err
	}
	rec.State.Phase = p
	if lastReview.Valid {
		t := lastReview.Time
		rec.State.LastReview = &t
	}
	rec.Origin = Origin(origin)
	return &rec, nil
}
