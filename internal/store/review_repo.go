package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type reviewLogRepo struct {
	db *sql.DB
}

func (r *reviewLogRepo) Append(ctx context.Context, data ReviewEventData) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO review_events
			(id, card_id, learner_id, rating, phase, elapsed_days, scheduled_days, duration_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		data.ID, data.CardID, data.LearnerID,
		data.Rating.String(), data.Phase.String(),
		data.ElapsedDays, data.ScheduledDays,
		data.DurationMs, data.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append review event: %w", err)
	}
	return nil
}

func (r *reviewLogRepo) AppendSession(ctx context.Context, data SessionEventData) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session_events
			(session_id, deck_id, learner_id, reviewed, correct, duration_secs, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		data.SessionID, data.DeckID, data.LearnerID,
		data.Reviewed, data.Correct, data.DurationSecs, data.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append session event: %w", err)
	}
	return nil
}

func (r *reviewLogRepo) Timestamps(ctx context.Context, learnerID string) ([]time.Time, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT timestamp FROM review_events
		WHERE learner_id = ?
		ORDER BY timestamp
	`, learnerID)
	if err != nil {
		return nil, fmt.Errorf("query review timestamps: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan review timestamp: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *reviewLogRepo) CountSince(ctx context.Context, learnerID string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM review_events
		WHERE learner_id = ? AND timestamp >= ?
	`, learnerID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count reviews since %s: %w", since, err)
	}
	return n, nil
}
