package store

import (
	"context"
	"database/sql"
	"fmt"
)

type pendingRepo struct {
	db *sql.DB
}

func (r *pendingRepo) Enqueue(ctx context.Context, p PendingReview) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pending_reviews
			(card_id, learner_id, rating, review_time_ms, reps, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		p.CardID, p.LearnerID, p.Rating.String(),
		p.ReviewTimeMs, p.Reps, p.Attempts, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("enqueue pending review: %w", err)
	}
	return nil
}

func (r *pendingRepo) List(ctx context.Context, limit int) ([]PendingReview, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, card_id, learner_id, rating, review_time_ms, reps, attempts, created_at
		FROM pending_reviews
		ORDER BY created_at
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending reviews: %w", err)
	}
	defer rows.Close()

	var out []PendingReview
	for rows.Next() {
		var (
			p      PendingReview
			rating string
		)
		if err := rows.Scan(&p.ID, &p.CardID, &p.LearnerID, &rating,
			&p.ReviewTimeMs, &p.Reps, &p.Attempts, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending review: %w", err)
		}
		if err := p.Rating.UnmarshalText([]byte(rating)); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *pendingRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pending_reviews WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete pending review %d: %w", id, err)
	}
	return nil
}

func (r *pendingRepo) MarkAttempt(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE pending_reviews SET attempts = attempts + 1 WHERE id = ?
	`, id); err != nil {
		return fmt.Errorf("mark pending attempt %d: %w", id, err)
	}
	return nil
}
