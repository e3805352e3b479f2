package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jfoster/retain/internal/card"
)

type cardRepo struct {
	db *sql.DB
}

func (r *cardRepo) PutDeck(ctx context.Context, d card.Deck) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO decks (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, d.ID, d.Name)
	if err != nil {
		return fmt.Errorf("put deck %s: %w", d.ID, err)
	}
	return nil
}

func (r *cardRepo) PutCard(ctx context.Context, c card.Card) error {
	options := ""
	if len(c.Options) > 0 {
		raw, err := json.Marshal(c.Options)
		if err != nil {
			return fmt.Errorf("marshal options for card %s: %w", c.ID, err)
		}
		options = string(raw)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cards
			(id, deck_id, prompt, answer, prompt_image, answer_image, kind, options, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			deck_id = excluded.deck_id,
			prompt = excluded.prompt,
			answer = excluded.answer,
			prompt_image = excluded.prompt_image,
			answer_image = excluded.answer_image,
			kind = excluded.kind,
			options = excluded.options,
			position = excluded.position
	`,
		c.ID, c.DeckID, c.Prompt, c.Answer,
		c.PromptImage, c.AnswerImage, c.Kind.String(), options, c.Position,
	)
	if err != nil {
		return fmt.Errorf("put card %s: %w", c.ID, err)
	}
	return nil
}

func (r *cardRepo) Decks(ctx context.Context) ([]card.Deck, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM decks ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query decks: %w", err)
	}
	defer rows.Close()

	var out []card.Deck
	for rows.Next() {
		var d card.Deck
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, fmt.Errorf("scan deck: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

const cardColumns = `id, deck_id, prompt, answer, prompt_image, answer_image, kind, options, position`

func (r *cardRepo) DeckCards(ctx context.Context, deckID string) ([]card.Card, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+cardColumns+` FROM cards
		WHERE deck_id = ?
		ORDER BY position
	`, deckID)
	if err != nil {
		return nil, fmt.Errorf("query deck cards %s: %w", deckID, err)
	}
	return collectCards(rows)
}

func (r *cardRepo) DueCards(ctx context.Context, deckID, learnerID string, now time.Time, limit, offset int) ([]card.Card, error) {
	// Cards with no scheduling state yet are new and therefore due.
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.deck_id, c.prompt, c.answer, c.prompt_image, c.answer_image,
			c.kind, c.options, c.position
		FROM cards c
		LEFT JOIN scheduling_states s
			ON s.card_id = c.id AND s.learner_id = ?
		WHERE c.deck_id = ? AND (s.card_id IS NULL OR s.due <= ?)
		ORDER BY COALESCE(s.due, ?), c.position
		LIMIT ? OFFSET ?
	`, learnerID, deckID, now, now, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query due cards %s: %w", deckID, err)
	}
	return collectCards(rows)
}

func collectCards(rows *sql.Rows) ([]card.Card, error) {
	defer rows.Close()

	var out []card.Card
	for rows.Next() {
		var (
			c       card.Card
			kind    string
			options string
		)
		if err := rows.Scan(&c.ID, &c.DeckID, &c.Prompt, &c.Answer,
			&c.PromptImage, &c.AnswerImage, &kind, &options, &c.Position); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		if err := c.Kind.UnmarshalText([]byte(kind)); err != nil {
			return nil, err
		}
		if options != "" {
			if err := json.Unmarshal([]byte(options), &c.Options); err != nil {
				return nil, fmt.Errorf("parse options for card %s: %w", c.ID, err)
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
