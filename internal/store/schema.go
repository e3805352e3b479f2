package store

const schema = `
-- Immutable card content, served to sessions and never touched by the
-- scheduling core.
CREATE TABLE IF NOT EXISTS decks (
    id   TEXT PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cards (
    id           TEXT PRIMARY KEY,
    deck_id      TEXT NOT NULL,
    prompt       TEXT NOT NULL,
    answer       TEXT NOT NULL,
    prompt_image TEXT NOT NULL DEFAULT '',
    answer_image TEXT NOT NULL DEFAULT '',
    kind         TEXT NOT NULL DEFAULT 'simple',
    options      TEXT NOT NULL DEFAULT '',  -- JSON array, empty for simple cards
    position     INTEGER NOT NULL DEFAULT 0,

    FOREIGN KEY(deck_id) REFERENCES decks(id)
);

CREATE INDEX IF NOT EXISTS idx_cards_deck ON cards(deck_id, position);

-- One mutable scheduling record per (card, learner).
CREATE TABLE IF NOT EXISTS scheduling_states (
    card_id        TEXT NOT NULL,
    learner_id     TEXT NOT NULL,
    stability      REAL NOT NULL,
    difficulty     REAL NOT NULL,
    elapsed_days   REAL NOT NULL DEFAULT 0,
    scheduled_days REAL NOT NULL DEFAULT 0,
    reps           INTEGER NOT NULL DEFAULT 0,
    lapses         INTEGER NOT NULL DEFAULT 0,
    phase          TEXT NOT NULL DEFAULT 'new',
    step           INTEGER NOT NULL DEFAULT 0,
    due            DATETIME NOT NULL,
    last_review    DATETIME,
    origin         TEXT NOT NULL DEFAULT 'optimistic',
    updated_at     DATETIME NOT NULL,

    PRIMARY KEY (card_id, learner_id)
);

CREATE INDEX IF NOT EXISTS idx_states_due ON scheduling_states(learner_id, due);

-- Append-only review log. Never updated or deleted; read only by the
-- stats aggregator.
CREATE TABLE IF NOT EXISTS review_events (
    id             TEXT PRIMARY KEY,
    card_id        TEXT NOT NULL,
    learner_id     TEXT NOT NULL,
    rating         TEXT NOT NULL,
    phase          TEXT NOT NULL,  -- phase at time of review
    elapsed_days   REAL NOT NULL,
    scheduled_days REAL NOT NULL,
    duration_ms    INTEGER NOT NULL DEFAULT 0,
    timestamp      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reviews_learner ON review_events(learner_id, timestamp);

-- End-of-session summaries.
CREATE TABLE IF NOT EXISTS session_events (
    session_id    TEXT PRIMARY KEY,
    deck_id       TEXT NOT NULL,
    learner_id    TEXT NOT NULL,
    reviewed      INTEGER NOT NULL,
    correct       INTEGER NOT NULL,
    duration_secs INTEGER NOT NULL,
    timestamp     DATETIME NOT NULL
);

-- Ratings whose remote reconciliation failed; drained by 'retain sync'.
CREATE TABLE IF NOT EXISTS pending_reviews (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    card_id        TEXT NOT NULL,
    learner_id     TEXT NOT NULL,
    rating         TEXT NOT NULL,
    review_time_ms INTEGER NOT NULL,
    reps           INTEGER NOT NULL,
    attempts       INTEGER NOT NULL DEFAULT 0,
    created_at     DATETIME NOT NULL
);
`
