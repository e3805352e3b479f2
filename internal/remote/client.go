// Package remote is the client for the external authoritative scheduling
// service. The local engine applies optimistic updates first; this client
// fetches the authoritative result for reconciliation.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jfoster/retain/internal/fsrs"
)

// Client talks to the authoritative scheduler over HTTP/JSON.
// Submissions are safe to retry: the service treats the most recent
// response for a card as the source of truth, and the caller reconciles
// by card identity.
type Client struct {
	baseURL string
	http    *http.Client
	retry   RetryConfig
	log     *logrus.Logger
}

// New creates a Client for the given config. A nil logger disables logging.
func New(cfg Config, log *logrus.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultConfig().Retry
	}
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		retry:   cfg.Retry,
		log:     log,
	}
}

type reviewRequest struct {
	CardID       string `json:"cardId"`
	Rating       int    `json:"rating"` // 1-4
	ReviewTimeMs int64  `json:"reviewTimeMs"`
}

type reviewResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    *struct {
		NextState struct {
			Stability  float64   `json:"stability"`
			Difficulty float64   `json:"difficulty"`
			Phase      string    `json:"phase"`
			Due        time.Time `json:"due"`
		} `json:"nextState"`
	} `json:"data,omitempty"`
}

// SubmitReview sends one rating to the authoritative scheduler and returns
// its next-state computation. Transient failures are retried with backoff
// inside the call; the returned error wraps ErrUnavailable when a later
// retry may still succeed and ErrRejected when it will not.
func (c *Client) SubmitReview(ctx context.Context, cardID string, rating fsrs.Rating, reviewTime time.Duration) (*fsrs.AuthoritativeUpdate, error) {
	if !rating.IsValid() {
		return nil, fmt.Errorf("%w: rating %d", ErrRejected, int(rating))
	}
	reviewTimeMs := reviewTime.Milliseconds()
	if reviewTimeMs < 0 {
		reviewTimeMs = 0
	}

	body, err := json.Marshal(reviewRequest{
		CardID:       cardID,
		Rating:       int(rating),
		ReviewTimeMs: reviewTimeMs,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal review request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		update, err := c.submitOnce(ctx, body)
		if err == nil {
			return update, nil
		}
		lastErr = err

		if !shouldRetry(err) {
			return nil, err
		}
		if attempt == c.retry.MaxAttempts-1 {
			break
		}

		wait := c.backoff(attempt)
		c.log.WithError(err).WithField("card", cardID).
			Debugf("review submission failed, retrying in %s", wait)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, lastErr
}

func (c *Client) submitOnce(ctx context.Context, body []byte) (*fsrs.AuthoritativeUpdate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/reviews", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build review request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if err := validateReviewResponse(raw); err != nil {
		return nil, err
	}

	var parsed reviewResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if !parsed.Success {
		return nil, fmt.Errorf("%w: %s", ErrRejected, parsed.Error)
	}
	if parsed.Data == nil {
		return nil, fmt.Errorf("%w: success without data", ErrInvalidResponse)
	}

	phase, err := fsrs.ParsePhase(parsed.Data.NextState.Phase)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	return &fsrs.AuthoritativeUpdate{
		Stability:  parsed.Data.NextState.Stability,
		Difficulty: parsed.Data.NextState.Difficulty,
		Phase:      phase,
		Due:        parsed.Data.NextState.Due,
	}, nil
}

// shouldRetry reports whether the error is worth another attempt.
func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrRejected) || errors.Is(err, ErrInvalidResponse) {
		return false
	}
	return true
}

// backoff computes the wait duration for the given attempt, with ±20% jitter.
func (c *Client) backoff(attempt int) time.Duration {
	wait := float64(c.retry.InitialWait) * math.Pow(c.retry.Multiplier, float64(attempt))
	if wait > float64(c.retry.MaxWait) {
		wait = float64(c.retry.MaxWait)
	}

	jitter := wait * 0.2 * (2*rand.Float64() - 1)
	wait += jitter
	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}
