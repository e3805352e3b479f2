package session

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/jfoster/retain/internal/card"
	"github.com/jfoster/retain/internal/fsrs"
	"github.com/jfoster/retain/internal/store"
)

type fakeStates struct {
	mu   sync.Mutex
	recs map[string]store.StateRecord
}

func newFakeStates() *fakeStates {
	return &fakeStates{recs: make(map[string]store.StateRecord)}
}

func (f *fakeStates) Get(_ context.Context, cardID, learnerID string) (*store.StateRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[cardID+"/"+learnerID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeStates) PutOptimistic(_ context.Context, cardID, learnerID string, st fsrs.SchedulingState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := cardID + "/" + learnerID
	if prev, ok := f.recs[key]; ok && prev.Origin == store.OriginAuthoritative && prev.State.Reps >= st.Reps {
		return nil
	}
	f.recs[key] = store.StateRecord{CardID: cardID, LearnerID: learnerID, State: st, Origin: store.OriginOptimistic}
	return nil
}

func (f *fakeStates) PutAuthoritative(_ context.Context, cardID, learnerID string, st fsrs.SchedulingState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs[cardID+"/"+learnerID] = store.StateRecord{CardID: cardID, LearnerID: learnerID, State: st, Origin: store.OriginAuthoritative}
	return nil
}

func (f *fakeStates) DeckStates(context.Context, string, string) ([]store.StateRecord, error) {
	return nil, nil
}

func (f *fakeStates) get(cardID, learnerID string) (store.StateRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[cardID+"/"+learnerID]
	return rec, ok
}

type fakeReviews struct {
	mu       sync.Mutex
	events   []store.ReviewEventData
	sessions []store.SessionEventData
}

func (f *fakeReviews) Append(_ context.Context, d store.ReviewEventData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, d)
	return nil
}

func (f *fakeReviews) AppendSession(_ context.Context, d store.SessionEventData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, d)
	return nil
}

func (f *fakeReviews) Timestamps(context.Context, string) ([]time.Time, error) { return nil, nil }
func (f *fakeReviews) CountSince(context.Context, string, time.Time) (int, error) {
	return 0, nil
}

type fakePending struct {
	mu    sync.Mutex
	items []store.PendingReview
}

func (f *fakePending) Enqueue(_ context.Context, p store.PendingReview) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = int64(len(f.items) + 1)
	f.items = append(f.items, p)
	return nil
}

func (f *fakePending) List(_ context.Context, limit int) ([]store.PendingReview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.PendingReview, 0, len(f.items))
	for _, p := range f.items {
		if len(out) == limit {
			break
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakePending) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.items {
		if p.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakePending) MarkAttempt(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].Attempts++
		}
	}
	return nil
}

func (f *fakePending) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

type fakeRemote struct {
	fn func(cardID string, rating fsrs.Rating) (*fsrs.AuthoritativeUpdate, error)
}

func (f *fakeRemote) SubmitReview(_ context.Context, cardID string, rating fsrs.Rating, _ time.Duration) (*fsrs.AuthoritativeUpdate, error) {
	return f.fn(cardID, rating)
}

func simpleCards(ids ...string) []card.Card {
	out := make([]card.Card, len(ids))
	for i, id := range ids {
		out[i] = card.Card{ID: id, DeckID: "d1", Prompt: "p " + id, Answer: "a " + id, Kind: card.Simple, Position: i}
	}
	return out
}

type fixture struct {
	mgr     *Manager
	states  *fakeStates
	reviews *fakeReviews
	pending *fakePending
}

func newFixture(t *testing.T, remote Reconciler, now time.Time) *fixture {
	t.Helper()
	sched, err := fsrs.NewScheduler(fsrs.DefaultParams())
	if err != nil {
		t.Fatalf("NewScheduler() error: %v", err)
	}
	states := newFakeStates()
	reviews := &fakeReviews{}
	pending := &fakePending{}
	mgr := New(Options{
		LearnerID: "alice",
		Scheduler: sched,
		States:    states,
		Reviews:   reviews,
		Pending:   pending,
		Remote:    remote,
		Clock:     func() time.Time { return now },
	})
	return &fixture{mgr: mgr, states: states, reviews: reviews, pending: pending}
}

func TestManager_LifecycleAndProgress(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, nil, now)
	ctx := context.Background()

	if f.mgr.Status() != NotStarted {
		t.Fatalf("Status = %v, want NotStarted", f.mgr.Status())
	}

	if err := f.mgr.Start(ctx, "d1", simpleCards("x", "y", "z")); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if f.mgr.Status() != InProgress {
		t.Fatalf("Status = %v, want InProgress", f.mgr.Status())
	}

	p := f.mgr.Progress()
	if p.Current != 1 || p.Total != 3 || math.Abs(p.Percentage-100.0/3) > 0.01 {
		t.Errorf("Progress = %+v, want (1, 3, 33.33)", p)
	}

	if _, err := f.mgr.RateCard(ctx, fsrs.Good); err != nil {
		t.Fatalf("RateCard() error: %v", err)
	}
	if !f.mgr.NextCard() {
		t.Fatal("NextCard() = false, want true with cards remaining")
	}

	p = f.mgr.Progress()
	if p.Current != 2 || math.Abs(p.Percentage-200.0/3) > 0.01 {
		t.Errorf("Progress = %+v, want (2, 3, 66.67)", p)
	}

	f.mgr.RateCard(ctx, fsrs.Good)
	f.mgr.NextCard()
	f.mgr.RateCard(ctx, fsrs.Good)
	if f.mgr.NextCard() {
		t.Error("NextCard() = true after the last card")
	}
	if f.mgr.Status() != Complete {
		t.Errorf("Status = %v, want Complete", f.mgr.Status())
	}
}

func TestManager_EmptySession(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, nil, now)

	if err := f.mgr.Start(context.Background(), "d1", nil); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if p := f.mgr.Progress(); p.Current != 0 || p.Total != 0 || p.Percentage != 0 {
		t.Errorf("Progress = %+v, want all zero", p)
	}
	if cc := f.mgr.CurrentCard(); cc != nil {
		t.Errorf("CurrentCard() = %+v, want nil", cc)
	}
}

func TestManager_StartRestartsCleanly(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, nil, now)
	ctx := context.Background()

	f.mgr.Start(ctx, "d1", simpleCards("x", "y"))
	first := f.mgr.SessionID()
	f.mgr.RateCard(ctx, fsrs.Good)
	f.mgr.NextCard()

	if err := f.mgr.Start(ctx, "d1", simpleCards("x", "y")); err != nil {
		t.Fatalf("restart Start() error: %v", err)
	}
	if f.mgr.SessionID() == first {
		t.Error("restart kept the old session ID")
	}
	if p := f.mgr.Progress(); p.Current != 1 || p.Total != 2 {
		t.Errorf("Progress after restart = %+v, want (1, 2)", p)
	}
}

func TestManager_StartDropsDuplicateCards(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, nil, now)

	cards := simpleCards("x", "y")
	cards = append(cards, cards[0])
	f.mgr.Start(context.Background(), "d1", cards)

	if p := f.mgr.Progress(); p.Total != 2 {
		t.Errorf("Total = %d, want 2 after dropping duplicate", p.Total)
	}
}

func TestManager_RateWithoutStart(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, nil, now)

	_, err := f.mgr.RateCard(context.Background(), fsrs.Good)
	if !errors.Is(err, ErrNotInProgress) {
		t.Errorf("RateCard() error = %v, want ErrNotInProgress", err)
	}
}

func TestManager_RateInvalidRating(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, nil, now)
	f.mgr.Start(context.Background(), "d1", simpleCards("x"))

	_, err := f.mgr.RateCard(context.Background(), fsrs.Rating(9))
	if !errors.Is(err, fsrs.ErrInvalidRating) {
		t.Errorf("RateCard() error = %v, want ErrInvalidRating", err)
	}
}

func TestManager_ChoiceWrongRestrictsRatings(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, nil, now)
	ctx := context.Background()

	cards := []card.Card{{
		ID: "q1", DeckID: "d1", Prompt: "2+2?", Answer: "4",
		Kind: card.Choice, Options: []string{"3", "4", "5"},
	}}
	f.mgr.Start(ctx, "d1", cards)

	correct, err := f.mgr.AnswerChoice("3")
	if err != nil {
		t.Fatalf("AnswerChoice() error: %v", err)
	}
	if correct {
		t.Fatal("AnswerChoice(wrong) = true")
	}

	res, err := f.mgr.RateCard(ctx, fsrs.Good)
	if err != nil {
		t.Fatalf("RateCard(Good) error: %v", err)
	}
	if !res.Refused {
		t.Fatal("RateCard(Good) not refused after wrong choice")
	}
	if res.Reason == "" {
		t.Error("refusal carries no reason")
	}

	// The refusal is a no-op: the card is still current and ratable.
	res, err = f.mgr.RateCard(ctx, fsrs.Again)
	if err != nil {
		t.Fatalf("RateCard(Again) error: %v", err)
	}
	if res.Refused {
		t.Error("RateCard(Again) refused, want accepted")
	}
	if res.State.Reps != 1 {
		t.Errorf("Reps = %d, want 1", res.State.Reps)
	}
}

func TestManager_AnswerChoiceOnSimpleCard(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, nil, now)
	f.mgr.Start(context.Background(), "d1", simpleCards("x"))

	if _, err := f.mgr.AnswerChoice("anything"); !errors.Is(err, ErrNotChoice) {
		t.Errorf("AnswerChoice() error = %v, want ErrNotChoice", err)
	}
}

func TestManager_OfflineRatingPersistsOptimistic(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, nil, now)
	ctx := context.Background()

	f.mgr.Start(ctx, "d1", simpleCards("x"))
	res, err := f.mgr.RateCard(ctx, fsrs.Good)
	if err != nil {
		t.Fatalf("RateCard() error: %v", err)
	}

	rec, ok := f.states.get("x", "alice")
	if !ok {
		t.Fatal("no state persisted")
	}
	if rec.Origin != store.OriginOptimistic {
		t.Errorf("Origin = %q, want optimistic", rec.Origin)
	}
	if rec.State.Reps != res.State.Reps {
		t.Errorf("persisted Reps = %d, want %d", rec.State.Reps, res.State.Reps)
	}
	if len(f.reviews.events) != 1 {
		t.Errorf("len(events) = %d, want 1", len(f.reviews.events))
	}
}

func TestManager_RemoteSuccessReconciles(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	due := now.Add(96 * time.Hour)
	remote := &fakeRemote{fn: func(cardID string, _ fsrs.Rating) (*fsrs.AuthoritativeUpdate, error) {
		return &fsrs.AuthoritativeUpdate{Stability: 8.8, Difficulty: 3.3, Phase: fsrs.Review, Due: due}, nil
	}}
	f := newFixture(t, remote, now)
	ctx := context.Background()

	f.mgr.Start(ctx, "d1", simpleCards("x"))
	if _, err := f.mgr.RateCard(ctx, fsrs.Good); err != nil {
		t.Fatalf("RateCard() error: %v", err)
	}
	f.mgr.Wait()

	rec, ok := f.states.get("x", "alice")
	if !ok {
		t.Fatal("no state persisted")
	}
	if rec.Origin != store.OriginAuthoritative {
		t.Errorf("Origin = %q, want authoritative", rec.Origin)
	}
	if rec.State.Stability != 8.8 {
		t.Errorf("Stability = %v, want authoritative 8.8", rec.State.Stability)
	}
	if rec.State.Reps != 1 {
		t.Errorf("Reps = %d, want local counter kept", rec.State.Reps)
	}
	if f.pending.len() != 0 {
		t.Errorf("pending queue = %d items, want 0", f.pending.len())
	}
}

func TestManager_RemoteFailureKeepsOptimisticAndQueues(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	remote := &fakeRemote{fn: func(cardID string, _ fsrs.Rating) (*fsrs.AuthoritativeUpdate, error) {
		if cardID == "x" {
			return nil, errors.New("scheduler unreachable")
		}
		return &fsrs.AuthoritativeUpdate{Stability: 4.4, Difficulty: 5, Phase: fsrs.Review, Due: now.Add(48 * time.Hour)}, nil
	}}
	f := newFixture(t, remote, now)
	ctx := context.Background()

	f.mgr.Start(ctx, "d1", simpleCards("x", "y"))
	resX, err := f.mgr.RateCard(ctx, fsrs.Good)
	if err != nil {
		t.Fatalf("RateCard(x) error: %v", err)
	}
	f.mgr.NextCard()
	if _, err := f.mgr.RateCard(ctx, fsrs.Good); err != nil {
		t.Fatalf("RateCard(y) error: %v", err)
	}
	f.mgr.Wait()

	// x keeps its optimistic state and is queued for retry.
	recX, _ := f.states.get("x", "alice")
	if recX.Origin != store.OriginOptimistic {
		t.Errorf("x Origin = %q, want optimistic after remote failure", recX.Origin)
	}
	if recX.State.Stability != resX.State.Stability {
		t.Errorf("x Stability = %v, want optimistic %v", recX.State.Stability, resX.State.Stability)
	}
	if f.pending.len() != 1 {
		t.Fatalf("pending queue = %d items, want 1", f.pending.len())
	}

	// y reconciled independently.
	recY, _ := f.states.get("y", "alice")
	if recY.Origin != store.OriginAuthoritative {
		t.Errorf("y Origin = %q, want authoritative", recY.Origin)
	}
}

func TestManager_LateResponseReconcilesByIdentity(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	release := make(chan struct{})
	due := now.Add(120 * time.Hour)
	remote := &fakeRemote{fn: func(cardID string, _ fsrs.Rating) (*fsrs.AuthoritativeUpdate, error) {
		<-release
		return &fsrs.AuthoritativeUpdate{Stability: 6.6, Difficulty: 4, Phase: fsrs.Review, Due: due}, nil
	}}
	f := newFixture(t, remote, now)
	ctx := context.Background()

	f.mgr.Start(ctx, "d1", simpleCards("x", "y"))
	if _, err := f.mgr.RateCard(ctx, fsrs.Good); err != nil {
		t.Fatalf("RateCard(x) error: %v", err)
	}
	f.mgr.NextCard() // learner has moved on before the response arrives

	yBefore := f.mgr.CurrentCard()
	close(release)
	f.mgr.Wait()

	// The late response lands on x's stored state, addressed by card ID.
	recX, _ := f.states.get("x", "alice")
	if recX.Origin != store.OriginAuthoritative {
		t.Errorf("x Origin = %q, want authoritative", recX.Origin)
	}
	if !recX.State.Due.Equal(due) {
		t.Errorf("x Due = %v, want %v", recX.State.Due, due)
	}

	// The current card's snapshot is untouched.
	yAfter := f.mgr.CurrentCard()
	if yAfter == nil || yAfter.Card.ID != "y" {
		t.Fatalf("CurrentCard() = %+v, want y", yAfter)
	}
	if yAfter.State != yBefore.State {
		t.Errorf("y state changed by x's reconciliation: %+v != %+v", yAfter.State, yBefore.State)
	}
}

func TestManager_EndSessionSummary(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, nil, now)
	ctx := context.Background()

	f.mgr.Start(ctx, "d1", simpleCards("x", "y"))
	f.mgr.RateCard(ctx, fsrs.Again)
	f.mgr.NextCard()
	f.mgr.RateCard(ctx, fsrs.Good)

	summary, err := f.mgr.EndSession(ctx)
	if err != nil {
		t.Fatalf("EndSession() error: %v", err)
	}
	if summary.Reviewed != 2 || summary.Correct != 1 {
		t.Errorf("summary = %+v, want 2 reviewed, 1 correct", summary)
	}
	if f.mgr.Status() != Complete {
		t.Errorf("Status = %v, want Complete", f.mgr.Status())
	}
	if len(f.reviews.sessions) != 1 {
		t.Errorf("len(sessions) = %d, want 1", len(f.reviews.sessions))
	}

	if _, err := f.mgr.EndSession(ctx); err != nil {
		t.Errorf("second EndSession() error = %v, want idempotent nil", err)
	}
}

func TestManager_EndSessionBeforeStart(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, nil, now)

	if _, err := f.mgr.EndSession(context.Background()); !errors.Is(err, ErrNotStarted) {
		t.Errorf("EndSession() error = %v, want ErrNotStarted", err)
	}
}
