package fsrs

import (
	"math/rand"
	"testing"
	"time"
)

func mustScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := NewScheduler(DefaultParams())
	if err != nil {
		t.Fatalf("NewScheduler() error: %v", err)
	}
	return s
}

func reviewedState(s *Scheduler, ratings []Rating, start time.Time, gap time.Duration) (SchedulingState, time.Time) {
	st := NewState(start)
	now := start
	for _, r := range ratings {
		st, _ = s.ComputeUpdate(st, r, now)
		now = now.Add(gap)
	}
	return st, now
}

func TestNewScheduler_InvalidRetention(t *testing.T) {
	p := DefaultParams()
	p.DesiredRetention = 1.5
	if _, err := NewScheduler(p); err == nil {
		t.Error("expected error for retention > 1")
	}
}

func TestNewScheduler_ZeroValueDefaults(t *testing.T) {
	s, err := NewScheduler(Params{})
	if err != nil {
		t.Fatalf("NewScheduler(Params{}) error: %v", err)
	}
	if s.desiredRetention != 0.9 {
		t.Errorf("desiredRetention = %v, want 0.9", s.desiredRetention)
	}
	if len(s.learningSteps) != 2 {
		t.Errorf("len(learningSteps) = %d, want 2", len(s.learningSteps))
	}
}

func TestComputeUpdate_NewCardGood(t *testing.T) {
	s := mustScheduler(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	next, _ := s.ComputeUpdate(NewState(now), Good, now)

	if next.Phase != Learning {
		t.Errorf("Phase = %v, want Learning", next.Phase)
	}
	if next.Step != 1 {
		t.Errorf("Step = %d, want 1", next.Step)
	}
	if next.Reps != 1 {
		t.Errorf("Reps = %d, want 1", next.Reps)
	}
	if want := now.Add(10 * time.Minute); !next.Due.Equal(want) {
		t.Errorf("Due = %v, want %v", next.Due, want)
	}
}

func TestComputeUpdate_NewCardEasyGraduates(t *testing.T) {
	s := mustScheduler(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	next, _ := s.ComputeUpdate(NewState(now), Easy, now)

	if next.Phase != Review {
		t.Errorf("Phase = %v, want Review", next.Phase)
	}
	if next.ScheduledDays < 1 {
		t.Errorf("ScheduledDays = %v, want >= 1", next.ScheduledDays)
	}
}

func TestComputeUpdate_LearningAgainResetsStep(t *testing.T) {
	s := mustScheduler(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	st, _ := s.ComputeUpdate(NewState(now), Good, now) // step 1
	now = now.Add(10 * time.Minute)
	st, _ = s.ComputeUpdate(st, Again, now)

	if st.Phase != Learning {
		t.Errorf("Phase = %v, want Learning", st.Phase)
	}
	if st.Step != 0 {
		t.Errorf("Step = %d, want 0", st.Step)
	}
}

func TestComputeUpdate_LearningGoodGraduates(t *testing.T) {
	s := mustScheduler(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	st, _ := s.ComputeUpdate(NewState(now), Good, now) // Learning, step 1
	now = now.Add(10 * time.Minute)
	st, _ = s.ComputeUpdate(st, Good, now)

	if st.Phase != Review {
		t.Errorf("Phase = %v, want Review", st.Phase)
	}
	if st.Reps != 2 {
		t.Errorf("Reps = %d, want 2", st.Reps)
	}
}

func TestComputeUpdate_ReviewAgainLapses(t *testing.T) {
	s := mustScheduler(t)
	st, now := reviewedState(s, []Rating{Good, Good}, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), 10*time.Minute)
	if st.Phase != Review {
		t.Fatalf("setup: Phase = %v, want Review", st.Phase)
	}

	now = now.Add(5 * 24 * time.Hour)
	next, _ := s.ComputeUpdate(st, Again, now)

	if next.Phase != Relearning {
		t.Errorf("Phase = %v, want Relearning", next.Phase)
	}
	if next.Lapses != st.Lapses+1 {
		t.Errorf("Lapses = %d, want %d", next.Lapses, st.Lapses+1)
	}
}

func TestComputeUpdate_CountersNonDecreasing(t *testing.T) {
	s := mustScheduler(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	st := NewState(now)

	ratings := []Rating{Good, Again, Hard, Good, Good, Again, Easy}
	for _, r := range ratings {
		next, _ := s.ComputeUpdate(st, r, now)
		if next.Reps != st.Reps+1 {
			t.Errorf("rating %v: Reps = %d, want %d", r, next.Reps, st.Reps+1)
		}
		if next.Lapses < st.Lapses {
			t.Errorf("rating %v: Lapses decreased %d -> %d", r, st.Lapses, next.Lapses)
		}
		st = next
		now = now.Add(26 * time.Hour)
	}
}

func TestComputeUpdate_BoundsAlwaysHeld(t *testing.T) {
	s := mustScheduler(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	st := NewState(now)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		r := Rating(rng.Intn(4) + 1)
		st, _ = s.ComputeUpdate(st, r, now)

		if st.Difficulty < 1 || st.Difficulty > 10 {
			t.Fatalf("step %d: Difficulty = %v, out of [1, 10]", i, st.Difficulty)
		}
		if st.Stability < 0.001 {
			t.Fatalf("step %d: Stability = %v, below minimum", i, st.Stability)
		}
		if st.ScheduledDays > 36500 {
			t.Fatalf("step %d: ScheduledDays = %v, above maximum interval", i, st.ScheduledDays)
		}
		if st.Due.Before(now) {
			t.Fatalf("step %d: rating %v scheduled Due %v in the past of %v", i, r, st.Due, now)
		}
		now = now.Add(time.Duration(rng.Intn(72)+1) * time.Hour)
	}
}

func TestPreview_MonotoneAcrossRatings(t *testing.T) {
	s := mustScheduler(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	st := NewState(now)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 300; i++ {
		p := s.Preview(st, now)
		if p.Again > p.Hard || p.Hard > p.Good || p.Good > p.Easy {
			t.Fatalf("step %d: previews not monotone: %+v", i, p)
		}

		st, _ = s.ComputeUpdate(st, Rating(rng.Intn(4)+1), now)
		now = now.Add(time.Duration(rng.Intn(200*24)+1) * time.Hour)
	}
}

func TestComputeUpdate_CommitMatchesPreview(t *testing.T) {
	s := mustScheduler(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	st := NewState(now)

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 300; i++ {
		previewed := s.Preview(st, now)
		r := Rating(rng.Intn(4) + 1)
		next, atCommit := s.ComputeUpdate(st, r, now)

		if previewed != atCommit {
			t.Fatalf("step %d: previews changed between preview and commit: %+v != %+v", i, previewed, atCommit)
		}
		if next.ScheduledDays != previewed.For(r) {
			t.Fatalf("step %d: committed interval %v != previewed %v for %v", i, next.ScheduledDays, previewed.For(r), r)
		}

		st = next
		now = now.Add(time.Duration(rng.Intn(100*24)+1) * time.Hour)
	}
}

func TestComputeUpdate_Deterministic(t *testing.T) {
	s := mustScheduler(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	st, _ := reviewedState(s, []Rating{Good, Good, Good}, now, 26*time.Hour)
	at := now.Add(10 * 24 * time.Hour)

	a, pa := s.ComputeUpdate(st, Hard, at)
	b, pb := s.ComputeUpdate(st, Hard, at)

	if pa != pb {
		t.Errorf("previews differ across identical calls: %+v != %+v", pa, pb)
	}
	if a.ScheduledDays != b.ScheduledDays || !a.Due.Equal(b.Due) {
		t.Errorf("states differ across identical calls: %+v != %+v", a, b)
	}
}

func TestComputeUpdate_DoesNotMutateInput(t *testing.T) {
	s := mustScheduler(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	st, at := reviewedState(s, []Rating{Good}, now, 10*time.Minute)
	before := st

	s.ComputeUpdate(st, Easy, at)

	if st.Reps != before.Reps || st.Stability != before.Stability || st.Phase != before.Phase {
		t.Errorf("input state mutated: %+v != %+v", st, before)
	}
}

func TestRetrievability_DecaysOverTime(t *testing.T) {
	s := mustScheduler(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	st, after := reviewedState(s, []Rating{Easy}, now, 0)

	early := s.Retrievability(st, after.Add(24*time.Hour))
	late := s.Retrievability(st, after.Add(30*24*time.Hour))

	if early <= late {
		t.Errorf("retrievability did not decay: %v then %v", early, late)
	}
	if early <= 0 || early > 1 {
		t.Errorf("retrievability %v out of (0, 1]", early)
	}
}

func TestRetrievability_ZeroForNewState(t *testing.T) {
	s := mustScheduler(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if got := s.Retrievability(NewState(now), now); got != 0 {
		t.Errorf("Retrievability() = %v, want 0", got)
	}
}

func TestMergeAuthoritative_KeepsCounters(t *testing.T) {
	s := mustScheduler(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	st, after := reviewedState(s, []Rating{Good, Again, Good}, now, 26*time.Hour)

	due := after.Add(72 * time.Hour)
	merged := st.MergeAuthoritative(AuthoritativeUpdate{
		Stability:  5.5,
		Difficulty: 4.2,
		Phase:      Review,
		Due:        due,
	})

	if merged.Reps != st.Reps || merged.Lapses != st.Lapses {
		t.Errorf("counters changed: reps %d->%d, lapses %d->%d", st.Reps, merged.Reps, st.Lapses, merged.Lapses)
	}
	if merged.Stability != 5.5 || merged.Difficulty != 4.2 {
		t.Errorf("memory fields not overwritten: %+v", merged)
	}
	if !merged.Due.Equal(due) {
		t.Errorf("Due = %v, want %v", merged.Due, due)
	}
}

func TestMergeAuthoritative_ClampsOutOfRangeValues(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	st := NewState(now)

	merged := st.MergeAuthoritative(AuthoritativeUpdate{
		Stability:  -1,
		Difficulty: 99,
		Phase:      Review,
		Due:        now.Add(24 * time.Hour),
	})

	if merged.Stability < 0.001 {
		t.Errorf("Stability = %v, want clamped to minimum", merged.Stability)
	}
	if merged.Difficulty != 10 {
		t.Errorf("Difficulty = %v, want clamped to 10", merged.Difficulty)
	}
}

func TestNewState_DueImmediately(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	st := NewState(now)
	if !st.IsDue(now) {
		t.Error("new state should be due immediately")
	}
	if st.Phase != New {
		t.Errorf("Phase = %v, want New", st.Phase)
	}
}
