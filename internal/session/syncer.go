package session

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jfoster/retain/internal/fsrs"
	"github.com/jfoster/retain/internal/remote"
	"github.com/jfoster/retain/internal/store"
)

// Syncer drains the pending-reconciliation queue: ratings whose remote
// submission failed during a session are retried here, outside any live
// session, and their authoritative results written to the state store.
type Syncer struct {
	LearnerID string
	States    store.StateRepo
	Pending   store.PendingRepo
	Remote    Reconciler
	Log       *logrus.Logger
}

// SyncReport summarizes one drain pass.
type SyncReport struct {
	Attempted  int
	Reconciled int
	Dropped    int // permanently rejected submissions, removed from the queue
	Failed     int // still pending after this pass
}

// Run retries up to limit pending reviews. Transient failures stay queued;
// permanent rejections are dropped so the queue cannot wedge.
func (s *Syncer) Run(ctx context.Context, limit int) (SyncReport, error) {
	var report SyncReport

	items, err := s.Pending.List(ctx, limit)
	if err != nil {
		return report, err
	}

	for _, p := range items {
		report.Attempted++

		update, err := s.Remote.SubmitReview(ctx, p.CardID, p.Rating, time.Duration(p.ReviewTimeMs)*time.Millisecond)
		if err != nil {
			if errors.Is(err, remote.ErrRejected) || errors.Is(err, remote.ErrInvalidResponse) {
				s.Log.WithError(err).WithField("card", p.CardID).
					Warn("pending review permanently rejected, dropping")
				if derr := s.Pending.Delete(ctx, p.ID); derr != nil {
					s.Log.WithError(derr).WithField("card", p.CardID).Warn("pending review not removed")
				}
				report.Dropped++
				continue
			}

			report.Failed++
			if merr := s.Pending.MarkAttempt(ctx, p.ID); merr != nil {
				s.Log.WithError(merr).WithField("card", p.CardID).Warn("pending attempt not recorded")
			}
			continue
		}

		if err := s.applyUpdate(ctx, p, *update); err != nil {
			s.Log.WithError(err).WithField("card", p.CardID).Warn("reconciled state not persisted")
			report.Failed++
			continue
		}
		if err := s.Pending.Delete(ctx, p.ID); err != nil {
			s.Log.WithError(err).WithField("card", p.CardID).Warn("pending review not removed")
		}
		report.Reconciled++
	}

	return report, nil
}

// applyUpdate merges the authoritative result over the stored state. A
// confirmation for an old review must not roll back a state the learner
// has since advanced past, so updates whose repetition count trails the
// stored record are discarded.
func (s *Syncer) applyUpdate(ctx context.Context, p store.PendingReview, update fsrs.AuthoritativeUpdate) error {
	base := fsrs.NewState(p.CreatedAt)
	rec, err := s.States.Get(ctx, p.CardID, p.LearnerID)
	if err != nil {
		return err
	}
	if rec != nil {
		if rec.State.Reps > p.Reps {
			s.Log.WithField("card", p.CardID).
				Debugf("stale confirmation for rep %d dropped, store at rep %d", p.Reps, rec.State.Reps)
			return nil
		}
		base = rec.State
	}
	return s.States.PutAuthoritative(ctx, p.CardID, p.LearnerID, base.MergeAuthoritative(update))
}
