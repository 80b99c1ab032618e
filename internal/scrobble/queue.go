package scrobble

import (
	"time"

	"go.uber.org/zap"

	"github.com/tlanglois/sillon/internal/logging"
	"github.com/tlanglois/sillon/internal/store"
)

// maxPendingAge is how long a failed scrobble is kept for retry before
// being dropped. Last.fm rejects very old timestamps anyway.
const maxPendingAge = 14 * 24 * time.Hour

// Queue submits plays and persists failures for later retry.
type Queue struct {
	store     *store.Manager
	submitter Submitter
}

// NewQueue creates a queue submitting through submitter.
func NewQueue(st *store.Manager, submitter Submitter) *Queue {
	return &Queue{store: st, submitter: submitter}
}

// Submit tries to scrobble immediately; on failure the play is queued
// and retried on the next sync.
func (q *Queue) Submit(t Track) {
	err := q.submitter.Scrobble(t)
	if err == nil {
		return
	}
	logging.L().Warn("scrobble failed, queueing for retry",
		zap.String("artist", t.Artist), zap.String("track", t.Title), zap.Error(err))

	queueErr := q.store.AddPendingScrobble(store.PendingScrobble{
		Artist:          t.Artist,
		Track:           t.Title,
		Album:           t.Album,
		DurationSeconds: t.DurationSeconds,
		Timestamp:       t.Timestamp,
	})
	if queueErr != nil {
		logging.L().Warn("failed to queue scrobble", zap.Error(queueErr))
	}
}

// RetryPending resubmits queued scrobbles, dropping entries that have
// expired. Returns the number submitted successfully.
func (q *Queue) RetryPending() (int, error) {
	if err := q.store.DeleteOldPendingScrobbles(maxPendingAge); err != nil {
		return 0, err
	}

	pending, err := q.store.GetPendingScrobbles()
	if err != nil {
		return 0, err
	}

	submitted := 0
	for _, p := range pending {
		err := q.submitter.Scrobble(Track{
			Artist:          p.Artist,
			Title:           p.Track,
			Album:           p.Album,
			DurationSeconds: p.DurationSeconds,
			Timestamp:       p.Timestamp,
		})
		if err != nil {
			if uerr := q.store.UpdatePendingScrobbleAttempt(p.ID, err.Error()); uerr != nil {
				return submitted, uerr
			}
			continue
		}
		if derr := q.store.DeletePendingScrobble(p.ID); derr != nil {
			return submitted, derr
		}
		submitted++
	}
	return submitted, nil
}
