package tracker

import "time"

// DefaultFullSyncInterval is the minimum time between full-catalog
// reconciliation passes.
const DefaultFullSyncInterval = 4 * time.Hour

// Scheduler decides between a full-catalog reconciliation and the cheap
// single-track check. The two-tier policy bounds full-scan cost while
// still catching background plays promptly for the track the user is
// most likely resuming.
type Scheduler struct {
	interval time.Duration
}

// NewScheduler creates a scheduler. A non-positive interval uses the
// default.
func NewScheduler(interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultFullSyncInterval
	}
	return &Scheduler{interval: interval}
}

// ShouldRunFullSync reports whether enough time has passed since the
// last full sync. A zero lastFullSyncAt (never synced) always qualifies.
func (s *Scheduler) ShouldRunFullSync(lastFullSyncAt, now time.Time) bool {
	if lastFullSyncAt.IsZero() {
		return true
	}
	return now.Sub(lastFullSyncAt) >= s.interval
}
