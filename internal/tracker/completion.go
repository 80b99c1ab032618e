// Package tracker implements play detection and counter reconciliation.
package tracker

// completionRatio is the fraction of a track's duration that must be
// listened to for the listen to count as a play. The ratio is the sole
// criterion: there is no minimum absolute time and no cap.
const completionRatio = 0.5

// Complete reports whether a listen of listenedSeconds qualifies as a
// play of a track of durationSeconds. A track with unknown duration
// (zero or negative) never completes: asserting a play needs a duration
// baseline.
func Complete(listenedSeconds, durationSeconds float64) bool {
	if durationSeconds <= 0 {
		return false
	}
	return listenedSeconds/durationSeconds >= completionRatio
}
