package tracker

import (
	"time"

	"go.uber.org/zap"

	"github.com/tlanglois/sillon/internal/catalog"
	"github.com/tlanglois/sillon/internal/logging"
)

// EmitFunc persists one completed listen as a live play fact.
type EmitFunc func(entry catalog.Entry, listenedSeconds float64, at time.Time) error

// Session tracks accumulated listened time for the currently playing
// track and emits at most one play fact per continuous listen.
//
// It is a two-state machine: idle (no segment running) and tracking (a
// segment started at segmentStart is accruing). Pausing accumulates the
// running segment but keeps the track and its accumulated time so a
// resume continues the same listen; only a track change or teardown
// finalizes and discards the session.
type Session struct {
	emit EmitFunc

	entry        catalog.Entry
	active       bool // a track is held (tracking or paused)
	segmentStart time.Time
	running      bool // a segment is accruing
	accumulated  float64
	emitted      bool
}

// NewSession creates a session that persists completed listens via emit.
func NewSession(emit EmitFunc) *Session {
	return &Session{emit: emit}
}

// HandleTrackChanged finalizes any outgoing track, then begins tracking
// the new one if it is playing.
func (s *Session) HandleTrackChanged(now *catalog.NowPlaying, at time.Time) {
	s.Finalize(at)

	if now == nil || now.State != catalog.StatePlaying {
		return
	}
	s.entry = now.Entry
	s.active = true
	s.running = true
	s.segmentStart = at
	s.accumulated = 0
	s.emitted = false
}

// HandleStarted resumes accumulation when the held track starts playing
// again, or begins a fresh session when no track is held.
func (s *Session) HandleStarted(now *catalog.NowPlaying, at time.Time) {
	if now == nil {
		return
	}
	if s.active && s.entry.URI == now.Entry.URI {
		if !s.running {
			s.running = true
			s.segmentStart = at
		}
		return
	}
	s.HandleTrackChanged(now, at)
}

// HandlePaused folds the running segment into the accumulated total and
// goes idle, keeping the track for a possible resume. It does not
// finalize.
func (s *Session) HandlePaused(at time.Time) {
	s.closeSegment(at)
}

// HandleStopped behaves like HandlePaused: accumulation is retained in
// memory until a track change or teardown decides the listen is over.
func (s *Session) HandleStopped(at time.Time) {
	s.closeSegment(at)
}

// HandleTick re-evaluates completion against the provisional accumulated
// time. Runs once per second of wall clock while playing.
func (s *Session) HandleTick(at time.Time) {
	if !s.active || !s.running || s.emitted {
		return
	}
	provisional := s.accumulated + at.Sub(s.segmentStart).Seconds()
	if Complete(provisional, s.entry.DurationSeconds) {
		s.emitOnce(provisional, at)
	}
}

// Finalize ends the session: it re-checks completion with the final
// accumulated value (catching a missed last tick window) and resets to
// idle with no retained track.
func (s *Session) Finalize(at time.Time) {
	if !s.active {
		return
	}
	s.closeSegment(at)
	if !s.emitted && Complete(s.accumulated, s.entry.DurationSeconds) {
		s.emitOnce(s.accumulated, at)
	}
	s.active = false
	s.accumulated = 0
	s.emitted = false
	s.entry = catalog.Entry{}
}

func (s *Session) closeSegment(at time.Time) {
	if !s.active || !s.running {
		return
	}
	s.accumulated += at.Sub(s.segmentStart).Seconds()
	s.running = false
}

// emitOnce records the play fact. A failed write is dropped, not
// retried: the emitted flag is set regardless, so a single listen can be
// under-counted but never double-counted.
func (s *Session) emitOnce(listened float64, at time.Time) {
	s.emitted = true
	if err := s.emit(s.entry, listened, at); err != nil {
		logging.L().Warn("dropping live play fact",
			zap.String("uri", s.entry.URI), zap.Error(err))
	}
}
