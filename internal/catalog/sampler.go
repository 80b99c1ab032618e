package catalog

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tlanglois/sillon/internal/logging"
)

// EventKind identifies a playback transition derived from polling.
type EventKind int

const (
	// TrackChanged fires when the playing song differs from the last poll.
	TrackChanged EventKind = iota
	// PlaybackStarted fires when the same song resumes from pause or stop.
	PlaybackStarted
	// PlaybackPaused fires on a play -> pause transition.
	PlaybackPaused
	// PlaybackStopped fires on a transition to the stopped state.
	PlaybackStopped
	// Tick fires on every poll while a song is playing.
	Tick
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case TrackChanged:
		return "TrackChanged"
	case PlaybackStarted:
		return "PlaybackStarted"
	case PlaybackPaused:
		return "PlaybackPaused"
	case PlaybackStopped:
		return "PlaybackStopped"
	case Tick:
		return "Tick"
	default:
		return "Unknown"
	}
}

// Event is one discrete playback fact derived from two consecutive polls.
// Now is nil for PlaybackStopped.
type Event struct {
	Kind EventKind
	Now  *NowPlaying
	At   time.Time
}

const (
	pollInterval    = time.Second
	eventBufferSize = 16
)

// Sampler polls the catalog playback state once per second and derives
// discrete events. All consumers read from a single channel, so ordering
// is preserved (a TrackChanged is always delivered before the first Tick
// of the new track).
type Sampler struct {
	catalog Catalog
	events  chan Event

	// last observed snapshot
	prevURI   string
	prevState PlayState
}

// NewSampler creates a sampler over the given catalog.
func NewSampler(c Catalog) *Sampler {
	return &Sampler{
		catalog: c,
		events:  make(chan Event, eventBufferSize),
	}
}

// Events returns the event channel. Closed when Run returns.
func (s *Sampler) Events() <-chan Event {
	return s.events
}

// Run polls until ctx is canceled. Poll errors are logged and skipped;
// the next poll self-heals.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	defer close(s.events)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Sampler) poll(ctx context.Context) {
	now, err := s.catalog.Current(ctx)
	if err != nil {
		logging.L().Warn("playback poll failed", zap.Error(err))
		return
	}
	at := time.Now()

	uri := ""
	if now.State != StateStopped {
		uri = now.Entry.URI
	}

	switch {
	case uri != s.prevURI:
		// Song changed (including to or from silence). A single event
		// carries both the end of the old track and the start of the new
		// one; the session finalizes the outgoing track first.
		//
		// A stop clears the remembered song, so playing the same song
		// again later arrives here as TrackChanged and a fresh listen.
		// MPD resets the playback position on stop, so the interrupted
		// listen could not have continued anyway; only pause resumes.
		if uri == "" {
			s.send(Event{Kind: PlaybackStopped, At: at})
		} else {
			s.send(Event{Kind: TrackChanged, Now: now, At: at})
		}

	case now.State != s.prevState:
		switch now.State {
		case StatePlaying:
			s.send(Event{Kind: PlaybackStarted, Now: now, At: at})
		case StatePaused:
			s.send(Event{Kind: PlaybackPaused, Now: now, At: at})
		case StateStopped:
			s.send(Event{Kind: PlaybackStopped, At: at})
		}
	}

	if now.State == StatePlaying {
		s.send(Event{Kind: Tick, Now: now, At: at})
	}

	s.prevURI = uri
	s.prevState = now.State
}

// send delivers an event without blocking; a full buffer drops the event.
func (s *Sampler) send(e Event) {
	select {
	case s.events <- e:
	default:
	}
}
