// Package catalog reads the media library and live playback state from MPD.
package catalog

import "context"

// Entry is one catalog track as reported by the media server.
type Entry struct {
	URI             string // stable identifier
	Title           string
	Artist          string
	Album           string
	DurationSeconds float64 // 0 when unknown
	PlayCount       int64   // server-side monotonic play counter
}

// PlayState represents the live playback state.
type PlayState int

const (
	StateStopped PlayState = iota
	StatePlaying
	StatePaused
)

// String returns the state name.
func (s PlayState) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// NowPlaying describes the current playback snapshot.
type NowPlaying struct {
	Entry          Entry
	State          PlayState
	ElapsedSeconds float64
}

// Catalog is the read surface the engine consumes.
type Catalog interface {
	// Enumerate returns every track in the library with its play counter.
	Enumerate(ctx context.Context) ([]Entry, error)
	// Current returns the playback snapshot; nil Entry data and
	// StateStopped when nothing is loaded.
	Current(ctx context.Context) (*NowPlaying, error)
	// PlayCount reads the play counter for a single track.
	PlayCount(ctx context.Context, uri string) (int64, error)
}
