// Package scrobble submits observed plays to Last.fm.
package scrobble

import (
	"errors"
	"fmt"
	"time"

	"github.com/shkh/lastfm-go/lastfm"
)

// ErrNotAuthenticated is returned when no session key is configured.
var ErrNotAuthenticated = errors.New("not authenticated")

// Track contains track metadata for a submission.
type Track struct {
	Artist          string
	Title           string
	Album           string
	DurationSeconds int
	Timestamp       time.Time // when playback started
}

// Submitter accepts play submissions. Satisfied by Client; fakes are used
// in tests.
type Submitter interface {
	Scrobble(t Track) error
	UpdateNowPlaying(t Track) error
}

// Client wraps the Last.fm API for scrobbling.
type Client struct {
	api        *lastfm.Api
	apiKey     string
	sessionKey string
}

// New creates a Last.fm client with the given credentials. The session
// key comes from a previously authorized desktop session.
func New(apiKey, apiSecret, sessionKey string) *Client {
	api := lastfm.New(apiKey, apiSecret)
	if sessionKey != "" {
		api.SetSession(sessionKey)
	}
	return &Client{api: api, apiKey: apiKey, sessionKey: sessionKey}
}

// IsAuthenticated returns true if a session key is set.
func (c *Client) IsAuthenticated() bool {
	return c.sessionKey != ""
}

// Scrobble submits a track play to Last.fm.
func (c *Client) Scrobble(track Track) error {
	if !c.IsAuthenticated() {
		return ErrNotAuthenticated
	}

	params := lastfm.P{
		"artist":    track.Artist,
		"track":     track.Title,
		"timestamp": track.Timestamp.Unix(),
	}
	if track.Album != "" {
		params["album"] = track.Album
	}
	if track.DurationSeconds > 0 {
		params["duration"] = track.DurationSeconds
	}

	if _, err := c.api.Track.Scrobble(params); err != nil {
		return fmt.Errorf("scrobble: %w", err)
	}
	return nil
}

// UpdateNowPlaying sends a "now playing" notification to Last.fm.
// Best-effort: callers may ignore failures.
func (c *Client) UpdateNowPlaying(track Track) error {
	if !c.IsAuthenticated() {
		return ErrNotAuthenticated
	}

	params := lastfm.P{
		"artist": track.Artist,
		"track":  track.Title,
	}
	if track.Album != "" {
		params["album"] = track.Album
	}
	if track.DurationSeconds > 0 {
		params["duration"] = track.DurationSeconds
	}

	if _, err := c.api.Track.UpdateNowPlaying(params); err != nil {
		return fmt.Errorf("update now playing: %w", err)
	}
	return nil
}
