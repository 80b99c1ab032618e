package catalog

import (
	"context"
	"path"
	"strconv"
	"sync"

	"github.com/fhs/gompd/v2/mpd"
)

const playCountSticker = "playCount"

// MPD implements Catalog against an MPD server. The connection is lazily
// dialed and re-dialed after failures; access is serialized.
type MPD struct {
	network  string
	address  string
	password string

	mu   sync.Mutex
	conn *mpd.Client
}

// NewMPD creates an MPD catalog for the given address, e.g. "localhost:6600".
func NewMPD(address, password string) *MPD {
	return &MPD{network: "tcp", address: address, password: password}
}

// Close closes the server connection if one is open.
func (m *MPD) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	return err
}

// withConn runs fn with a live connection, dialing if needed.
// A failed call drops the connection so the next call re-dials.
func (m *MPD) withConn(ctx context.Context, fn func(conn *mpd.Client) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		if err := m.conn.Ping(); err != nil {
			m.conn.Close()
			m.conn = nil
		}
	}
	if m.conn == nil {
		conn, err := mpd.DialAuthenticated(m.network, m.address, m.password)
		if err != nil {
			return err
		}
		m.conn = conn
	}

	if err := fn(m.conn); err != nil {
		m.conn.Close()
		m.conn = nil
		return err
	}
	return nil
}

// Enumerate lists every song in the library, joined with its play counter
// read in a single sticker pass.
func (m *MPD) Enumerate(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := m.withConn(ctx, func(conn *mpd.Client) error {
		attrs, err := conn.ListAllInfo("/")
		if err != nil {
			return err
		}

		counts, err := playCounts(conn, "")
		if err != nil {
			return err
		}

		entries = entries[:0]
		for _, a := range attrs {
			uri := a["file"]
			if uri == "" {
				continue // directory or playlist entry
			}
			e := entryFromAttrs(a)
			e.PlayCount = counts[uri]
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, classify("enumerate library", err)
	}
	return entries, nil
}

// Current returns the playback snapshot.
func (m *MPD) Current(ctx context.Context) (*NowPlaying, error) {
	var now NowPlaying
	err := m.withConn(ctx, func(conn *mpd.Client) error {
		status, err := conn.Status()
		if err != nil {
			return err
		}

		switch status["state"] {
		case "play":
			now.State = StatePlaying
		case "pause":
			now.State = StatePaused
		default:
			now.State = StateStopped
			return nil
		}

		now.ElapsedSeconds, _ = strconv.ParseFloat(status["elapsed"], 64)

		song, err := conn.CurrentSong()
		if err != nil {
			return err
		}
		now.Entry = entryFromAttrs(song)
		return nil
	})
	if err != nil {
		return nil, classify("read playback state", err)
	}
	return &now, nil
}

// PlayCount reads the play counter sticker for a single song. Songs with
// no sticker count as zero.
func (m *MPD) PlayCount(ctx context.Context, uri string) (int64, error) {
	var count int64
	err := m.withConn(ctx, func(conn *mpd.Client) error {
		// sticker find scopes to a directory, so search the song's parent
		scope := path.Dir(uri)
		if scope == "." {
			scope = ""
		}
		counts, err := playCounts(conn, scope)
		if err != nil {
			return err
		}
		count = counts[uri]
		return nil
	})
	if err != nil {
		return 0, classify("read play counter", err)
	}
	return count, nil
}

// playCounts returns URI -> play counter for all songs under scope
// ("" means the whole library).
func playCounts(conn *mpd.Client, scope string) (map[string]int64, error) {
	uris, stickers, err := conn.StickerFind(scope, playCountSticker)
	if err != nil {
		// Sticker database may be disabled; treat as all-zero counters.
		return map[string]int64{}, nil //nolint:nilerr // degraded mode, not an error
	}

	counts := make(map[string]int64, len(uris))
	for i, uri := range uris {
		if i >= len(stickers) {
			break
		}
		if n, err := strconv.ParseInt(stickers[i].Value, 10, 64); err == nil {
			counts[uri] = n
		}
	}
	return counts, nil
}

func entryFromAttrs(a mpd.Attrs) Entry {
	e := Entry{
		URI:    a["file"],
		Title:  a["Title"],
		Artist: a["Artist"],
		Album:  a["Album"],
	}
	if e.Title == "" {
		e.Title = path.Base(e.URI)
	}

	// Prefer the fractional duration field, fall back to integer Time.
	if d, err := strconv.ParseFloat(a["duration"], 64); err == nil {
		e.DurationSeconds = d
	} else if t, err := strconv.Atoi(a["Time"]); err == nil {
		e.DurationSeconds = float64(t)
	}
	return e
}
