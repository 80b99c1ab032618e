package catalog

import (
	"errors"
	"testing"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/stretchr/testify/assert"
)

func TestEntryFromAttrs(t *testing.T) {
	e := entryFromAttrs(mpd.Attrs{
		"file":     "music/album/song.flac",
		"Title":    "Song",
		"Artist":   "Artist",
		"Album":    "Album",
		"duration": "215.320",
	})
	assert.Equal(t, "music/album/song.flac", e.URI)
	assert.Equal(t, "Song", e.Title)
	assert.Equal(t, "Artist", e.Artist)
	assert.Equal(t, "Album", e.Album)
	assert.InDelta(t, 215.32, e.DurationSeconds, 0.001)
}

func TestEntryFromAttrsFallbacks(t *testing.T) {
	// No Title tag: the file name stands in.
	e := entryFromAttrs(mpd.Attrs{
		"file": "music/untitled.ogg",
		"Time": "180",
	})
	assert.Equal(t, "untitled.ogg", e.Title)
	assert.Equal(t, 180.0, e.DurationSeconds)

	// No duration information at all.
	e = entryFromAttrs(mpd.Attrs{"file": "stream.mp3"})
	assert.Equal(t, 0.0, e.DurationSeconds)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify("op", nil))

	err := classify("enumerate library", errors.New("Permission denied"))
	assert.ErrorIs(t, err, ErrPermissionDenied)

	err = classify("enumerate library", errors.New("incorrect password"))
	assert.ErrorIs(t, err, ErrPermissionDenied)

	err = classify("enumerate library", errors.New("dial tcp: connection refused"))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "enumerate library")
}
