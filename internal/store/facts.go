package store

import (
	"database/sql"
	"time"

	dbutil "github.com/tlanglois/sillon/internal/db"
)

// Source identifies how a play fact was observed.
type Source string

const (
	// SourceLive marks a play observed by the live tracking session.
	SourceLive Source = "live"
	// SourceCounter marks a play backfilled from a counter delta.
	SourceCounter Source = "counter"
)

// PlayFact is one asserted, immutable, timestamped play of a track.
// ListenedSeconds, DurationSeconds and CompletionRatio are only known for
// live facts; they are zero for counter-derived facts.
type PlayFact struct {
	ID              int64
	TrackID         int64
	PlayedAt        time.Time
	Source          Source
	ListenedSeconds float64
	DurationSeconds float64
	CompletionRatio float64
}

// InsertPlayFact appends a play fact outside any caller transaction.
func (m *Manager) InsertPlayFact(f *PlayFact) error {
	return dbutil.WithTx(m.db, func(tx *sql.Tx) error {
		return InsertPlayFactTx(tx, f)
	})
}

// InsertPlayFactTx appends a play fact within tx.
func InsertPlayFactTx(tx *sql.Tx, f *PlayFact) error {
	var listened, duration, ratio any
	if f.Source == SourceLive {
		listened, duration, ratio = f.ListenedSeconds, f.DurationSeconds, f.CompletionRatio
	}
	res, err := tx.Exec(`
		INSERT INTO play_facts
		(track_id, played_at, source, listened_seconds, duration_seconds, completion_ratio)
		VALUES (?, ?, ?, ?, ?, ?)
	`, f.TrackID, f.PlayedAt.Unix(), string(f.Source), listened, duration, ratio)
	if err != nil {
		return err
	}
	f.ID, err = res.LastInsertId()
	return err
}

// CountPlayFacts returns the number of play facts recorded for a track.
func (m *Manager) CountPlayFacts(trackID int64) (int64, error) {
	var count int64
	err := m.db.QueryRow(`
		SELECT COUNT(*) FROM play_facts WHERE track_id = ?
	`, trackID).Scan(&count)
	return count, err
}

// CountPlayFactsSince returns the number of play facts for a track with
// a timestamp at or after since.
func (m *Manager) CountPlayFactsSince(trackID int64, since time.Time) (int64, error) {
	var count int64
	err := m.db.QueryRow(`
		SELECT COUNT(*) FROM play_facts WHERE track_id = ? AND played_at >= ?
	`, trackID, since.Unix()).Scan(&count)
	return count, err
}

// PlayFacts returns all facts for a track in chronological order.
func (m *Manager) PlayFacts(trackID int64) ([]PlayFact, error) {
	rows, err := m.db.Query(`
		SELECT id, track_id, played_at, source, listened_seconds, duration_seconds, completion_ratio
		FROM play_facts
		WHERE track_id = ?
		ORDER BY played_at ASC, id ASC
	`, trackID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []PlayFact
	for rows.Next() {
		var f PlayFact
		var playedAt int64
		var source string
		var listened, duration, ratio sql.NullFloat64
		if err := rows.Scan(&f.ID, &f.TrackID, &playedAt, &source, &listened, &duration, &ratio); err != nil {
			return nil, err
		}
		f.PlayedAt = time.Unix(playedAt, 0)
		f.Source = Source(source)
		f.ListenedSeconds = dbutil.NullFloat64Value(listened)
		f.DurationSeconds = dbutil.NullFloat64Value(duration)
		f.CompletionRatio = dbutil.NullFloat64Value(ratio)
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// FactCounts returns play fact counts per track, optionally restricted to
// facts with a timestamp at or after since (zero time means all facts).
func (m *Manager) FactCounts(since time.Time) (map[int64]int64, error) {
	query := `SELECT track_id, COUNT(*) FROM play_facts GROUP BY track_id`
	args := []any{}
	if !since.IsZero() {
		query = `SELECT track_id, COUNT(*) FROM play_facts WHERE played_at >= ? GROUP BY track_id`
		args = append(args, since.Unix())
	}

	rows, err := m.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int64]int64)
	for rows.Next() {
		var trackID, count int64
		if err := rows.Scan(&trackID, &count); err != nil {
			return nil, err
		}
		counts[trackID] = count
	}
	return counts, rows.Err()
}
