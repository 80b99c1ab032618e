package store

import (
	"database/sql"
	"time"
)

// Track is a library entry with a stable URI and counter bookkeeping.
//
// BaselineCount is the system play-counter value at track creation. It
// represents plays whose individual timestamps are unknown and is frozen
// after creation. LastCounter is the most recent counter value already
// accounted for: reconciliation computes its delta against LastCounter,
// materializes that many play facts and advances LastCounter, so the
// total play count is always BaselineCount + COUNT(play facts).
type Track struct {
	ID               int64
	URI              string
	Title            string
	Artist           string
	Album            string
	DurationSeconds  float64
	BaselineCount    int64
	LastCounter      int64
	LastReconciledAt time.Time
	CreatedAt        time.Time
}

const trackColumns = `id, uri, title, artist, album, duration_seconds,
	baseline_count, last_counter, last_reconciled_at, created_at`

func scanTrack(row interface{ Scan(...any) error }) (*Track, error) {
	var t Track
	var reconciledAt, createdAt int64
	err := row.Scan(
		&t.ID, &t.URI, &t.Title, &t.Artist, &t.Album, &t.DurationSeconds,
		&t.BaselineCount, &t.LastCounter, &reconciledAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	t.LastReconciledAt = time.Unix(reconciledAt, 0)
	t.CreatedAt = time.Unix(createdAt, 0)
	return &t, nil
}

// GetTrackByURI returns the track with the given URI, or nil if unknown.
func (m *Manager) GetTrackByURI(uri string) (*Track, error) {
	row := m.db.QueryRow(`SELECT `+trackColumns+` FROM tracks WHERE uri = ?`, uri)
	t, err := scanTrack(row)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // nil track means not yet observed
	}
	return t, err
}

// GetTrack returns the track with the given id, or nil if unknown.
func (m *Manager) GetTrack(id int64) (*Track, error) {
	row := m.db.QueryRow(`SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id)
	t, err := scanTrack(row)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // see GetTrackByURI
	}
	return t, err
}

// ListTracks returns all known tracks in catalog (URI) order.
func (m *Manager) ListTracks() ([]Track, error) {
	rows, err := m.db.Query(`SELECT ` + trackColumns + ` FROM tracks ORDER BY uri`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, *t)
	}
	return tracks, rows.Err()
}

// CreateTrackTx inserts a new track within tx and returns its id.
// BaselineCount and LastCounter both start at the observed counter value;
// no play facts are created for plays that predate tracking.
func CreateTrackTx(tx *sql.Tx, t *Track) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO tracks
		(uri, title, artist, album, duration_seconds, baseline_count, last_counter, last_reconciled_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.URI, t.Title, t.Artist, t.Album, t.DurationSeconds,
		t.BaselineCount, t.LastCounter, t.LastReconciledAt.Unix(), t.CreatedAt.Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// AdvanceCounterTx records that counter values up to lastCounter have been
// accounted for. BaselineCount is deliberately left untouched.
func AdvanceCounterTx(tx *sql.Tx, trackID, lastCounter int64, reconciledAt time.Time) error {
	_, err := tx.Exec(`
		UPDATE tracks SET last_counter = ?, last_reconciled_at = ? WHERE id = ?
	`, lastCounter, reconciledAt.Unix(), trackID)
	return err
}

// UpdateTrackMetadataTx refreshes display metadata read from the catalog.
func UpdateTrackMetadataTx(tx *sql.Tx, trackID int64, title, artist, album string, durationSeconds float64) error {
	_, err := tx.Exec(`
		UPDATE tracks SET title = ?, artist = ?, album = ?, duration_seconds = ?
		WHERE id = ?
	`, title, artist, album, durationSeconds, trackID)
	return err
}

// DeleteTrack removes a track; its play facts and ranks cascade.
func (m *Manager) DeleteTrack(id int64) error {
	_, err := m.db.Exec(`DELETE FROM tracks WHERE id = ?`, id)
	return err
}
