package store

import (
	"database/sql"

	dbutil "github.com/tlanglois/sillon/internal/db"
)

// GetRanks returns the previously stored rank per track for a chart view.
func (m *Manager) GetRanks(view string) (map[int64]int, error) {
	rows, err := m.db.Query(`
		SELECT track_id, rank FROM track_ranks WHERE view = ?
	`, view)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ranks := make(map[int64]int)
	for rows.Next() {
		var trackID int64
		var rank int
		if err := rows.Scan(&trackID, &rank); err != nil {
			return nil, err
		}
		ranks[trackID] = rank
	}
	return ranks, rows.Err()
}

// SaveRanks replaces the stored ranks for a chart view atomically.
func (m *Manager) SaveRanks(view string, ranks map[int64]int) error {
	return dbutil.WithTx(m.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM track_ranks WHERE view = ?`, view); err != nil {
			return err
		}
		for trackID, rank := range ranks {
			if _, err := tx.Exec(`
				INSERT INTO track_ranks (track_id, view, rank) VALUES (?, ?, ?)
			`, trackID, view, rank); err != nil {
				return err
			}
		}
		return nil
	})
}
