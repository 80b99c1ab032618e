package store

import (
	"database/sql"
	"time"
)

// EngineState is the persisted scheduler bookkeeping, a singleton row.
type EngineState struct {
	LastFullSyncAt time.Time
}

// GetEngineState returns the persisted engine state. A zero LastFullSyncAt
// means no full sync has ever run.
func (m *Manager) GetEngineState() (*EngineState, error) {
	var lastFullSyncAt int64
	err := m.db.QueryRow(`
		SELECT last_full_sync_at FROM engine_state WHERE id = 1
	`).Scan(&lastFullSyncAt)
	if err == sql.ErrNoRows {
		return &EngineState{}, nil
	}
	if err != nil {
		return nil, err
	}

	st := &EngineState{}
	if lastFullSyncAt > 0 {
		st.LastFullSyncAt = time.Unix(lastFullSyncAt, 0)
	}
	return st, nil
}

// SaveLastFullSync records the time of a completed full reconciliation.
func (m *Manager) SaveLastFullSync(t time.Time) error {
	_, err := m.db.Exec(`
		INSERT INTO engine_state (id, last_full_sync_at) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET last_full_sync_at = excluded.last_full_sync_at
	`, t.Unix())
	return err
}
