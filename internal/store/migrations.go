package store

// runMigrations creates the journal schema.
func (s *Store) runMigrations() error {
	migrations := []string{
		// One row per visual session
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			particles INTEGER NOT NULL,
			mask_points INTEGER NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME
		)`,

		// Phrases shown on each reveal
		`CREATE TABLE IF NOT EXISTS phrases (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			text TEXT NOT NULL,
			source TEXT NOT NULL CHECK(source IN ('remote', 'fallback-empty', 'fallback-error')),
			created_at DATETIME NOT NULL
		)`,

		// Gesture transitions
		`CREATE TABLE IF NOT EXISTS gesture_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			gesture TEXT NOT NULL CHECK(gesture IN ('OPEN', 'CLOSED')),
			created_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_phrases_session_id ON phrases(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_phrases_created_at ON phrases(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_gesture_events_session_id ON gesture_events(session_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
