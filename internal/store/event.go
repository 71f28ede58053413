package store

import (
	"database/sql"
	"time"
)

// GestureEvent is a journaled gesture transition.
type GestureEvent struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Gesture   string    `json:"gesture"`
	CreatedAt time.Time `json:"created_at"`
}

// EventRepository records gesture transitions.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Record appends a transition to gesture for the session.
func (r *EventRepository) Record(sessionID, gesture string) error {
	_, err := r.db.Exec(
		`INSERT INTO gesture_events (session_id, gesture, created_at) VALUES (?, ?, ?)`,
		sessionID, gesture, time.Now().UTC(),
	)
	return err
}

// ListBySession returns the session's transitions in order.
func (r *EventRepository) ListBySession(sessionID string) ([]GestureEvent, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, gesture, created_at FROM gesture_events
		 WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []GestureEvent
	for rows.Next() {
		var e GestureEvent
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Gesture, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
