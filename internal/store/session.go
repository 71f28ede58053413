package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Session is one run of the visual, from start to teardown.
type Session struct {
	ID         string     `json:"id"`
	Particles  int        `json:"particles"`
	MaskPoints int        `json:"mask_points"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// SessionRepository provides access to sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Start inserts a new session and returns it.
func (r *SessionRepository) Start(particles, maskPoints int) (*Session, error) {
	sess := &Session{
		ID:         uuid.New().String(),
		Particles:  particles,
		MaskPoints: maskPoints,
		StartedAt:  time.Now().UTC(),
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, particles, mask_points, started_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.Particles, sess.MaskPoints, sess.StartedAt,
	)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// End stamps the session's end time.
func (r *SessionRepository) End(id string) error {
	result, err := r.db.Exec(`UPDATE sessions SET ended_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a session.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	sess := &Session{}
	var ended sql.NullTime

	err := r.db.QueryRow(
		`SELECT id, particles, mask_points, started_at, ended_at FROM sessions WHERE id = ?`,
		id,
	).Scan(&sess.ID, &sess.Particles, &sess.MaskPoints, &sess.StartedAt, &ended)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if ended.Valid {
		sess.EndedAt = &ended.Time
	}
	return sess, nil
}
