package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Phrase is a journaled reveal.
type Phrase struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// PhraseRepository provides access to journaled phrases.
type PhraseRepository struct {
	db *sql.DB
}

// Phrases returns the phrase repository for this store.
func (s *Store) Phrases() *PhraseRepository {
	return &PhraseRepository{db: s.db}
}

// Create inserts p, assigning its ID and timestamp.
func (r *PhraseRepository) Create(p *Phrase) error {
	p.ID = uuid.New().String()
	p.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(
		`INSERT INTO phrases (id, session_id, text, source, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.SessionID, p.Text, p.Source, p.CreatedAt,
	)
	return err
}

// List returns up to limit phrases, newest first. A non-positive limit returns all.
func (r *PhraseRepository) List(limit int) ([]*Phrase, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT id, session_id, text, source, created_at
		 FROM phrases ORDER BY rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var phrases []*Phrase
	for rows.Next() {
		p := &Phrase{}
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Text, &p.Source, &p.CreatedAt); err != nil {
			return nil, err
		}
		phrases = append(phrases, p)
	}
	return phrases, rows.Err()
}

// Latest returns the most recent phrase.
func (r *PhraseRepository) Latest() (*Phrase, error) {
	phrases, err := r.List(1)
	if err != nil {
		return nil, err
	}
	if len(phrases) == 0 {
		return nil, ErrNotFound
	}
	return phrases[0], nil
}

// Count returns the number of journaled phrases.
func (r *PhraseRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM phrases`).Scan(&n)
	return n, err
}
