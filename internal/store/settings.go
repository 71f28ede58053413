package store

import (
	"database/sql"
	"errors"
	"strconv"
)

// Settings is a small key/value table.
type Settings struct {
	db *sql.DB
}

// Settings returns the settings accessor for this store.
func (s *Store) Settings() *Settings {
	return &Settings{db: s.db}
}

// Get returns the value for key or ErrNotFound.
func (st *Settings) Get(key string) (string, error) {
	var v string
	err := st.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return v, err
}

// Set stores value under key.
func (st *Settings) Set(key, value string) error {
	_, err := st.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// Bool returns the boolean stored under key, or def when unset or unparsable.
func (st *Settings) Bool(key string, def bool) bool {
	v, err := st.Get(key)
	if err != nil {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// SetBool stores a boolean under key.
func (st *Settings) SetBool(key string, value bool) error {
	return st.Set(key, strconv.FormatBool(value))
}
