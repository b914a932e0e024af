// Package state persists the client-side slots the panel keeps between
// invocations: the staff session cookie, the self-service tokens, UI
// preferences, and the last-seen town/currency values.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/springfield-ops/townctl/internal/db"
)

// Key names a persisted slot. The names match the cookie and localStorage
// keys the backend's own web panel uses, so values can be copied across.
type Key string

const (
	KeySession          Key = "tsto_session"
	KeyPublicToken      Key = "publicUserToken"
	KeyPublicEmail      Key = "publicUserEmail"
	KeyDisplayName      Key = "user_display_name"
	KeyNucleusToken     Key = "nucleus_token"
	KeyDarkMode         Key = "darkMode"
	KeyAdvancedMode     Key = "advancedMode"
	KeyDonuts           Key = "donuts"
	KeyTownSize         Key = "town_size"
	KeyTownLastModified Key = "town_last_modified"
)

// SessionTTL is the lifetime of the staff session slot.
const SessionTTL = 24 * time.Hour

// ErrNotFound is returned when a slot is unset or expired.
var ErrNotFound = errors.New("slot not set")

// Store reads and writes slots. Writes are last-writer-wins.
type Store struct {
	db  *db.DB
	now func() time.Time
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database, now: time.Now}
}

// Get returns the value of key, or ErrNotFound if it is unset or expired.
// Expired slots are removed on read.
func (s *Store) Get(ctx context.Context, key Key) (string, error) {
	var (
		value   string
		expires sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM slots WHERE key = ?`, string(key),
	).Scan(&value, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading slot %s: %w", key, err)
	}

	if expires.Valid && s.now().Unix() >= expires.Int64 {
		if err := s.Delete(ctx, key); err != nil {
			return "", err
		}
		return "", ErrNotFound
	}
	return value, nil
}

// Lookup is Get without the error: it reports whether a usable value exists.
func (s *Store) Lookup(ctx context.Context, key Key) (string, bool) {
	v, err := s.Get(ctx, key)
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

// Set stores value under key with no expiry.
func (s *Store) Set(ctx context.Context, key Key, value string) error {
	return s.set(ctx, key, value, sql.NullInt64{})
}

// SetWithTTL stores value under key, expiring after ttl.
func (s *Store) SetWithTTL(ctx context.Context, key Key, value string, ttl time.Duration) error {
	exp := s.now().Add(ttl).Unix()
	return s.set(ctx, key, value, sql.NullInt64{Int64: exp, Valid: true})
}

func (s *Store) set(ctx context.Context, key Key, value string, expires sql.NullInt64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO slots (key, value, updated_at, expires_at)
		VALUES (?, ?, datetime('now'), ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at`,
		string(key), value, expires,
	)
	if err != nil {
		return fmt.Errorf("writing slot %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an unset key is not an error.
func (s *Store) Delete(ctx context.Context, key Key) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM slots WHERE key = ?`, string(key)); err != nil {
		return fmt.Errorf("deleting slot %s: %w", key, err)
	}
	return nil
}

// Bool reads a "true"/"false" preference slot, defaulting to false.
func (s *Store) Bool(ctx context.Context, key Key) bool {
	v, ok := s.Lookup(ctx, key)
	return ok && v == "true"
}

// SetBool writes a preference slot.
func (s *Store) SetBool(ctx context.Context, key Key, v bool) error {
	if v {
		return s.Set(ctx, key, "true")
	}
	return s.Set(ctx, key, "false")
}
