// Package store persists session snapshots to durable local storage. The
// store is the single write path: the turn machine and navigation logic
// never write storage directly.
package store

import (
	"context"
	"errors"

	"voice-qa-session/internal/models"
)

// HistoryLimit caps the retained session history. Saving one more distinct
// session evicts the oldest.
const HistoryLimit = 10

// ErrNotFound is returned by Load when the id is unknown.
var ErrNotFound = errors.New("store: session not found")

// Store persists and restores session snapshots. Implementations must make
// read operations return empty results, not errors, when storage is
// unavailable, so a session can still run without persistence.
type Store interface {
	// Save writes the snapshot and marks it as the current session.
	// It returns how many old sessions the history cap evicted.
	Save(ctx context.Context, s *models.Session) (evicted int, err error)

	// LoadCurrent returns the current session snapshot, or nil when
	// there is none.
	LoadCurrent(ctx context.Context) (*models.Session, error)

	// Load returns the snapshot with the given id.
	Load(ctx context.Context, id string) (*models.Session, error)

	// ListAll returns the retained sessions, most recent first.
	ListAll(ctx context.Context) ([]*models.Session, error)

	// Delete removes one session from the history.
	Delete(ctx context.Context, id string) error

	// ClearAll removes every stored session.
	ClearAll(ctx context.Context) error

	// Close releases storage resources.
	Close() error
}
