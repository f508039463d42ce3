package store

import (
	"context"

	"voice-qa-session/internal/models"
)

// Nop is the degraded store used when storage is unavailable. Writes are
// dropped, reads come back empty, nothing errors: the session runs
// unpersisted instead of crashing.
type Nop struct{}

func (Nop) Save(context.Context, *models.Session) (int, error)    { return 0, nil }
func (Nop) LoadCurrent(context.Context) (*models.Session, error)  { return nil, nil }
func (Nop) Load(context.Context, string) (*models.Session, error) { return nil, ErrNotFound }
func (Nop) ListAll(context.Context) ([]*models.Session, error)    { return nil, nil }
func (Nop) Delete(context.Context, string) error                  { return nil }
func (Nop) ClearAll(context.Context) error                        { return nil }
func (Nop) Close() error                                          { return nil }
