package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"voice-qa-session/internal/models"
)

const (
	currentKey    = "current"
	sessionPrefix = "session/"
)

// Badger is a Store backed by BadgerDB v4.
type Badger struct {
	db  *badger.DB
	log zerolog.Logger
}

// Options configures the badger store.
type Options struct {
	// Dir is the directory for data files. Required unless InMemory.
	Dir string

	// InMemory runs badger without disk persistence. Used by tests to
	// exercise the real engine.
	InMemory bool
}

// OpenBadger opens a badger-backed session store.
func OpenBadger(opts Options, log zerolog.Logger) (*Badger, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("store: Options.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(nil)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, err
	}
	return &Badger{db: db, log: log}, nil
}

// Open opens the badger store, degrading to a no-op store when storage is
// unavailable so the session still runs, just unpersisted.
func Open(opts Options, log zerolog.Logger) Store {
	b, err := OpenBadger(opts, log)
	if err != nil {
		log.Warn().Err(err).Str("dir", opts.Dir).Msg("session storage unavailable, running without persistence")
		return Nop{}
	}
	return b
}

// Save writes the snapshot, marks it current and enforces the history cap.
func (b *Badger) Save(ctx context.Context, s *models.Session) (int, error) {
	s.Timestamp = time.Now().UTC()
	raw, err := json.Marshal(s)
	if err != nil {
		return 0, err
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(sessionPrefix+s.ID), raw); err != nil {
			return err
		}
		return txn.Set([]byte(currentKey), []byte(s.ID))
	})
	if err != nil {
		return 0, err
	}
	return b.evict(ctx)
}

// evict drops the oldest sessions beyond HistoryLimit.
func (b *Badger) evict(ctx context.Context) (int, error) {
	all, err := b.ListAll(ctx)
	if err != nil || len(all) <= HistoryLimit {
		return 0, err
	}
	victims := all[HistoryLimit:]
	err = b.db.Update(func(txn *badger.Txn) error {
		for _, v := range victims {
			if err := txn.Delete([]byte(sessionPrefix + v.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, v := range victims {
		b.log.Debug().Str("sessionId", v.ID).Msg("evicted session beyond history cap")
	}
	return len(victims), nil
}

// LoadCurrent returns the current session, or nil when none is stored.
func (b *Badger) LoadCurrent(ctx context.Context) (*models.Session, error) {
	var id string
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(currentKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s, err := b.Load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		// Pointer to an evicted or deleted session: not an error.
		return nil, nil
	}
	return s, err
}

// Load returns the snapshot with the given id.
func (b *Badger) Load(_ context.Context, id string) (*models.Session, error) {
	var raw []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sessionPrefix + id))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var s models.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListAll returns the retained sessions, most recent first.
func (b *Badger) ListAll(_ context.Context) ([]*models.Session, error) {
	var out []*models.Session
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(sessionPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var s models.Session
				if err := json.Unmarshal(val, &s); err != nil {
					return err
				}
				out = append(out, &s)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

// Delete removes one session from the history.
func (b *Badger) Delete(_ context.Context, id string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(sessionPrefix + id)); err != nil {
			return err
		}
		item, err := txn.Get([]byte(currentKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var cur string
		if err := item.Value(func(val []byte) error { cur = string(val); return nil }); err != nil {
			return err
		}
		if cur == id {
			return txn.Delete([]byte(currentKey))
		}
		return nil
	})
}

// ClearAll removes every stored session.
func (b *Badger) ClearAll(ctx context.Context) error {
	all, err := b.ListAll(ctx)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		for _, s := range all {
			if err := txn.Delete([]byte(sessionPrefix + s.ID)); err != nil {
				return err
			}
		}
		err := txn.Delete([]byte(currentKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// Close releases the underlying database.
func (b *Badger) Close() error {
	return b.db.Close()
}
