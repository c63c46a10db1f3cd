package counter

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
)

const (
	badgerLockStripes   = 64
	badgerConflictPause = time.Millisecond
)

// BadgerStore is an embedded counter backend for single-node deployments.
// Badger allows one process per directory, so increments on the same key
// are serialized in process; commit conflicts with other writers (admin
// deletes) are retried until the context ends.
type BadgerStore struct {
	db    *badger.DB
	locks [badgerLockStripes]sync.Mutex
}

var _ Store = (*BadgerStore)(nil)

// OpenBadger opens a badger database at path, or in memory when inMemory is set.
func OpenBadger(path string, inMemory bool) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger counter store: %w", err)
	}
	return NewBadgerStore(db), nil
}

// NewBadgerStore wraps an open database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Increment runs a read-modify-write transaction. The entry keeps the expiry
// assigned when it was created.
func (s *BadgerStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	mu := s.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	var count int64
	for {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("increment counter: %w", err)
		}

		err := s.db.Update(func(txn *badger.Txn) error {
			count = 0
			expiresAt := uint64(0)

			item, err := txn.Get([]byte(key))
			switch {
			case err == nil:
				if err := item.Value(func(v []byte) error {
					count = decodeCount(v)
					return nil
				}); err != nil {
					return err
				}
				expiresAt = item.ExpiresAt()
			case errors.Is(err, badger.ErrKeyNotFound):
			default:
				return err
			}

			count++
			entry := badger.NewEntry([]byte(key), encodeCount(count))
			if expiresAt > 0 {
				entry.ExpiresAt = expiresAt
			} else {
				entry = entry.WithTTL(ttl)
			}
			return txn.SetEntry(entry)
		})
		if err == nil {
			return count, nil
		}
		if !errors.Is(err, badger.ErrConflict) {
			return 0, fmt.Errorf("increment counter: %w", err)
		}

		select {
		case <-ctx.Done():
		case <-time.After(badgerConflictPause):
		}
	}
}

func (s *BadgerStore) lockFor(key string) *sync.Mutex {
	return &s.locks[xxhash.Sum64String(key)%badgerLockStripes]
}

func (s *BadgerStore) Get(_ context.Context, key string) (int64, error) {
	var count int64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			count = decodeCount(v)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("load counter: %w", err)
	}
	return count, nil
}

func (s *BadgerStore) Delete(_ context.Context, key string) error {
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	}); err != nil {
		return fmt.Errorf("delete counter: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func encodeCount(n int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf
}

func decodeCount(v []byte) int64 {
	if len(v) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(v))
}
