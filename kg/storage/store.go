// Package storage implements the versioned fact store on BadgerDB. Facts
// are keyed by triple identity under three orderings (SPO, POS, OSP); the
// value carries the log index the fact committed at, which makes as-of
// snapshot reads and idempotent re-inserts cheap. The store also owns the
// log-index tail counter and therefore doubles as the logindex.Log
// collaborator.
package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/wbrown/janus-kgstore/kg"
)

// ErrNoSuchIndex is returned when a snapshot is requested at an index the
// log has never committed.
var ErrNoSuchIndex = errors.New("storage: no such log index")

// Store is a badger-backed versioned fact store.
type Store struct {
	db *badger.DB

	// mu serializes mutations of the tail counter. Badger conflict
	// detection is off (matching the read-heavy tuning below), so the
	// counter is owned here.
	mu   sync.Mutex
	tail atomic.Uint64
	wipe atomic.Uint64
}

// Stats is a point-in-time view of store metadata.
type Stats struct {
	Facts     int    `json:"facts"`
	Tail      uint64 `json:"tail"`
	WipeFloor uint64 `json:"wipeFloor"`
}

// Open opens (or creates) a store at the given path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	// Read-heavy workload tuning.
	opts.MemTableSize = 128 << 20
	opts.BlockCacheSize = 256 << 20
	opts.IndexCacheSize = 100 << 20
	opts.DetectConflicts = false
	opts.NumCompactors = 4
	opts.ValueThreshold = 1 << 10

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to open badger: %w", err)
	}

	s := &Store{db: db}
	if err := s.loadMeta(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenInMemory opens an ephemeral store, used by tests and demos.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to open badger: %w", err)
	}
	s := &Store{db: db}
	if err := s.loadMeta(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) loadMeta() error {
	return s.db.View(func(txn *badger.Txn) error {
		if n, err := readCounter(txn, metaTailKey); err != nil {
			return err
		} else {
			s.tail.Store(n)
		}
		if n, err := readCounter(txn, metaWipeKey); err != nil {
			return err
		} else {
			s.wipe.Store(n)
		}
		return nil
	})
}

func readCounter(txn *badger.Txn, key []byte) (uint64, error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("storage: reading %q: %w", key, err)
	}
	var n uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("storage: counter %q has %d bytes", key, len(val))
		}
		n = binary.BigEndian.Uint64(val)
		return nil
	})
	return n, err
}

func writeCounter(txn *badger.Txn, key []byte, n uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	return txn.Set(key, buf)
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CurrentTail returns the index of the newest committed log entry. It
// implements logindex.Log; for this embedded store the authoritative
// answer is local.
func (s *Store) CurrentTail(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.tail.Load(), nil
}

// RecentIndex implements logindex.Log.
func (s *Store) RecentIndex() (uint64, bool) {
	tail := s.tail.Load()
	return tail, tail > 0
}

// AppendFacts commits a batch atomically and returns the post-commit
// index. Facts already present are left untouched, so re-submitting a
// satisfied batch is a no-op that still advances the log and returns a
// valid index: all facts are guaranteed present as of the returned index.
func (s *Store) AppendFacts(ctx context.Context, facts []kg.Fact) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index := s.tail.Load() + 1
	err := s.db.Update(func(txn *badger.Txn) error {
		for i := range facts {
			if err := s.appendFact(txn, index, &facts[i]); err != nil {
				return err
			}
		}
		return writeCounter(txn, metaTailKey, index)
	})
	if err != nil {
		return 0, fmt.Errorf("storage: append: %w", err)
	}
	s.tail.Store(index)
	return index, nil
}

func (s *Store) appendFact(txn *badger.Txn, index uint64, f *kg.Fact) error {
	spoKey := factKey(SPO, f)
	if _, err := txn.Get(spoKey); err == nil {
		// Triple already present; keep its original commit index.
		return nil
	} else if err != badger.ErrKeyNotFound {
		return err
	}

	encoded, err := kg.EncodeFact(*f)
	if err != nil {
		return err
	}
	value := make([]byte, 8, 8+len(encoded))
	binary.BigEndian.PutUint64(value, index)
	value = append(value, encoded...)

	for _, idx := range []IndexType{SPO, POS, OSP} {
		if err := txn.Set(factKey(idx, f), value); err != nil {
			return fmt.Errorf("writing %v index: %w", idx, err)
		}
	}
	return nil
}

// Wipe irreversibly deletes every fact. It returns the last index before
// the wipe and the index at which the wipe took effect. This is the one
// operation that breaks append-only visibility; the caller-facing grace
// window lives in the service layer, not here.
func (s *Store) Wipe(ctx context.Context) (before, at uint64, err error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before = s.tail.Load()
	at = before + 1
	err = s.db.Update(func(txn *badger.Txn) error {
		for _, tag := range []IndexType{SPO, POS, OSP} {
			if err := deletePrefix(txn, []byte{byte(tag)}); err != nil {
				return err
			}
		}
		if err := writeCounter(txn, metaWipeKey, at); err != nil {
			return err
		}
		return writeCounter(txn, metaTailKey, at)
	})
	if err != nil {
		return 0, 0, fmt.Errorf("storage: wipe: %w", err)
	}
	s.tail.Store(at)
	s.wipe.Store(at)
	return before, at, nil
}

func deletePrefix(txn *badger.Txn, prefix []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns current store metadata.
func (s *Store) Stats() (Stats, error) {
	st := Stats{Tail: s.tail.Load(), WipeFloor: s.wipe.Load()}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte{byte(SPO)}
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(opts.Prefix); it.Next() {
			st.Facts++
		}
		return nil
	})
	return st, err
}
