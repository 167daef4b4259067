package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/wbrown/janus-kgstore/kg"
)

// Pattern selects facts by any combination of bound positions. Nil
// positions match everything.
type Pattern struct {
	Subject   *kg.KGID
	Predicate *kg.KGID
	Object    *kg.KGValue
}

// Snapshot is an immutable as-of view of the dataset. It pins a badger
// read transaction, so it must be released promptly; the query layer
// releases it on completion and on cancellation.
type Snapshot struct {
	txn   *badger.Txn
	index uint64
}

// Snapshot opens a read view as of the given index. The index must name a
// committed log entry: zero or beyond-tail indices fail with
// ErrNoSuchIndex.
func (s *Store) Snapshot(asOf uint64) (*Snapshot, error) {
	if asOf == 0 || asOf > s.tail.Load() {
		return nil, fmt.Errorf("%w: %d (tail %d)", ErrNoSuchIndex, asOf, s.tail.Load())
	}
	return &Snapshot{txn: s.db.NewTransaction(false), index: asOf}, nil
}

// Index returns the log index this snapshot reads as of.
func (sn *Snapshot) Index() uint64 {
	return sn.index
}

// Release drops the pinned read transaction. Safe to call more than once.
func (sn *Snapshot) Release() {
	if sn.txn != nil {
		sn.txn.Discard()
		sn.txn = nil
	}
}

// Match returns an iterator over facts matching the pattern, visible as of
// the snapshot index. The key ordering is chosen from the bound positions:
// longest usable prefix wins.
func (sn *Snapshot) Match(p Pattern) *Iterator {
	var sc, pc, oc *component
	if p.Subject != nil {
		c := hashID(*p.Subject)
		sc = &c
	}
	if p.Predicate != nil {
		c := hashID(*p.Predicate)
		pc = &c
	}
	if p.Object != nil {
		c := hashObject(*p.Object)
		oc = &c
	}

	var prefix []byte
	switch {
	case sc != nil:
		prefix = scanPrefix(SPO, sc, pc, oc)
	case pc != nil:
		prefix = scanPrefix(POS, pc, oc)
	case oc != nil:
		prefix = scanPrefix(OSP, oc)
	default:
		prefix = scanPrefix(SPO)
	}

	opts := badger.DefaultIteratorOptions
	opts.PrefetchSize = 1000
	opts.PrefetchValues = true
	opts.Prefix = prefix

	it := sn.txn.NewIterator(opts)
	it.Rewind()
	return &Iterator{it: it, prefix: prefix, asOf: sn.index, pattern: p}
}

// Iterator yields facts visible as of a snapshot index.
type Iterator struct {
	it      *badger.Iterator
	prefix  []byte
	asOf    uint64
	pattern Pattern

	fact kg.Fact
	err  error
}

// Next advances to the next visible fact. It returns false at the end of
// the range or on the first decode error.
func (i *Iterator) Next() bool {
	for ; i.it.ValidForPrefix(i.prefix); i.it.Next() {
		var (
			index uint64
			fact  kg.Fact
		)
		err := i.it.Item().Value(func(val []byte) error {
			if len(val) < 8 {
				return fmt.Errorf("storage: fact value has %d bytes", len(val))
			}
			index = binary.BigEndian.Uint64(val[:8])
			var err error
			fact, err = kg.DecodeFact(val[8:])
			return err
		})
		if err != nil {
			i.err = err
			return false
		}
		if index > i.asOf {
			continue
		}
		if !i.matches(&fact) {
			continue
		}
		i.fact = fact
		i.it.Next()
		return true
	}
	return false
}

// matches re-checks bound positions against the decoded fact. Prefix scans
// already narrowed the range; this guards the positions the chosen
// ordering could not consume.
func (i *Iterator) matches(f *kg.Fact) bool {
	if i.pattern.Subject != nil && !f.Subject.Equal(*i.pattern.Subject) {
		return false
	}
	if i.pattern.Predicate != nil && !f.Predicate.Equal(*i.pattern.Predicate) {
		return false
	}
	if i.pattern.Object != nil && !kg.Equal(f.Object, *i.pattern.Object) {
		return false
	}
	return true
}

// Fact returns the fact at the current position.
func (i *Iterator) Fact() kg.Fact {
	return i.fact
}

// Err returns the first error the iterator hit, if any.
func (i *Iterator) Err() error {
	return i.err
}

// Close releases the underlying badger iterator.
func (i *Iterator) Close() {
	i.it.Close()
}
