// Package pebblestore backs db.KeyValueStore with CockroachDB's Pebble,
// an embedded ordered key-value engine whose own public surface (batches,
// indexed batches, snapshots, prefix iterators) is what db.KeyValueStore
// was modeled after — see db/database.go.
package pebblestore

import (
	"errors"
	"io"

	"github.com/cockroachdb/pebble"
	"github.com/satindex/satindex/db"
)

// Store is a db.KeyValueStore backed by a single Pebble database file.
type Store struct {
	db *pebble.DB
}

// Open opens (creating if absent) the Pebble database at dir.
func Open(dir string) (*Store, error) {
	pdb, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{db: pdb}, nil
}

func (s *Store) Has(key []byte) (bool, error) {
	v, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_ = v
	return true, closer.Close()
}

func (s *Store) Get(key []byte, cb func(value []byte) error) error {
	v, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return db.ErrKeyNotFound
	}
	if err != nil {
		return err
	}
	defer closer.Close()
	return cb(v)
}

func (s *Store) Put(key, value []byte) error {
	return s.db.Set(key, value, pebble.Sync)
}

func (s *Store) Delete(key []byte) error {
	return s.db.Delete(key, pebble.Sync)
}

func (s *Store) DeleteRange(start, end []byte) error {
	return s.db.DeleteRange(start, end, pebble.Sync)
}

func (s *Store) NewBatch() db.Batch {
	return &batch{b: s.db.NewBatch()}
}

func (s *Store) NewBatchWithSize(size int) db.Batch {
	return &batch{b: s.db.NewBatchWithSize(size)}
}

func (s *Store) NewIndexedBatch() db.IndexedBatch {
	return &indexedBatch{batch: batch{b: s.db.NewIndexedBatch()}}
}

func (s *Store) NewIndexedBatchWithSize(size int) db.IndexedBatch {
	return &indexedBatch{batch: batch{b: s.db.NewIndexedBatchWithSize(size)}}
}

func (s *Store) NewSnapshot() db.Snapshot {
	return &snapshot{s: s.db.NewSnapshot()}
}

func (s *Store) NewIterator(prefix []byte, withUpperBound bool) (db.Iterator, error) {
	opts := iterOptions(prefix, withUpperBound)
	it, err := s.db.NewIter(opts)
	if err != nil {
		return nil, err
	}
	return &iterator{it: it}, nil
}

// Update opens an indexed batch, applies fn, and commits it durably
// all-or-nothing. If fn errors, the batch is closed without committing.
func (s *Store) Update(fn func(db.IndexedBatch) error) error {
	b := s.NewIndexedBatch()
	if err := fn(b); err != nil {
		_ = b.(*indexedBatch).b.Close()
		return err
	}
	return b.(*indexedBatch).Write()
}

// View opens a read-only snapshot and applies fn to it.
func (s *Store) View(fn func(db.Snapshot) error) error {
	snap := s.NewSnapshot()
	defer snap.Close()
	return fn(snap)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// prefixUpperBound returns the smallest key that sorts after every key
// with the given prefix, for use as an IterOptions.UpperBound.
func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}
	return nil // prefix was all 0xff: unbounded above
}

func iterOptions(prefix []byte, withUpperBound bool) *pebble.IterOptions {
	opts := &pebble.IterOptions{LowerBound: prefix}
	if withUpperBound && prefix != nil {
		opts.UpperBound = prefixUpperBound(prefix)
	}
	return opts
}

type batch struct {
	b *pebble.Batch
}

func (bt *batch) Put(key, value []byte) error {
	return bt.b.Set(key, value, nil)
}

func (bt *batch) Delete(key []byte) error {
	return bt.b.Delete(key, nil)
}

func (bt *batch) DeleteRange(start, end []byte) error {
	return bt.b.DeleteRange(start, end, nil)
}

func (bt *batch) Size() int {
	return int(bt.b.Len())
}

func (bt *batch) Write() error {
	return bt.b.Commit(pebble.Sync)
}

func (bt *batch) Reset() {
	bt.b.Reset()
}

type indexedBatch struct {
	batch
}

func (bt *indexedBatch) Has(key []byte) (bool, error) {
	v, closer, err := bt.b.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_ = v
	return true, closer.Close()
}

func (bt *indexedBatch) Get(key []byte, cb func(value []byte) error) error {
	v, closer, err := bt.b.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return db.ErrKeyNotFound
	}
	if err != nil {
		return err
	}
	defer closer.Close()
	return cb(v)
}

func (bt *indexedBatch) NewIterator(prefix []byte, withUpperBound bool) (db.Iterator, error) {
	it, err := bt.b.NewIter(iterOptions(prefix, withUpperBound))
	if err != nil {
		return nil, err
	}
	return &iterator{it: it}, nil
}

type snapshot struct {
	s *pebble.Snapshot
}

func (sn *snapshot) Has(key []byte) (bool, error) {
	v, closer, err := sn.s.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_ = v
	return true, closer.Close()
}

func (sn *snapshot) Get(key []byte, cb func(value []byte) error) error {
	v, closer, err := sn.s.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return db.ErrKeyNotFound
	}
	if err != nil {
		return err
	}
	defer closer.Close()
	return cb(v)
}

func (sn *snapshot) NewIterator(prefix []byte, withUpperBound bool) (db.Iterator, error) {
	it, err := sn.s.NewIter(iterOptions(prefix, withUpperBound))
	if err != nil {
		return nil, err
	}
	return &iterator{it: it}, nil
}

func (sn *snapshot) Close() error {
	return sn.s.Close()
}

type iterator struct {
	it *pebble.Iterator
}

func (it *iterator) Close() error            { return it.it.Close() }
func (it *iterator) Valid() bool             { return it.it.Valid() }
func (it *iterator) First() bool             { return it.it.First() }
func (it *iterator) Next() bool              { return it.it.Next() }
func (it *iterator) Prev() bool              { return it.it.Prev() }
func (it *iterator) Key() []byte             { return it.it.Key() }
func (it *iterator) Seek(key []byte) bool    { return it.it.SeekGE(key) }
func (it *iterator) Value() ([]byte, error)  { return it.it.Value(), nil }

var _ io.Closer = (*iterator)(nil)
