// Package memstore is an in-memory db.KeyValueStore used by unit tests
// that exercise chainstore and the assignment engine without paying for
// a real Pebble database per test. It implements the same contract
// db/pebblestore satisfies (db.KeyValueStore), just against a sorted
// map guarded by a mutex instead of an LSM tree.
package memstore

import (
	"sort"
	"sync"

	"github.com/satindex/satindex/db"
)

// Store is a db.KeyValueStore backed by an in-memory map.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Has(key []byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[string(key)]
	return ok, nil
}

func (s *Store) Get(key []byte, cb func(value []byte) error) error {
	s.mu.RLock()
	v, ok := s.data[string(key)]
	if !ok {
		s.mu.RUnlock()
		return db.ErrKeyNotFound
	}
	cp := append([]byte(nil), v...)
	s.mu.RUnlock()
	return cb(cp)
}

func (s *Store) Put(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (s *Store) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, string(key))
	return nil
}

func (s *Store) DeleteRange(start, end []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.data {
		if keyInRange(k, start, end) {
			delete(s.data, k)
		}
	}
	return nil
}

func (s *Store) NewBatch() db.Batch                           { return newBatch(s) }
func (s *Store) NewBatchWithSize(int) db.Batch                { return newBatch(s) }
func (s *Store) NewIndexedBatch() db.IndexedBatch             { return newIndexedBatch(s) }
func (s *Store) NewIndexedBatchWithSize(int) db.IndexedBatch  { return newIndexedBatch(s) }

func (s *Store) NewSnapshot() db.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[string][]byte, len(s.data))
	for k, v := range s.data {
		cp[k] = append([]byte(nil), v...)
	}
	return &snapshot{data: cp}
}

func (s *Store) NewIterator(prefix []byte, withUpperBound bool) (db.Iterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newIterator(s.data, prefix, withUpperBound), nil
}

func (s *Store) Update(fn func(db.IndexedBatch) error) error {
	b := s.NewIndexedBatch()
	if err := fn(b); err != nil {
		return err
	}
	return b.Write()
}

func (s *Store) View(fn func(db.Snapshot) error) error {
	snap := s.NewSnapshot()
	defer snap.Close()
	return fn(snap)
}

func (s *Store) Close() error { return nil }

func keyInRange(k string, start, end []byte) bool {
	return k >= string(start) && k < string(end)
}

func hasPrefix(k string, prefix []byte) bool {
	return len(prefix) == 0 || (len(k) >= len(prefix) && k[:len(prefix)] == string(prefix))
}

type snapshot struct {
	data map[string][]byte
}

func (sn *snapshot) Has(key []byte) (bool, error) {
	_, ok := sn.data[string(key)]
	return ok, nil
}

func (sn *snapshot) Get(key []byte, cb func(value []byte) error) error {
	v, ok := sn.data[string(key)]
	if !ok {
		return db.ErrKeyNotFound
	}
	return cb(v)
}

func (sn *snapshot) NewIterator(prefix []byte, withUpperBound bool) (db.Iterator, error) {
	return newIterator(sn.data, prefix, withUpperBound), nil
}

func (sn *snapshot) Close() error { return nil }

type batch struct {
	store   *Store
	puts    map[string][]byte
	deletes map[string]bool
	ranges  [][2][]byte
	size    int
}

func newBatch(s *Store) *batch {
	return &batch{store: s, puts: make(map[string][]byte), deletes: make(map[string]bool)}
}

func (b *batch) Put(key, value []byte) error {
	k := string(key)
	b.puts[k] = append([]byte(nil), value...)
	delete(b.deletes, k)
	b.size += len(key) + len(value)
	return nil
}

func (b *batch) Delete(key []byte) error {
	k := string(key)
	b.deletes[k] = true
	delete(b.puts, k)
	b.size += len(key)
	return nil
}

func (b *batch) DeleteRange(start, end []byte) error {
	b.ranges = append(b.ranges, [2][]byte{start, end})
	return nil
}

func (b *batch) Size() int { return b.size }

func (b *batch) Write() error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	for _, r := range b.ranges {
		for k := range b.store.data {
			if keyInRange(k, r[0], r[1]) {
				delete(b.store.data, k)
			}
		}
	}
	for k := range b.deletes {
		delete(b.store.data, k)
	}
	for k, v := range b.puts {
		b.store.data[k] = v
	}
	return nil
}

func (b *batch) Reset() {
	b.puts = make(map[string][]byte)
	b.deletes = make(map[string]bool)
	b.ranges = nil
	b.size = 0
}

// indexedBatch adds read-your-own-writes on top of batch, which the
// engine relies on within a single multi-block commit (§4.D).
type indexedBatch struct {
	batch
}

func newIndexedBatch(s *Store) *indexedBatch {
	return &indexedBatch{batch: *newBatch(s)}
}

func (b *indexedBatch) Has(key []byte) (bool, error) {
	k := string(key)
	if b.deletes[k] {
		return false, nil
	}
	if _, ok := b.puts[k]; ok {
		return true, nil
	}
	return b.store.Has(key)
}

func (b *indexedBatch) Get(key []byte, cb func(value []byte) error) error {
	k := string(key)
	if b.deletes[k] {
		return db.ErrKeyNotFound
	}
	if v, ok := b.puts[k]; ok {
		return cb(v)
	}
	return b.store.Get(key, cb)
}

func (b *indexedBatch) NewIterator(prefix []byte, withUpperBound bool) (db.Iterator, error) {
	b.store.mu.RLock()
	merged := make(map[string][]byte, len(b.store.data))
	for k, v := range b.store.data {
		merged[k] = v
	}
	b.store.mu.RUnlock()
	for k := range b.deletes {
		delete(merged, k)
	}
	for k, v := range b.puts {
		merged[k] = v
	}
	return newIterator(merged, prefix, withUpperBound), nil
}

type iterator struct {
	keys []string
	vals map[string][]byte
	pos  int
}

func newIterator(data map[string][]byte, prefix []byte, withUpperBound bool) *iterator {
	_ = withUpperBound // keys are filtered to prefix below either way
	keys := make([]string, 0, len(data))
	for k := range data {
		if hasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return &iterator{keys: keys, vals: data, pos: -1}
}

func (it *iterator) Close() error { return nil }

func (it *iterator) Valid() bool { return it.pos >= 0 && it.pos < len(it.keys) }

func (it *iterator) First() bool {
	it.pos = 0
	return it.Valid()
}

func (it *iterator) Next() bool {
	it.pos++
	return it.Valid()
}

func (it *iterator) Prev() bool {
	it.pos--
	return it.Valid()
}

func (it *iterator) Key() []byte { return []byte(it.keys[it.pos]) }

func (it *iterator) Value() ([]byte, error) { return it.vals[it.keys[it.pos]], nil }

func (it *iterator) Seek(key []byte) bool {
	target := string(key)
	it.pos = sort.SearchStrings(it.keys, target)
	return it.Valid()
}
