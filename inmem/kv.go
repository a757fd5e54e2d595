// Package inmem keeps feature flags in process memory. It backs the
// "memory" store of featured and the store conformance tests.
package inmem

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"
	"github.com/influxdata/sitefeatures/kv"
)

const degree = 8

var _ kv.Store = (*KVStore)(nil)

type item struct {
	key   []byte
	value []byte
}

func less(a, b item) bool {
	return bytes.Compare(a.key, b.key) < 0
}

type tree = btree.BTreeG[item]

// KVStore is a kv.Store of btrees. Update transactions work on
// copy-on-write clones of the buckets they touch and only publish them when
// fn succeeds.
type KVStore struct {
	mu      sync.RWMutex
	buckets map[string]*tree
}

// NewKVStore returns an empty store.
func NewKVStore() *KVStore {
	return &KVStore{
		buckets: make(map[string]*tree),
	}
}

// View runs fn under a read lock.
func (s *KVStore) View(ctx context.Context, fn func(kv.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&Tx{store: s})
}

// Update runs fn under the write lock. Writes become visible only if fn
// returns nil.
func (s *KVStore) Update(ctx context.Context, fn func(kv.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{
		store:   s,
		pending: make(map[string]*tree),
	}
	if err := fn(tx); err != nil {
		return err
	}
	for name, t := range tx.pending {
		s.buckets[name] = t
	}
	return nil
}

// Flush drops every bucket.
func (s *KVStore) Flush(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets = make(map[string]*tree)
}

// Tx is a transaction on a KVStore. A nil pending map marks it read-only.
type Tx struct {
	store   *KVStore
	pending map[string]*tree
}

func (t *Tx) writable() bool { return t.pending != nil }

// Bucket returns the named bucket. Read-only transactions get
// kv.ErrBucketNotFound for buckets that were never written.
func (t *Tx) Bucket(name []byte) (kv.Bucket, error) {
	key := string(name)
	if !t.writable() {
		tr, ok := t.store.buckets[key]
		if !ok {
			return nil, kv.ErrBucketNotFound
		}
		return &Bucket{tree: tr}, nil
	}

	tr, ok := t.pending[key]
	if !ok {
		if committed, exists := t.store.buckets[key]; exists {
			tr = committed.Clone()
		} else {
			tr = btree.NewG(degree, less)
		}
		t.pending[key] = tr
	}
	return &Bucket{tree: tr, writable: true}, nil
}

// Bucket is a single btree within a transaction.
type Bucket struct {
	tree     *tree
	writable bool
}

func (b *Bucket) Get(key []byte) ([]byte, error) {
	it, ok := b.tree.Get(item{key: key})
	if !ok {
		return nil, kv.ErrKeyNotFound
	}
	return it.value, nil
}

// Put stores copies of key and value.
func (b *Bucket) Put(key, value []byte) error {
	if !b.writable {
		return kv.ErrTxNotWritable
	}
	b.tree.ReplaceOrInsert(item{
		key:   bytes.Clone(key),
		value: bytes.Clone(value),
	})
	return nil
}

func (b *Bucket) Delete(key []byte) error {
	if !b.writable {
		return kv.ErrTxNotWritable
	}
	b.tree.Delete(item{key: key})
	return nil
}

// Cursor iterates over a snapshot of the bucket taken when it is called.
func (b *Bucket) Cursor() (kv.Cursor, error) {
	pairs := make([]kv.Pair, 0, b.tree.Len())
	b.tree.Ascend(func(it item) bool {
		pairs = append(pairs, kv.Pair{Key: it.key, Value: it.value})
		return true
	})
	return kv.NewStaticCursor(pairs), nil
}
