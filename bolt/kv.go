// Package bolt persists feature flags in a single boltdb file.
package bolt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/influxdata/sitefeatures/kv"
	"github.com/opentracing/opentracing-go"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

const openTimeout = time.Second

var _ kv.Store = (*KVStore)(nil)

// KVStore is a kv.Store backed by boltdb.
type KVStore struct {
	path string
	db   *bolt.DB
	log  *zap.Logger
}

// NewKVStore returns a store for the file at path. Call Open before use.
func NewKVStore(log *zap.Logger, path string) *KVStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &KVStore{
		path: path,
		log:  log,
	}
}

// Open creates the parent directory and the bolt file if needed. It fails
// after one second if another process holds the file lock.
func (s *KVStore) Open(ctx context.Context) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "KVStore.Open")
	defer span.Finish()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("unable to create directory for %s: %w", s.path, err)
	}

	db, err := bolt.Open(s.path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return fmt.Errorf("unable to open boltdb file %s: %w", s.path, err)
	}
	s.db = db

	s.log.Info("Resources opened", zap.String("path", s.path))
	return nil
}

// Close closes the bolt file. It is safe to call on a store that never
// opened.
func (s *KVStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Path returns the location of the bolt file.
func (s *KVStore) Path() string {
	return s.path
}

// Flush drops every top level bucket.
func (s *KVStore) Flush(ctx context.Context) {
	if s.db == nil {
		return
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		var names [][]byte
		if err := tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			names = append(names, append([]byte(nil), name...))
			return nil
		}); err != nil {
			return err
		}
		for _, name := range names {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.Error("Failed to flush bolt store", zap.Error(err))
	}
}

// View runs fn in a read-only bolt transaction.
func (s *KVStore) View(ctx context.Context, fn func(tx kv.Tx) error) error {
	return s.run(ctx, "KVStore.View", false, fn)
}

// Update runs fn in a read-write bolt transaction. The transaction commits
// only if fn returns nil.
func (s *KVStore) Update(ctx context.Context, fn func(tx kv.Tx) error) error {
	return s.run(ctx, "KVStore.Update", true, fn)
}

func (s *KVStore) run(ctx context.Context, op string, writable bool, fn func(tx kv.Tx) error) error {
	span, _ := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	if s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}

	btx, err := s.db.Begin(writable)
	if err != nil {
		return err
	}
	if err := fn(&Tx{tx: btx}); err != nil {
		_ = btx.Rollback()
		return err
	}
	if !writable {
		return btx.Rollback()
	}
	return btx.Commit()
}

// Tx wraps a bolt transaction.
type Tx struct {
	tx *bolt.Tx
}

// Bucket returns the bucket called name, creating it in writable
// transactions.
func (tx *Tx) Bucket(name []byte) (kv.Bucket, error) {
	if b := tx.tx.Bucket(name); b != nil {
		return &Bucket{bucket: b}, nil
	}
	if !tx.tx.Writable() {
		return nil, kv.ErrBucketNotFound
	}

	b, err := tx.tx.CreateBucket(name)
	if err != nil {
		return nil, err
	}
	return &Bucket{bucket: b}, nil
}

// Bucket wraps a bolt bucket.
type Bucket struct {
	bucket *bolt.Bucket
}

func (b *Bucket) Get(key []byte) ([]byte, error) {
	if v := b.bucket.Get(key); v != nil {
		return v, nil
	}
	return nil, kv.ErrKeyNotFound
}

func (b *Bucket) Put(key, value []byte) error {
	return translate(b.bucket.Put(key, value))
}

func (b *Bucket) Delete(key []byte) error {
	return translate(b.bucket.Delete(key))
}

func translate(err error) error {
	if errors.Is(err, bolt.ErrTxNotWritable) {
		return kv.ErrTxNotWritable
	}
	return err
}

func (b *Bucket) Cursor() (kv.Cursor, error) {
	return &cursor{c: b.bucket.Cursor()}, nil
}

// cursor hides bolt's nested buckets, which it reports with a nil value.
type cursor struct {
	c *bolt.Cursor
}

func (c *cursor) skip(k, v []byte, step func() ([]byte, []byte)) ([]byte, []byte) {
	for k != nil && v == nil {
		k, v = step()
	}
	return k, v
}

func (c *cursor) Seek(prefix []byte) ([]byte, []byte) {
	k, v := c.c.Seek(prefix)
	return c.skip(k, v, c.c.Next)
}

func (c *cursor) First() ([]byte, []byte) {
	k, v := c.c.First()
	return c.skip(k, v, c.c.Next)
}

func (c *cursor) Last() ([]byte, []byte) {
	k, v := c.c.Last()
	return c.skip(k, v, c.c.Prev)
}

func (c *cursor) Next() ([]byte, []byte) {
	k, v := c.c.Next()
	return c.skip(k, v, c.c.Next)
}

func (c *cursor) Prev() ([]byte, []byte) {
	k, v := c.c.Prev()
	return c.skip(k, v, c.c.Prev)
}
