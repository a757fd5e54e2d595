// Package kv stores feature flags in an ordered key value store. Concrete
// stores live in the bolt and inmem packages.
package kv

import (
	"context"
	"errors"
)

var (
	// ErrKeyNotFound is returned by Bucket.Get for absent keys.
	ErrKeyNotFound = errors.New("key not found")
	// ErrBucketNotFound is returned when a read-only transaction asks for a
	// bucket that has never been written.
	ErrBucketNotFound = errors.New("bucket not found")
	// ErrTxNotWritable is returned by Put and Delete inside View.
	ErrTxNotWritable = errors.New("transaction is not writable")
)

// Store runs functions inside transactions, boltdb style. An error returned
// from fn aborts the transaction.
type Store interface {
	View(ctx context.Context, fn func(Tx) error) error
	Update(ctx context.Context, fn func(Tx) error) error
}

// Tx is a transaction in the store.
type Tx interface {
	// Bucket returns the named bucket, creating it in writable transactions.
	Bucket(name []byte) (Bucket, error)
}

// Bucket is an ordered keyspace inside a transaction. Slices it returns are
// only valid for the life of the transaction.
type Bucket interface {
	Get(key []byte) ([]byte, error)
	Cursor() (Cursor, error)
	Put(key, value []byte) error
	Delete(key []byte) error
}

// Cursor walks a bucket in key order. A nil key marks the end.
type Cursor interface {
	Seek(prefix []byte) (k []byte, v []byte)
	First() (k []byte, v []byte)
	Last() (k []byte, v []byte)
	Next() (k []byte, v []byte)
	Prev() (k []byte, v []byte)
}

// Walk calls fn for every pair in b in key order, stopping at the first
// error fn returns.
func Walk(b Bucket, fn func(k, v []byte) error) error {
	cur, err := b.Cursor()
	if err != nil {
		return err
	}
	for k, v := cur.First(); k != nil; k, v = cur.Next() {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}
