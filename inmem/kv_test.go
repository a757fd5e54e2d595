package inmem_test

import (
	"context"
	"errors"
	"testing"

	"github.com/influxdata/sitefeatures/inmem"
	"github.com/influxdata/sitefeatures/kv"
	"github.com/stretchr/testify/require"
)

func TestKVStore_ReadOnlyMissingBucket(t *testing.T) {
	s := inmem.NewKVStore()
	err := s.View(context.Background(), func(tx kv.Tx) error {
		_, err := tx.Bucket([]byte("nope"))
		return err
	})
	require.ErrorIs(t, err, kv.ErrBucketNotFound)
}

func TestKVStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := inmem.NewKVStore()

	require.NoError(t, s.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("b"))
		if err != nil {
			return err
		}
		if err := b.Put([]byte("b"), []byte("2")); err != nil {
			return err
		}
		return b.Put([]byte("a"), []byte("1"))
	}))

	require.NoError(t, s.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("b"))
		require.NoError(t, err)

		v, err := b.Get([]byte("a"))
		require.NoError(t, err)
		require.Equal(t, []byte("1"), v)

		require.ErrorIs(t, b.Put([]byte("c"), []byte("3")), kv.ErrTxNotWritable)
		require.ErrorIs(t, b.Delete([]byte("a")), kv.ErrTxNotWritable)

		cur, err := b.Cursor()
		require.NoError(t, err)
		var keys []string
		for k, _ := cur.First(); k != nil; k, _ = cur.Next() {
			keys = append(keys, string(k))
		}
		require.Equal(t, []string{"a", "b"}, keys)
		return nil
	}))

	require.NoError(t, s.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("b"))
		require.NoError(t, err)
		require.NoError(t, b.Delete([]byte("a")))
		_, err = b.Get([]byte("a"))
		require.ErrorIs(t, err, kv.ErrKeyNotFound)
		return nil
	}))

	s.Flush(ctx)
	err := s.View(ctx, func(tx kv.Tx) error {
		_, err := tx.Bucket([]byte("b"))
		return err
	})
	require.ErrorIs(t, err, kv.ErrBucketNotFound)
}

func TestKVStore_UpdateRollsBack(t *testing.T) {
	ctx := context.Background()
	s := inmem.NewKVStore()

	require.NoError(t, s.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("flags"))
		if err != nil {
			return err
		}
		return b.Put([]byte("status"), []byte("true"))
	}))

	boom := errors.New("boom")
	err := s.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("flags"))
		require.NoError(t, err)
		require.NoError(t, b.Put([]byte("status"), []byte("false")))
		require.NoError(t, b.Put([]byte("metrics"), []byte("true")))

		// Writes are visible inside the transaction.
		v, err := b.Get([]byte("status"))
		require.NoError(t, err)
		require.Equal(t, []byte("false"), v)

		nb, err := tx.Bucket([]byte("other"))
		require.NoError(t, err)
		require.NoError(t, nb.Put([]byte("k"), []byte("v")))
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("flags"))
		require.NoError(t, err)

		v, err := b.Get([]byte("status"))
		require.NoError(t, err)
		require.Equal(t, []byte("true"), v)

		_, err = b.Get([]byte("metrics"))
		require.ErrorIs(t, err, kv.ErrKeyNotFound)

		_, err = tx.Bucket([]byte("other"))
		require.ErrorIs(t, err, kv.ErrBucketNotFound)
		return nil
	}))
}

func TestKVStore_PutCopies(t *testing.T) {
	ctx := context.Background()
	s := inmem.NewKVStore()

	key, value := []byte("status"), []byte("true")
	require.NoError(t, s.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("flags"))
		if err != nil {
			return err
		}
		return b.Put(key, value)
	}))
	copy(value, "nope")

	require.NoError(t, s.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("flags"))
		require.NoError(t, err)
		v, err := b.Get([]byte("status"))
		require.NoError(t, err)
		require.Equal(t, []byte("true"), v)
		return nil
	}))
}
