package kv

import (
	"bytes"
	"sort"
)

// Pair is a key value pair.
type Pair struct {
	Key   []byte
	Value []byte
}

// staticCursor implements Cursor over a sorted snapshot of pairs.
type staticCursor struct {
	idx   int
	pairs []Pair
}

// NewStaticCursor returns a cursor over pairs, which are sorted by key.
func NewStaticCursor(pairs []Pair) Cursor {
	sort.Slice(pairs, func(i, j int) bool {
		return bytes.Compare(pairs[i].Key, pairs[j].Key) < 0
	})
	return &staticCursor{
		idx:   -1,
		pairs: pairs,
	}
}

func (c *staticCursor) at(i int) ([]byte, []byte) {
	if i < 0 || i >= len(c.pairs) {
		// keep the index clamped one past either end
		if i < 0 {
			c.idx = -1
		} else {
			c.idx = len(c.pairs)
		}
		return nil, nil
	}
	c.idx = i
	return c.pairs[i].Key, c.pairs[i].Value
}

// Seek moves to the first key greater than or equal to prefix.
func (c *staticCursor) Seek(prefix []byte) ([]byte, []byte) {
	i := sort.Search(len(c.pairs), func(i int) bool {
		return bytes.Compare(c.pairs[i].Key, prefix) >= 0
	})
	return c.at(i)
}

// First moves to the first key.
func (c *staticCursor) First() ([]byte, []byte) {
	return c.at(0)
}

// Last moves to the last key.
func (c *staticCursor) Last() ([]byte, []byte) {
	return c.at(len(c.pairs) - 1)
}

// Next moves to the next key.
func (c *staticCursor) Next() ([]byte, []byte) {
	return c.at(c.idx + 1)
}

// Prev moves to the previous key.
func (c *staticCursor) Prev() ([]byte, []byte) {
	return c.at(c.idx - 1)
}
