package mock

import (
	"context"
	"sync"

	"github.com/influxdata/sitefeatures"
)

var _ sitefeatures.FlagStore = (*FlagStore)(nil)

// FlagStore is a mock implementation of sitefeatures.FlagStore backed by a
// map. EnabledFn and SetEnabledFn may be replaced to inject failures.
type FlagStore struct {
	mu    sync.Mutex
	Flags map[string]bool

	EnabledFn    func(ctx context.Context, id string) (bool, error)
	SetEnabledFn func(ctx context.Context, id string, enabled bool) error

	SetEnabledCalls int
}

// NewFlagStore returns a FlagStore that remembers writes and reports false
// for ids it has never seen.
func NewFlagStore() *FlagStore {
	s := &FlagStore{Flags: map[string]bool{}}
	s.EnabledFn = func(_ context.Context, id string) (bool, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.Flags[id], nil
	}
	s.SetEnabledFn = func(_ context.Context, id string, enabled bool) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.Flags[id] = enabled
		return nil
	}
	return s
}

// Enabled delegates to EnabledFn.
func (s *FlagStore) Enabled(ctx context.Context, id string) (bool, error) {
	return s.EnabledFn(ctx, id)
}

// SetEnabled records the call and delegates to SetEnabledFn.
func (s *FlagStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	s.mu.Lock()
	s.SetEnabledCalls++
	s.mu.Unlock()
	return s.SetEnabledFn(ctx, id, enabled)
}
