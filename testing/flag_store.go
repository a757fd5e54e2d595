package testing

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/influxdata/sitefeatures"
)

// FlagStore is a sitefeatures.FlagStore that can also list what it holds.
type FlagStore interface {
	sitefeatures.FlagStore
	All(ctx context.Context) (map[string]bool, error)
}

// FlagStoreFields are the initial state of a flag store under test.
type FlagStoreFields struct {
	// Defaults must be handed to the store's constructor.
	Defaults map[string]bool
	// Flags are written with SetEnabled by Populate.
	Flags map[string]bool
}

// Populate writes every flag in f into s.
func (f FlagStoreFields) Populate(ctx context.Context, s sitefeatures.FlagStore) error {
	for id, enabled := range f.Flags {
		if err := s.SetEnabled(ctx, id, enabled); err != nil {
			return fmt.Errorf("failed to populate flag %q: %w", id, err)
		}
	}
	return nil
}

var flagCmpOptions = cmp.Options{
	cmpopts.EquateEmpty(),
}

// FlagStoreService runs every flag store conformance test against init.
func FlagStoreService(
	init func(FlagStoreFields, *testing.T) (FlagStore, func()),
	t *testing.T,
) {
	tests := []struct {
		name string
		fn   func(init func(FlagStoreFields, *testing.T) (FlagStore, func()), t *testing.T)
	}{
		{name: "Enabled", fn: EnabledFlag},
		{name: "SetEnabled", fn: SetEnabledFlag},
		{name: "All", fn: AllFlags},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(init, t)
		})
	}
}

// EnabledFlag tests reading single flags.
func EnabledFlag(
	init func(FlagStoreFields, *testing.T) (FlagStore, func()),
	t *testing.T,
) {
	type args struct {
		id string
	}
	type wants struct {
		enabled bool
		err     error
	}

	tests := []struct {
		name   string
		fields FlagStoreFields
		args   args
		wants  wants
	}{
		{
			name:   "unknown id is disabled",
			fields: FlagStoreFields{},
			args:   args{id: "log"},
			wants:  wants{enabled: false},
		},
		{
			name: "unknown id reports its default",
			fields: FlagStoreFields{
				Defaults: map[string]bool{"status": true},
			},
			args:  args{id: "status"},
			wants: wants{enabled: true},
		},
		{
			name: "stored flag",
			fields: FlagStoreFields{
				Flags: map[string]bool{"log": true, "status": false},
			},
			args:  args{id: "log"},
			wants: wants{enabled: true},
		},
		{
			name: "stored flag overrides default",
			fields: FlagStoreFields{
				Defaults: map[string]bool{"status": true},
				Flags:    map[string]bool{"status": false},
			},
			args:  args{id: "status"},
			wants: wants{enabled: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, done := init(tt.fields, t)
			defer done()
			ctx := context.Background()

			enabled, err := s.Enabled(ctx, tt.args.id)
			diffPlatformErrors(tt.name, err, tt.wants.err, t)

			if enabled != tt.wants.enabled {
				t.Errorf("enabled is different -got/+want\ndiff -%v/+%v", enabled, tt.wants.enabled)
			}
		})
	}
}

// SetEnabledFlag tests writing flags.
func SetEnabledFlag(
	init func(FlagStoreFields, *testing.T) (FlagStore, func()),
	t *testing.T,
) {
	type call struct {
		id      string
		enabled bool
	}
	type wants struct {
		flags map[string]bool
	}

	tests := []struct {
		name   string
		fields FlagStoreFields
		calls  []call
		wants  wants
	}{
		{
			name:   "enable a new flag",
			fields: FlagStoreFields{},
			calls:  []call{{id: "log", enabled: true}},
			wants: wants{
				flags: map[string]bool{"log": true},
			},
		},
		{
			name: "disable an enabled flag",
			fields: FlagStoreFields{
				Flags: map[string]bool{"log": true},
			},
			calls: []call{{id: "log", enabled: false}},
			wants: wants{
				flags: map[string]bool{"log": false},
			},
		},
		{
			name:   "toggle repeatedly",
			fields: FlagStoreFields{},
			calls: []call{
				{id: "log", enabled: true},
				{id: "log", enabled: false},
				{id: "log", enabled: true},
				{id: "status", enabled: true},
			},
			wants: wants{
				flags: map[string]bool{"log": true, "status": true},
			},
		},
		{
			name: "writing the current value is a no-op",
			fields: FlagStoreFields{
				Flags: map[string]bool{"metrics": true},
			},
			calls: []call{{id: "metrics", enabled: true}},
			wants: wants{
				flags: map[string]bool{"metrics": true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, done := init(tt.fields, t)
			defer done()
			ctx := context.Background()

			for _, c := range tt.calls {
				if err := s.SetEnabled(ctx, c.id, c.enabled); err != nil {
					t.Fatalf("unexpected error setting %q: %v", c.id, err)
				}
			}

			for id, want := range tt.wants.flags {
				got, err := s.Enabled(ctx, id)
				if err != nil {
					t.Fatalf("unexpected error reading %q: %v", id, err)
				}
				if got != want {
					t.Errorf("flag %q is %v, want %v", id, got, want)
				}
			}
		})
	}
}

// AllFlags tests listing stored flags.
func AllFlags(
	init func(FlagStoreFields, *testing.T) (FlagStore, func()),
	t *testing.T,
) {
	tests := []struct {
		name   string
		fields FlagStoreFields
		want   map[string]bool
	}{
		{
			name:   "empty store",
			fields: FlagStoreFields{},
			want:   map[string]bool{},
		},
		{
			name: "defaults are not listed",
			fields: FlagStoreFields{
				Defaults: map[string]bool{"status": true},
				Flags:    map[string]bool{"log": false},
			},
			want: map[string]bool{"log": false},
		},
		{
			name: "every stored flag",
			fields: FlagStoreFields{
				Flags: map[string]bool{"log": true, "metrics": false, "status": true},
			},
			want: map[string]bool{"log": true, "metrics": false, "status": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, done := init(tt.fields, t)
			defer done()

			got, err := s.All(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(got, tt.want, flagCmpOptions...); diff != "" {
				t.Errorf("flags are different -got/+want\ndiff %s", diff)
			}
		})
	}
}
