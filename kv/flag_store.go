package kv

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/influxdata/sitefeatures"
	ierrors "github.com/influxdata/sitefeatures/kit/platform/errors"
	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"
)

var flagsBucket = []byte("featureflagsv1")

var _ sitefeatures.FlagStore = (*FlagStore)(nil)

// FlagStore persists feature flags in a kv.Store, one key per feature id.
type FlagStore struct {
	kv       Store
	log      *zap.Logger
	defaults map[string]bool
}

// FlagStoreOption configures a FlagStore.
type FlagStoreOption func(*FlagStore)

// WithDefaults sets the flag reported for ids without a stored value. Ids
// absent from defaults report false.
func WithDefaults(defaults map[string]bool) FlagStoreOption {
	return func(s *FlagStore) {
		s.defaults = make(map[string]bool, len(defaults))
		for k, v := range defaults {
			s.defaults[k] = v
		}
	}
}

// WithFlagStoreLogger sets the logger of the store.
func WithFlagStoreLogger(log *zap.Logger) FlagStoreOption {
	return func(s *FlagStore) {
		s.log = log
	}
}

// NewFlagStore returns a FlagStore on top of st.
func NewFlagStore(st Store, opts ...FlagStoreOption) *FlagStore {
	s := &FlagStore{
		kv:  st,
		log: zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Enabled returns the stored flag for id, or its default.
func (s *FlagStore) Enabled(ctx context.Context, id string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "FlagStore.Enabled")
	defer span.Finish()

	var enabled bool
	err := s.kv.View(ctx, func(tx Tx) error {
		v, found, err := s.get(tx, id)
		if err != nil {
			return err
		}
		if !found {
			enabled = s.defaults[id]
			return nil
		}
		enabled = v
		return nil
	})
	if err != nil {
		return false, &ierrors.Error{
			Code: ierrors.EInternal,
			Op:   "kv/" + sitefeatures.OpFindFeature,
			Msg:  fmt.Sprintf("unable to read flag for %q", id),
			Err:  err,
		}
	}
	return enabled, nil
}

func (s *FlagStore) get(tx Tx, id string) (bool, bool, error) {
	b, err := tx.Bucket(flagsBucket)
	if errors.Is(err, ErrBucketNotFound) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}

	v, err := b.Get([]byte(id))
	if errors.Is(err, ErrKeyNotFound) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}

	enabled, err := strconv.ParseBool(string(v))
	if err != nil {
		return false, false, fmt.Errorf("corrupt flag value %q: %w", v, err)
	}
	return enabled, true, nil
}

// SetEnabled stores the flag for id.
func (s *FlagStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "FlagStore.SetEnabled")
	defer span.Finish()

	err := s.kv.Update(ctx, func(tx Tx) error {
		b, err := tx.Bucket(flagsBucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), []byte(strconv.FormatBool(enabled)))
	})
	if err != nil {
		return &ierrors.Error{
			Code: ierrors.EInternal,
			Op:   "kv/" + sitefeatures.OpSetEnabled,
			Msg:  fmt.Sprintf("unable to write flag for %q", id),
			Err:  err,
		}
	}
	s.log.Debug("Stored feature flag", zap.String("id", id), zap.Bool("enabled", enabled))
	return nil
}

// All returns every flag that has been stored explicitly.
func (s *FlagStore) All(ctx context.Context) (map[string]bool, error) {
	flags := make(map[string]bool)
	err := s.kv.View(ctx, func(tx Tx) error {
		b, err := tx.Bucket(flagsBucket)
		if errors.Is(err, ErrBucketNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		return Walk(b, func(k, v []byte) error {
			enabled, err := strconv.ParseBool(string(v))
			if err != nil {
				s.log.Warn("Skipping corrupt feature flag", zap.ByteString("id", k), zap.Error(err))
				return nil
			}
			flags[string(k)] = enabled
			return nil
		})
	})
	if err != nil {
		return nil, &ierrors.Error{
			Code: ierrors.EInternal,
			Op:   "kv/" + sitefeatures.OpFindFeatures,
			Err:  err,
		}
	}
	return flags, nil
}
