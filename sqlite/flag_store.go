package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/influxdata/sitefeatures"
	ierrors "github.com/influxdata/sitefeatures/kit/platform/errors"
	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"
)

const flagsTable = "feature_flags"

var _ sitefeatures.FlagStore = (*FlagStore)(nil)

// FlagStore persists feature flags in the feature_flags table. The table is
// created by the scripts in the migrations package.
type FlagStore struct {
	store    *SqlStore
	log      *zap.Logger
	defaults map[string]bool
	now      func() time.Time
}

// FlagStoreOption configures a FlagStore.
type FlagStoreOption func(*FlagStore)

// WithDefaults sets the flag reported for ids without a row.
func WithDefaults(defaults map[string]bool) FlagStoreOption {
	return func(s *FlagStore) {
		s.defaults = make(map[string]bool, len(defaults))
		for k, v := range defaults {
			s.defaults[k] = v
		}
	}
}

// NewFlagStore returns a FlagStore using store.
func NewFlagStore(log *zap.Logger, store *SqlStore, opts ...FlagStoreOption) *FlagStore {
	if log == nil {
		log = zap.NewNop()
	}
	s := &FlagStore{
		store: store,
		log:   log,
		now:   time.Now,
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

	query, args, err := sq.Select("enabled").
		From(flagsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return false, err
	}

	var enabled bool
	if err := s.store.DB.GetContext(ctx, &enabled, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.defaults[id], nil
		}
		return false, &ierrors.Error{
			Code: ierrors.EInternal,
			Op:   "sqlite/" + sitefeatures.OpFindFeature,
			Msg:  fmt.Sprintf("unable to read flag for %q", id),
			Err:  err,
		}
	}
	return enabled, nil
}

// SetEnabled upserts the flag for id.
func (s *FlagStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "FlagStore.SetEnabled")
	defer span.Finish()

	query, args, err := sq.Insert(flagsTable).
		Columns("id", "enabled", "updated_at").
		Values(id, enabled, s.now().UTC()).
		Suffix("ON CONFLICT(id) DO UPDATE SET enabled = excluded.enabled, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return err
	}

	s.store.Mu.Lock()
	defer s.store.Mu.Unlock()

	if _, err := s.store.DB.ExecContext(ctx, query, args...); err != nil {
		return &ierrors.Error{
			Code: ierrors.EInternal,
			Op:   "sqlite/" + sitefeatures.OpSetEnabled,
			Msg:  fmt.Sprintf("unable to write flag for %q", id),
			Err:  err,
		}
	}
	s.log.Debug("Stored feature flag", zap.String("id", id), zap.Bool("enabled", enabled))
	return nil
}

type flagRow struct {
	ID      string `db:"id"`
	Enabled bool   `db:"enabled"`
}

// All returns every flag that has a row.
func (s *FlagStore) All(ctx context.Context) (map[string]bool, error) {
	query, args, err := sq.Select("id", "enabled").
		From(flagsTable).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []flagRow
	if err := s.store.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, &ierrors.Error{
			Code: ierrors.EInternal,
			Op:   "sqlite/" + sitefeatures.OpFindFeatures,
			Err:  err,
		}
	}

	flags := make(map[string]bool, len(rows))
	for _, r := range rows {
		flags[r.ID] = r.Enabled
	}
	return flags, nil
}
