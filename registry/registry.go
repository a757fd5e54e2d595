package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/influxdata/sitefeatures"
	"github.com/influxdata/sitefeatures/kit/platform/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const opPrefix = "registry/"

var (
	_ sitefeatures.FlagStore      = (*Registry)(nil)
	_ sitefeatures.FeatureService = (*Registry)(nil)
)

// Option configures a Registry at Build time.
type Option func(*Registry)

// WithLogger overrides the logger inherited from the Builder.
func WithLogger(log *zap.Logger) Option {
	return func(r *Registry) {
		r.log = log
	}
}

// Registry couples a flag store with the lifecycle of the registered
// features. It is itself a FlagStore: writing a flag runs the feature's
// Setup or Shutdown hook first, and the flag only changes if the hook
// succeeds.
type Registry struct {
	log   *zap.Logger
	store sitefeatures.FlagStore

	mu       sync.RWMutex
	features map[string]sitefeatures.Feature

	metrics *metrics
}

// Enabled reports the persisted flag for id. Unregistered ids answer with
// the store's default.
func (r *Registry) Enabled(ctx context.Context, id string) (bool, error) {
	return r.store.Enabled(ctx, id)
}

// SetEnabled moves the feature identified by id to the target state.
//
// Asking for the current state is a successful no-op, even for an id with
// no registered feature. Otherwise the feature's Setup (false to true) or
// Shutdown (true to false) hook runs; if it fails the flag is left alone
// and the hook's error is returned. The flag is written only after the hook
// succeeds.
func (r *Registry) SetEnabled(ctx context.Context, id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setEnabled(ctx, id, enabled)
}

func (r *Registry) setEnabled(ctx context.Context, id string, enabled bool) error {
	op := opPrefix + sitefeatures.OpSetEnabled

	current, err := r.store.Enabled(ctx, id)
	if err != nil {
		return &errors.Error{
			Code: errors.EInternal,
			Op:   op,
			Msg:  fmt.Sprintf("unable to read flag for feature %q", id),
			Err:  err,
		}
	}
	if current == enabled {
		return nil
	}

	transition := transitionSetup
	if current {
		transition = transitionShutdown
	}

	f, ok := r.features[id]
	if !ok {
		// Unknown ids come from callers; keep them out of label values.
		r.metrics.transitions.WithLabelValues(unknownFeature, transition, resultNotFound).Inc()
		return &errors.Error{
			Code: errors.ENotFound,
			Op:   op,
			Msg:  fmt.Sprintf("unknown id %q", id),
			Err:  sitefeatures.ErrFeatureNotFound,
		}
	}

	log := r.log.With(zap.String("id", id), zap.String("transition", transition))
	if err := r.runHook(ctx, f, transition); err != nil {
		log.Warn("Feature rejected transition", zap.Error(err))
		r.metrics.transitions.WithLabelValues(id, transition, resultFailure).Inc()
		return err
	}

	if err := r.store.SetEnabled(ctx, id, enabled); err != nil {
		// The hook already ran; live and persisted state now disagree
		// until the next successful write or a restart.
		log.Error("Feature transitioned but flag was not persisted", zap.Error(err))
		r.metrics.transitions.WithLabelValues(id, transition, resultStoreError).Inc()
		return &errors.Error{
			Code: errors.EInternal,
			Op:   op,
			Msg:  fmt.Sprintf("feature %q transitioned but its flag could not be saved", id),
			Err:  err,
		}
	}

	log.Info("Feature transitioned", zap.Bool("enabled", enabled))
	r.metrics.transitions.WithLabelValues(id, transition, resultSuccess).Inc()
	return nil
}

// runHook invokes the Setup or Shutdown hook of f. Every error it returns
// carries EConflict; other errors and recovered panics are wrapped.
func (r *Registry) runHook(ctx context.Context, f sitefeatures.Feature, transition string) (err error) {
	defer func(start time.Time) {
		r.metrics.hookDuration.WithLabelValues(f.ID(), transition).Observe(time.Since(start).Seconds())
	}(time.Now())

	defer func() {
		if rec := recover(); rec != nil {
			err = &errors.Error{
				Code: errors.EConflict,
				Op:   opPrefix + transition,
				Msg:  fmt.Sprintf("panic: %v", rec),
			}
		}
	}()

	if transition == transitionSetup {
		err = f.Setup(ctx)
	} else {
		err = f.Shutdown(ctx)
	}
	if err == nil {
		return nil
	}
	if errors.ErrorCode(err) == errors.EConflict {
		return err
	}
	return &errors.Error{
		Code: errors.EConflict,
		Op:   opPrefix + transition,
		Msg:  fmt.Sprintf("feature %q %s failed", f.ID(), transition),
		Err:  err,
	}
}

// IDs returns the ids of every registered feature, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedIDs()
}

func (r *Registry) sortedIDs() []string {
	ids := make([]string, 0, len(r.features))
	for id := range r.features {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FindFeature returns the administrative view of a single feature.
func (r *Registry) FindFeature(ctx context.Context, id string) (*sitefeatures.FeatureInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.features[id]
	if !ok {
		return nil, &errors.Error{
			Code: errors.ENotFound,
			Op:   opPrefix + sitefeatures.OpFindFeature,
			Msg:  fmt.Sprintf("unknown id %q", id),
			Err:  sitefeatures.ErrFeatureNotFound,
		}
	}

	enabled, err := r.store.Enabled(ctx, id)
	if err != nil {
		return nil, &errors.Error{
			Code: errors.EInternal,
			Op:   opPrefix + sitefeatures.OpFindFeature,
			Err:  err,
		}
	}
	return sitefeatures.NewFeatureInfo(f, enabled), nil
}

// FindFeatures returns every registered feature with its current flag.
func (r *Registry) FindFeatures(ctx context.Context) ([]*sitefeatures.FeatureInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]*sitefeatures.FeatureInfo, 0, len(r.features))
	for _, id := range r.sortedIDs() {
		enabled, err := r.store.Enabled(ctx, id)
		if err != nil {
			return nil, &errors.Error{
				Code: errors.EInternal,
				Op:   opPrefix + sitefeatures.OpFindFeatures,
				Err:  err,
			}
		}
		infos = append(infos, sitefeatures.NewFeatureInfo(r.features[id], enabled))
	}
	return infos, nil
}

// Restore runs Setup for every registered feature the store already reports
// as enabled. It is never called implicitly. A feature whose Setup fails has
// its flag reset to false so that the store matches the live state.
func (r *Registry) Restore(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs error
	for _, id := range r.sortedIDs() {
		enabled, err := r.store.Enabled(ctx, id)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !enabled {
			continue
		}

		f := r.features[id]
		if err := r.runHook(ctx, f, transitionSetup); err != nil {
			r.log.Warn("Unable to restore feature; disabling", zap.String("id", id), zap.Error(err))
			r.metrics.transitions.WithLabelValues(id, transitionSetup, resultFailure).Inc()
			errs = multierr.Append(errs, err)
			if err := r.store.SetEnabled(ctx, id, false); err != nil {
				errs = multierr.Append(errs, err)
			}
			continue
		}
		r.log.Info("Feature restored", zap.String("id", id))
		r.metrics.transitions.WithLabelValues(id, transitionSetup, resultSuccess).Inc()
	}
	return errs
}

// Close runs Shutdown on every registered feature the store reports as
// enabled. Flags are left as they are so a later Restore brings the same
// features back.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs error
	for _, id := range r.sortedIDs() {
		enabled, err := r.store.Enabled(ctx, id)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !enabled {
			continue
		}
		if err := r.runHook(ctx, r.features[id], transitionShutdown); err != nil {
			r.log.Warn("Feature failed to shut down", zap.String("id", id), zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
