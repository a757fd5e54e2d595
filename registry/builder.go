package registry

import (
	"github.com/influxdata/sitefeatures"
	"go.uber.org/zap"
)

// Builder accumulates features during startup before they are bound to a
// flag store. Ids that collide are replaced by the most recent feature.
type Builder struct {
	log      *zap.Logger
	features map[string]sitefeatures.Feature
}

// NewBuilder returns an empty Builder. Collisions and additions are reported
// to log; a nil log discards them.
func NewBuilder(log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{
		log:      log,
		features: make(map[string]sitefeatures.Feature),
	}
}

// AddFeature registers f under f.ID() and returns the builder for chaining.
func (b *Builder) AddFeature(f sitefeatures.Feature) *Builder {
	id := f.ID()
	b.log.Info("Adding feature",
		zap.String("feature", f.Name()),
		zap.String("id", id))

	if prev, ok := b.features[id]; ok {
		b.log.Warn("Feature overrides previously registered feature",
			zap.String("feature", f.Name()),
			zap.String("id", id),
			zap.String("previous", prev.Name()))
	}
	b.features[id] = f
	return b
}

// Build binds the accumulated features to store. The builder starts over
// empty afterwards so the registry owns its feature map exclusively.
func (b *Builder) Build(store sitefeatures.FlagStore, opts ...Option) *Registry {
	r := &Registry{
		log:      b.log,
		store:    store,
		features: b.features,
	}
	r.metrics = newMetrics(r)
	for _, o := range opts {
		o(r)
	}
	b.features = make(map[string]sitefeatures.Feature)
	return r
}
