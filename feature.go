package sitefeatures

import (
	"context"
	"net/http"
)

// Defaults reported by features that embed Base.
const (
	DefaultSubpath     = "/"
	DefaultName        = "Unnamed Feature"
	DefaultDescription = "No Description"
)

var (
	// OpSetEnabled represents the operation that toggles a feature.
	OpSetEnabled = "SetEnabled"
	// OpFindFeature represents the operation that looks up a single feature.
	OpFindFeature = "FindFeature"
	// OpFindFeatures represents the operation that lists all features.
	OpFindFeatures = "FindFeatures"
)

// Feature is one optional capability of the server. It contributes a
// routable sub-tree and is activated and deactivated through its lifecycle
// hooks whenever its enabled flag flips.
type Feature interface {
	// ID is the stable, non-empty key of the feature within a registry.
	ID() string
	// Subpath is where the feature's routes are mounted in the composed tree.
	Subpath() string
	Name() string
	Description() string

	// Router returns the feature's own routes. It is called regardless of
	// the feature's enabled state; features gate their own handlers.
	Router() http.Handler

	// Setup transitions the feature from inactive to active.
	Setup(ctx context.Context) error
	// Shutdown transitions the feature from active to inactive.
	Shutdown(ctx context.Context) error
}

// Base supplies the default metadata and a no-op Shutdown. Features embed
// it and override what they need.
type Base struct{}

// Subpath mounts the feature at the root of the composed tree.
func (Base) Subpath() string { return DefaultSubpath }

// Name returns DefaultName.
func (Base) Name() string { return DefaultName }

// Description returns DefaultDescription.
func (Base) Description() string { return DefaultDescription }

// Shutdown does nothing and always succeeds.
func (Base) Shutdown(context.Context) error { return nil }

// FlagStore persists one enabled flag per feature id.
//
// Enabled must answer for ids the store has never seen, returning the
// store's default (conventionally false) and a nil error.
type FlagStore interface {
	Enabled(ctx context.Context, id string) (bool, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error
}

// FeatureInfo is the administrative view of a registered feature.
type FeatureInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Subpath     string `json:"subpath"`
	Enabled     bool   `json:"enabled"`
}

// NewFeatureInfo projects f and its current flag into a FeatureInfo.
func NewFeatureInfo(f Feature, enabled bool) *FeatureInfo {
	return &FeatureInfo{
		ID:          f.ID(),
		Name:        f.Name(),
		Description: f.Description(),
		Subpath:     f.Subpath(),
		Enabled:     enabled,
	}
}

// FeatureService is the administrative surface over a set of features.
type FeatureService interface {
	// FindFeatures returns every registered feature sorted by id.
	FindFeatures(ctx context.Context) ([]*FeatureInfo, error)
	// FindFeature returns a single feature or ErrFeatureNotFound.
	FindFeature(ctx context.Context, id string) (*FeatureInfo, error)
	// SetEnabled flips the feature's flag, running its lifecycle hook.
	SetEnabled(ctx context.Context, id string, enabled bool) error
}
