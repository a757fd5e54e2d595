package mock

import (
	"context"
	"net/http"

	"github.com/influxdata/sitefeatures"
)

var _ sitefeatures.Feature = (*Feature)(nil)

// Feature is a mock implementation of sitefeatures.Feature. Hook calls are
// counted so tests can assert how often the registry invoked them.
type Feature struct {
	IDFn          func() string
	SubpathFn     func() string
	NameFn        func() string
	DescriptionFn func() string
	RouterFn      func() http.Handler
	SetupFn       func(ctx context.Context) error
	ShutdownFn    func(ctx context.Context) error

	SetupCalls    int
	ShutdownCalls int
}

// NewFeature returns a mock Feature with the given id whose hooks succeed,
// whose metadata is the sitefeatures defaults and whose router answers 404.
func NewFeature(id string) *Feature {
	return &Feature{
		IDFn:          func() string { return id },
		SubpathFn:     func() string { return sitefeatures.DefaultSubpath },
		NameFn:        func() string { return sitefeatures.DefaultName },
		DescriptionFn: func() string { return sitefeatures.DefaultDescription },
		RouterFn:      func() http.Handler { return http.NotFoundHandler() },
		SetupFn:       func(context.Context) error { return nil },
		ShutdownFn:    func(context.Context) error { return nil },
	}
}

func (f *Feature) ID() string           { return f.IDFn() }
func (f *Feature) Subpath() string      { return f.SubpathFn() }
func (f *Feature) Name() string         { return f.NameFn() }
func (f *Feature) Description() string  { return f.DescriptionFn() }
func (f *Feature) Router() http.Handler { return f.RouterFn() }

// Setup records the call and delegates to SetupFn.
func (f *Feature) Setup(ctx context.Context) error {
	f.SetupCalls++
	return f.SetupFn(ctx)
}

// Shutdown records the call and delegates to ShutdownFn.
func (f *Feature) Shutdown(ctx context.Context) error {
	f.ShutdownCalls++
	return f.ShutdownFn(ctx)
}
