package feature

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/influxdata/sitefeatures/kit/feature/lifetime"
	ierrors "github.com/influxdata/sitefeatures/kit/platform/errors"
	"gopkg.in/yaml.v3"
)

// Flag declares the default state of one feature flag.
type Flag struct {
	// Key is the feature id the flag belongs to.
	Key         string `yaml:"key"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// Owner is an individual or team responsible for the flag.
	Owner    string            `yaml:"owner"`
	Default  bool              `yaml:"default"`
	Lifetime lifetime.Lifetime `yaml:"lifetime"`
}

// Decode parses a YAML list of flags. Keys must be present and unique.
func Decode(r io.Reader) ([]Flag, error) {
	var flags []Flag
	if err := yaml.NewDecoder(r).Decode(&flags); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ierrors.Error{
			Code: ierrors.EInvalid,
			Msg:  "unable to parse flag defaults",
			Err:  err,
		}
	}

	seen := make(map[string]int, len(flags))
	for i, f := range flags {
		if f.Key == "" {
			return nil, &ierrors.Error{
				Code: ierrors.EInvalid,
				Msg:  fmt.Sprintf("flag %d has no key", i),
			}
		}
		if j, ok := seen[f.Key]; ok {
			return nil, &ierrors.Error{
				Code: ierrors.EInvalid,
				Msg:  fmt.Sprintf("flag %q declared twice (entries %d and %d)", f.Key, j, i),
			}
		}
		seen[f.Key] = i
	}
	return flags, nil
}

// ReadFile decodes the flags in the file at path.
func ReadFile(path string) ([]Flag, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Defaults maps each flag's key to its default.
func Defaults(flags []Flag) map[string]bool {
	m := make(map[string]bool, len(flags))
	for _, f := range flags {
		m[f.Key] = f.Default
	}
	return m
}
