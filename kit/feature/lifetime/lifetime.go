package lifetime

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lifetime represents the intended lifetime of the feature flag.
//
// The zero value is Temporary, the most common case, but Permanent
// is included to mark special cases where a flag is not intended
// to be removed, e.g. the status endpoint of a production server.
type Lifetime int

const (
	// Temporary indicates a flag is intended to be removed after a feature is no longer in development.
	Temporary Lifetime = iota
	// Permanent indicates a flag is not intended to be removed.
	Permanent
)

func (l Lifetime) String() string {
	switch l {
	case Permanent:
		return "permanent"
	default:
		return "temporary"
	}
}

// UnmarshalYAML implements yaml.Unmarshaler and interprets a case-insensitive text
// representation as a lifetime constant.
func (l *Lifetime) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}

	switch strings.ToLower(s) {
	case "permanent":
		*l = Permanent
	case "temporary", "":
		*l = Temporary
	default:
		return fmt.Errorf("line %d: unknown lifetime %q", value.Line, s)
	}

	return nil
}

// MarshalYAML writes the lifetime as its lowercase name.
func (l Lifetime) MarshalYAML() (interface{}, error) {
	return l.String(), nil
}
