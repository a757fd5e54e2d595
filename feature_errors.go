package sitefeatures

import (
	"github.com/influxdata/sitefeatures/kit/platform/errors"
)

// ErrFeatureNotFound is returned when an id has no registered feature.
var ErrFeatureNotFound = &errors.Error{
	Code: errors.ENotFound,
	Msg:  "feature does not exist",
}

// NewFailure is what a lifecycle hook returns to reject a transition.
func NewFailure(reason string) *errors.Error {
	return &errors.Error{
		Code: errors.EConflict,
		Msg:  reason,
	}
}

// IsNotFound reports whether err means the feature id is not registered.
func IsNotFound(err error) bool {
	return errors.ErrorCode(err) == errors.ENotFound
}

// IsFailure reports whether err is a lifecycle hook rejecting a transition.
func IsFailure(err error) bool {
	return errors.ErrorCode(err) == errors.EConflict
}
