package testing

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/influxdata/sitefeatures/kit/platform/errors"
)

// errorView is the part of a platform error callers are allowed to rely on.
type errorView struct {
	Code string
	Op   string
	Msg  string
}

func viewOf(err error) *errorView {
	if err == nil {
		return nil
	}
	return &errorView{
		Code: errors.ErrorCode(err),
		Op:   errors.ErrorOp(err),
		Msg:  errors.ErrorMessage(err),
	}
}

// diffPlatformErrors fails t when actual and expected differ in code, op or
// message. Wrapped third party errors are not compared.
func diffPlatformErrors(name string, actual, expected error, t *testing.T) {
	t.Helper()

	if diff := cmp.Diff(viewOf(expected), viewOf(actual)); diff != "" {
		t.Fatalf("%s: unexpected error -want/+got:\n%s", name, diff)
	}
}
