package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/influxdata/sitefeatures/kit/platform/errors"
)

// PlatformErrorCodeHeader shows the error code of platform error.
const PlatformErrorCodeHeader = "X-Platform-Error-Code"

// ErrorHandler is the error handler in http package.
type ErrorHandler int

// HandleHTTPError encodes err with the appropriate status code and format,
// sets the X-Platform-Error-Code header and writes the response.
func (h ErrorHandler) HandleHTTPError(ctx context.Context, err error, w http.ResponseWriter) {
	if err == nil {
		return
	}

	code := errors.ErrorCode(err)
	w.Header().Set(PlatformErrorCodeHeader, code)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(ErrorCodeToStatusCode(ctx, code))

	var e struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	e.Code = code
	if _, ok := err.(*errors.Error); ok {
		e.Message = err.Error()
	} else {
		e.Message = "An internal error has occurred"
	}
	b, _ := json.Marshal(e)
	_, _ = w.Write(b)
}

// ErrorCodeToStatusCode maps a platform error code to an HTTP status code.
func ErrorCodeToStatusCode(ctx context.Context, code string) int {
	if st, ok := httpStatusCodes[code]; ok {
		return st
	}
	return http.StatusInternalServerError
}

var httpStatusCodes = map[string]int{
	errors.EInternal:         http.StatusInternalServerError,
	errors.ENotImplemented:   http.StatusNotImplemented,
	errors.EInvalid:          http.StatusBadRequest,
	errors.EEmptyValue:       http.StatusBadRequest,
	errors.EConflict:         http.StatusConflict,
	errors.ENotFound:         http.StatusNotFound,
	errors.EUnavailable:      http.StatusServiceUnavailable,
	errors.EMethodNotAllowed: http.StatusMethodNotAllowed,
}

// StatusCodeToErrorCode maps an HTTP status code to the closest platform
// error code.
func StatusCodeToErrorCode(statusCode int) string {
	for code, st := range httpStatusCodes {
		if st == statusCode && code != errors.EEmptyValue {
			return code
		}
	}
	return errors.EInternal
}

// CheckError reads the http.Response and returns an error if one exists.
// Platform error bodies are decoded into *errors.Error; anything else
// becomes a generic error carrying the first line of the body.
func CheckError(resp *http.Response) error {
	switch resp.StatusCode / 100 {
	case 2:
		return nil
	case 4, 5:
	default:
		return &errors.Error{
			Code: errors.EInternal,
			Msg:  fmt.Sprintf("unexpected status code: %s", resp.Status),
		}
	}

	perr := &errors.Error{
		Code: resp.Header.Get(PlatformErrorCodeHeader),
	}
	if perr.Code == "" {
		perr.Code = StatusCodeToErrorCode(resp.StatusCode)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		perr.Msg = "failed to read error response"
		perr.Err = err
		return perr
	}

	mediatype, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediatype != "application/json" {
		perr.Msg = firstLine(b)
		return perr
	}

	code := perr.Code
	if err := json.Unmarshal(b, perr); err != nil {
		perr.Msg = fmt.Sprintf("attempted to unmarshal error as JSON but failed: %q", err)
		perr.Err = errors.NewError(errors.WithErrorMsg(firstLine(b)))
	}
	if perr.Code == "" {
		perr.Code = code
	}
	return perr
}

func firstLine(b []byte) string {
	line, _, _ := strings.Cut(string(b), "\n")
	return strings.TrimSpace(line)
}
