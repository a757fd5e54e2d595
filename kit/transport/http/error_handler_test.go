package http_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/influxdata/sitefeatures/kit/platform/errors"
	kithttp "github.com/influxdata/sitefeatures/kit/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeError(t *testing.T) {
	ctx := context.TODO()

	w := httptest.NewRecorder()

	kithttp.ErrorHandler(0).HandleHTTPError(ctx, nil, w)

	if w.Code != 200 {
		t.Errorf("expected status code 200, got: %d", w.Code)
	}
}

func TestEncodeErrorWithError(t *testing.T) {
	ctx := context.TODO()
	err := &errors.Error{
		Code: errors.EInternal,
		Msg:  "an error occurred",
		Err:  fmt.Errorf("there's an error here, be aware"),
	}

	w := httptest.NewRecorder()

	kithttp.ErrorHandler(0).HandleHTTPError(ctx, err, w)

	if w.Code != 500 {
		t.Errorf("expected status code 500, got: %d", w.Code)
	}

	errHeader := w.Header().Get("X-Platform-Error-Code")
	if errHeader != errors.EInternal {
		t.Errorf("expected X-Platform-Error-Code: %s, got: %s", errors.EInternal, errHeader)
	}

	// The handler flattens the message so the nested error is not
	// recoverable from the response.
	pe := kithttp.CheckError(w.Result()).(*errors.Error)
	if want, got := errors.EInternal, pe.Code; want != got {
		t.Errorf("unexpected code -want/+got:\n\t- %q\n\t+ %q", want, got)
	}
	if want, got := "an error occurred: there's an error here, be aware", pe.Msg; want != got {
		t.Errorf("unexpected message -want/+got:\n\t- %q\n\t+ %q", want, got)
	}
}

func TestEncodeErrorThirdParty(t *testing.T) {
	w := httptest.NewRecorder()
	kithttp.ErrorHandler(0).HandleHTTPError(context.TODO(), fmt.Errorf("disk on fire"), w)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk on fire")
}

func TestErrorCodeToStatusCode(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{code: errors.EConflict, want: http.StatusConflict},
		{code: errors.ENotFound, want: http.StatusNotFound},
		{code: errors.EInvalid, want: http.StatusBadRequest},
		{code: errors.EUnavailable, want: http.StatusServiceUnavailable},
		{code: errors.EInternal, want: http.StatusInternalServerError},
		{code: "made up", want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, kithttp.ErrorCodeToStatusCode(context.TODO(), tt.code))
		})
	}
}

func TestStatusCodeToErrorCode(t *testing.T) {
	assert.Equal(t, errors.EConflict, kithttp.StatusCodeToErrorCode(http.StatusConflict))
	assert.Equal(t, errors.EInvalid, kithttp.StatusCodeToErrorCode(http.StatusBadRequest))
	assert.Equal(t, errors.EInternal, kithttp.StatusCodeToErrorCode(http.StatusTeapot))
}

func TestCheckError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		header      string
		body        string
		wantNil     bool
		wantCode    string
		wantMsg     string
	}{
		{
			name:    "success",
			status:  http.StatusNoContent,
			wantNil: true,
		},
		{
			name:        "platform error",
			status:      http.StatusConflict,
			contentType: "application/json; charset=utf-8",
			header:      errors.EConflict,
			body:        `{"code":"conflict","message":"exporter unreachable"}`,
			wantCode:    errors.EConflict,
			wantMsg:     "exporter unreachable",
		},
		{
			name:        "plain text without header",
			status:      http.StatusNotFound,
			contentType: "text/plain",
			body:        "404 page not found\nmore",
			wantCode:    errors.ENotFound,
			wantMsg:     "404 page not found",
		},
		{
			name:        "malformed json",
			status:      http.StatusBadGateway,
			contentType: "application/json",
			body:        "<html>",
			wantCode:    errors.EInternal,
		},
		{
			name:     "redirect",
			status:   http.StatusFound,
			wantCode: errors.EInternal,
			wantMsg:  "unexpected status code: 302 Found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{
				Status:     fmt.Sprintf("%d %s", tt.status, http.StatusText(tt.status)),
				StatusCode: tt.status,
				Header:     http.Header{},
				Body:       io.NopCloser(strings.NewReader(tt.body)),
			}
			if tt.contentType != "" {
				resp.Header.Set("Content-Type", tt.contentType)
			}
			if tt.header != "" {
				resp.Header.Set(kithttp.PlatformErrorCodeHeader, tt.header)
			}

			err := kithttp.CheckError(resp)
			if tt.wantNil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errors.ErrorCode(err))
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, err.(*errors.Error).Msg)
			}
		})
	}
}
