package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/influxdata/sitefeatures"
	"github.com/influxdata/sitefeatures/kit/tracing"
	kithttp "github.com/influxdata/sitefeatures/kit/transport/http"
)

var _ sitefeatures.FeatureService = (*Client)(nil)

// Client talks to the admin API of a running server.
type Client struct {
	// Addr is the base URL of the server, e.g. http://localhost:8080.
	Addr string
	// HTTPClient defaults to a client with a ten second timeout.
	HTTPClient *http.Client
}

// NewClient returns a Client for the server at addr.
func NewClient(addr string) *Client {
	return &Client{
		Addr:       strings.TrimSuffix(addr, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) featuresURL(id string) string {
	u := c.Addr + prefixFeatures
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	return u
}

func (c *Client) do(ctx context.Context, method, u string, body, v interface{}) error {
	span, ctx := tracing.StartSpanFromContext(ctx, "Client."+method)
	defer span.Finish()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	tracing.InjectToHTTPRequest(span, req)

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		tracing.LogError(span, err)
		return err
	}
	defer resp.Body.Close()

	if err := kithttp.CheckError(resp); err != nil {
		tracing.LogError(span, err)
		return err
	}
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding %s response: %w", u, err)
	}
	return nil
}

// FindFeatures lists every feature on the server.
func (c *Client) FindFeatures(ctx context.Context) ([]*sitefeatures.FeatureInfo, error) {
	var resp featuresResponse
	if err := c.do(ctx, http.MethodGet, c.featuresURL(""), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Features, nil
}

// FindFeature returns one feature from the server.
func (c *Client) FindFeature(ctx context.Context, id string) (*sitefeatures.FeatureInfo, error) {
	var f sitefeatures.FeatureInfo
	if err := c.do(ctx, http.MethodGet, c.featuresURL(id), nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// SetEnabled toggles a feature on the server.
func (c *Client) SetEnabled(ctx context.Context, id string, enabled bool) error {
	body := featureUpdate{Enabled: &enabled}
	return c.do(ctx, http.MethodPatch, c.featuresURL(id), body, nil)
}
