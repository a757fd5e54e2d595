// Package promtest parses and searches prometheus metrics in tests.
package promtest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// FromHTTPResponse decodes the metric families served in r, using the
// response headers to pick the exposition format. The body is always closed.
func FromHTTPResponse(r *http.Response) ([]*dto.MetricFamily, error) {
	defer r.Body.Close()

	dec := expfmt.NewDecoder(r.Body, expfmt.ResponseFormat(r.Header))
	var mfs []*dto.MetricFamily
	for {
		mf := new(dto.MetricFamily)
		err := dec.Decode(mf)
		if errors.Is(err, io.EOF) {
			return mfs, nil
		}
		if err != nil {
			return nil, err
		}
		mfs = append(mfs, mf)
	}
}

// MustScrape GETs url and decodes the metric families it serves, failing
// tb on transport or decoding errors or a non-200 response.
func MustScrape(tb testing.TB, url string) []*dto.MetricFamily {
	tb.Helper()

	resp, err := http.Get(url)
	if err != nil {
		tb.Fatalf("scraping %s: %v", url, err)
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		tb.Fatalf("scraping %s: unexpected status %s", url, resp.Status)
		return nil
	}

	mfs, err := FromHTTPResponse(resp)
	if err != nil {
		tb.Fatalf("decoding metrics from %s: %v", url, err)
		return nil
	}
	return mfs
}

// MustGather gathers from g, failing tb on error.
func MustGather(tb testing.TB, g prometheus.Gatherer) []*dto.MetricFamily {
	tb.Helper()

	mfs, err := g.Gather()
	if err != nil {
		tb.Fatalf("gathering metrics: %v", err)
		return nil
	}
	return mfs
}

// FindMetric returns the metric in family name whose labels are exactly
// labels, or nil.
func FindMetric(mfs []*dto.MetricFamily, name string, labels map[string]string) *dto.Metric {
	if fam := findFamily(mfs, name); fam != nil {
		return findInFamily(fam, labels)
	}
	return nil
}

// MustFindMetric is FindMetric that fails tb when nothing matches, logging
// the families or label sets that were available instead.
func MustFindMetric(tb testing.TB, mfs []*dto.MetricFamily, name string, labels map[string]string) *dto.Metric {
	tb.Helper()

	fam := findFamily(mfs, name)
	if fam == nil {
		names := make([]string, 0, len(mfs))
		for _, mf := range mfs {
			names = append(names, mf.GetName())
		}
		sort.Strings(names)
		tb.Fatalf("metric family %q not found; have:\n\t%s", name, strings.Join(names, "\n\t"))
		return nil
	}

	m := findInFamily(fam, labels)
	if m == nil {
		sets := make([]string, 0, len(fam.Metric))
		for _, m := range fam.Metric {
			sets = append(sets, labelString(m))
		}
		tb.Fatalf("no metric in %q with labels %v; have:\n\t%s", name, labels, strings.Join(sets, "\n\t"))
		return nil
	}
	return m
}

// Value returns the sample of a counter, gauge or untyped metric. Counters
// decoded from the text format arrive untyped.
func Value(m *dto.Metric) float64 {
	switch {
	case m.GetCounter() != nil:
		return m.GetCounter().GetValue()
	case m.GetGauge() != nil:
		return m.GetGauge().GetValue()
	case m.GetUntyped() != nil:
		return m.GetUntyped().GetValue()
	}
	return 0
}

func findFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func findInFamily(fam *dto.MetricFamily, labels map[string]string) *dto.Metric {
next:
	for _, m := range fam.Metric {
		if len(m.Label) != len(labels) {
			continue
		}
		for _, l := range m.Label {
			if v, ok := labels[l.GetName()]; !ok || v != l.GetValue() {
				continue next
			}
		}
		return m
	}
	return nil
}

func labelString(m *dto.Metric) string {
	pairs := make([]string, len(m.Label))
	for i, l := range m.Label {
		pairs[i] = fmt.Sprintf("%s=%q", l.GetName(), l.GetValue())
	}
	return "{" + strings.Join(pairs, ",") + "}"
}
