package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveDecode(3, 10, 1)
	m.ObserveImport(nil, time.Second)
	m.ObserveImport(errors.New("boom"), time.Second)

	if got := testutil.ToFloat64(m.HostsDecoded); got != 3 {
		t.Fatalf("hosts decoded = %v", got)
	}
	if got := testutil.ToFloat64(m.PortsDecoded); got != 10 {
		t.Fatalf("ports decoded = %v", got)
	}
	if got := testutil.ToFloat64(m.HostFailures); got != 1 {
		t.Fatalf("host failures = %v", got)
	}
	if got := testutil.ToFloat64(m.Imports.WithLabelValues("ok")); got != 1 {
		t.Fatalf("ok imports = %v", got)
	}
	if got := testutil.ToFloat64(m.Imports.WithLabelValues("error")); got != 1 {
		t.Fatalf("error imports = %v", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveDecode(1, 1, 1)
	m.ObserveImport(nil, time.Millisecond)
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveDecode(2, 0, 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "nmaphosts_hosts_decoded_total 2") {
		t.Fatalf("metric missing from output:\n%s", body)
	}
}
