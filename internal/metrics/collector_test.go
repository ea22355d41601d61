package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounter_SameKeyReturnsSameInstance(t *testing.T) {
	c := NewMetricsCollector()
	a := c.Counter("tako_test_total", "help", Label("status", "ok"))
	b := c.Counter("tako_test_total", "help", Label("status", "ok"))
	other := c.Counter("tako_test_total", "help", Label("status", "error"))

	a.Inc()
	b.Add(2)
	other.Inc()
	assert.Equal(t, int64(3), a.Value())
	assert.Equal(t, int64(1), other.Value())
}

func TestRender_PrometheusText(t *testing.T) {
	c := NewMetricsCollector()
	c.Counter("tako_dispatch_total", "Dispatches", Label("status", "processed")).Add(4)
	c.Counter("tako_dispatch_total", "Dispatches", Label("status", "locked")).Inc()
	c.Gauge("tako_in_flight", "In flight", "").Set(2)
	h := c.Histogram("tako_latency_seconds", "Latency", Label("backend", "flow"), []float64{1, 0.5})
	h.Observe(0.3)
	h.Observe(0.7)
	h.Observe(9)

	out := c.Render()
	assert.Equal(t, 1, strings.Count(out, "# TYPE tako_dispatch_total counter"))
	assert.Contains(t, out, `tako_dispatch_total{status="processed"} 4`)
	assert.Contains(t, out, `tako_dispatch_total{status="locked"} 1`)
	assert.Contains(t, out, "tako_in_flight 2")
	assert.Contains(t, out, `tako_latency_seconds_bucket{backend="flow",le="0.5"} 1`)
	assert.Contains(t, out, `tako_latency_seconds_bucket{backend="flow",le="1"} 2`)
	assert.Contains(t, out, `tako_latency_seconds_bucket{backend="flow",le="+Inf"} 3`)
	assert.Contains(t, out, `tako_latency_seconds_count{backend="flow"} 3`)
	assert.Less(t, strings.Index(out, `status="locked"`), strings.Index(out, `status="processed"`), "series are sorted")
}

func TestLabel_Escapes(t *testing.T) {
	assert.Equal(t, `user="a\"b\\c\nd"`, Label("user", "a\"b\\c\nd"))
}

func TestHandler_ContentType(t *testing.T) {
	c := NewMetricsCollector()
	rec := httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, "text/plain; version=0.0.4; charset=utf-8", rec.Header().Get("Content-Type"))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "tako_uptime_seconds")
}
