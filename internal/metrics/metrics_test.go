package metrics_test

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/JaimeStill/gather/graph"
	"github.com/JaimeStill/gather/internal/metrics"
	"github.com/JaimeStill/gather/pkg/cache"
)

var (
	_ graph.Observer = (*metrics.Metrics)(nil)
	_ cache.Observer = (*metrics.Metrics)(nil)
)

func TestObservers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWith(reg, reg)

	m.StepCompleted("gather", "fetch", "classify", 20*time.Millisecond)
	m.StepCompleted("gather", "fetch", "classify", 30*time.Millisecond)
	m.RunCompleted("gather", &graph.Outcome{Status: graph.StatusFailure, Reason: graph.ReasonTimeout, Steps: 4, Duration: time.Second})
	m.Lookup("fetch", cache.ResultHit)
	m.Computed("classify", time.Millisecond, errors.New("boom"))

	n, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatal(err)
	}
	if n != 8 {
		t.Errorf("series: got %d, want 8", n)
	}

	expected := `
# HELP gather_graph_steps_total Step invocations by graph, step and followed edge.
# TYPE gather_graph_steps_total counter
gather_graph_steps_total{edge="classify",graph="gather",step="fetch"} 2
# HELP gather_graph_runs_total Completed runs by status and failure reason.
# TYPE gather_graph_runs_total counter
gather_graph_runs_total{graph="gather",reason="timeout",status="failure"} 1
# HELP gather_cache_lookups_total Cache lookups by adapter operation and result.
# TYPE gather_cache_lookups_total counter
gather_cache_lookups_total{op="fetch",result="hit"} 1
# HELP gather_cache_computations_total Adapter calls made on cache misses by operation and outcome.
# TYPE gather_cache_computations_total counter
gather_cache_computations_total{op="classify",outcome="failure"} 1
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"gather_graph_steps_total",
		"gather_graph_runs_total",
		"gather_cache_lookups_total",
		"gather_cache_computations_total",
	)
	if err != nil {
		t.Error(err)
	}
}

func TestHandler(t *testing.T) {
	m := metrics.New()
	m.Lookup("registry", cache.ResultMiss)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `gather_cache_lookups_total{op="registry",result="miss"} 1`) {
		t.Errorf("metrics output missing lookup counter:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("runtime collector not registered")
	}
}
