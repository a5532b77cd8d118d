package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New(nil)

	m.RuleEvaluated("main", true)
	m.RuleEvaluated("main", true)
	m.RuleEvaluated("main", false)
	m.BatchFailed("post")
	m.ObserveApply("main", 5*time.Millisecond)

	if got := testutil.ToFloat64(m.evaluationsTotal.WithLabelValues("main", "match")); got != 2 {
		t.Errorf("match counter = %v", got)
	}
	if got := testutil.ToFloat64(m.evaluationsTotal.WithLabelValues("main", "miss")); got != 1 {
		t.Errorf("miss counter = %v", got)
	}
	if got := testutil.ToFloat64(m.batchFailures.WithLabelValues("post")); got != 1 {
		t.Errorf("failure counter = %v", got)
	}
}

func TestHandlerExposition(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RuleEvaluated("main", true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "anvil_rule_evaluations_total") {
		t.Error("evaluations metric not exposed")
	}
}
