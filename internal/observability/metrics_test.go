package observability

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveJob("pair_analysis", "completed", time.Second)
	m.IncEvent("analysisReady")
	m.SetQueueDepth(map[string]int64{"queued": 1})
	if m.Registry() != nil {
		t.Fatalf("nil metrics should have nil registry")
	}
}

func TestMetricsHandlerExposesCounters(t *testing.T) {
	m := NewMetrics()
	m.IncEvent("analysisReady")
	m.ObserveOracleCall("compare", "ok", 200*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `nearby_events_published_total{kind="analysisReady"} 1`) {
		t.Fatalf("missing event counter in output:\n%s", body)
	}
	if !strings.Contains(body, "nearby_oracle_calls_total") {
		t.Fatalf("missing oracle counter in output")
	}
}

func TestInitOTelDisabledIsNoop(t *testing.T) {
	shutdown := InitOTel(context.Background(), logger.Nop(), OtelConfig{})
	if shutdown == nil {
		t.Fatalf("shutdown must never be nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown: %v", err)
	}
}

func TestClampRatio(t *testing.T) {
	for in, want := range map[float64]float64{-1: 0, 0.25: 0.25, 7: 1} {
		if got := clampRatio(in); got != want {
			t.Fatalf("clampRatio(%v)=%v want %v", in, got, want)
		}
	}
}
