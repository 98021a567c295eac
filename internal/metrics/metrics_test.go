package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsExposition(t *testing.T) {
	m := New()

	m.RunStarted()
	m.ObserveStage("analysis", 120*time.Millisecond)
	m.KernelDecision("ok")
	m.KernelDecision("stop")
	m.RunFinished("stopped")
	m.PersistenceFailure()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("metrics handler status = %d, want 200", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		`mopd_sessions_total{status="stopped"} 1`,
		`mopd_kernel_decisions_total{verdict="ok"} 1`,
		`mopd_kernel_decisions_total{verdict="stop"} 1`,
		`mopd_persistence_failures_total 1`,
		`mopd_active_runs 0`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}

	if !strings.Contains(body, `mopd_stage_duration_seconds_count{agent="analysis"} 1`) {
		t.Error("exposition missing stage duration sample")
	}
}

func TestMetricsIndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.RunStarted()
	a.RunFinished("completed")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, req)

	if strings.Contains(rec.Body.String(), `mopd_sessions_total{status="completed"} 1`) {
		t.Error("registry leaked samples between Metrics instances")
	}
}
