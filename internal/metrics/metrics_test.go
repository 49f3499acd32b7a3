package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"reel/internal/job"
)

func newTestRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	return newRecorder(reg, reg)
}

func TestRecorderTracksLifecycle(t *testing.T) {
	r := newTestRecorder()

	r.JobStarted(job.KindMerge)
	r.JobStarted(job.KindMerge)
	if got := testutil.ToFloat64(r.active.WithLabelValues("merge")); got != 2 {
		t.Fatalf("active merges = %v, want 2", got)
	}

	r.JobFinished(job.KindMerge, job.StateCompleted, 2*time.Second)
	r.JobFinished(job.KindMerge, job.StateCancelled, time.Second)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"started", testutil.ToFloat64(r.started.WithLabelValues("merge")), 2},
		{"active", testutil.ToFloat64(r.active.WithLabelValues("merge")), 0},
		{"completed", testutil.ToFloat64(r.finished.WithLabelValues("merge", "completed")), 1},
		{"cancelled", testutil.ToFloat64(r.finished.WithLabelValues("merge", "cancelled")), 1},
		{"failed", testutil.ToFloat64(r.finished.WithLabelValues("merge", "failed")), 0},
	}
	for _, tc := range tests {
		if tc.got != tc.want {
			t.Errorf("%s = %v, want %v", tc.name, tc.got, tc.want)
		}
	}
	if n := testutil.CollectAndCount(r.duration); n != 2 {
		t.Fatalf("expected 2 duration series, got %d", n)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := newTestRecorder()
	r.JobStarted(job.KindScan)
	r.JobFinished(job.KindScan, job.StateCompleted, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`reel_jobs_started_total{kind="scan"} 1`,
		`reel_jobs_finished_total{kind="scan",state="completed"} 1`,
		"reel_job_duration_seconds_bucket",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}
}

func TestNewRecorderRegistersIndependently(t *testing.T) {
	a := NewRecorder()
	b := NewRecorder()
	a.JobStarted(job.KindScan)
	if got := testutil.ToFloat64(b.started.WithLabelValues("scan")); got != 0 {
		t.Fatalf("recorders share state: %v", got)
	}
}
