package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reel/internal/job"
)

// Recorder tracks job lifecycle metrics. It implements job.Observer.
type Recorder struct {
	started  *prometheus.CounterVec
	finished *prometheus.CounterVec
	active   *prometheus.GaugeVec
	duration *prometheus.HistogramVec
	gatherer prometheus.Gatherer
}

// NewRecorder registers job metrics on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newRecorder(reg, reg)
}

func newRecorder(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		started: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reel_jobs_started_total",
				Help: "Total number of jobs started",
			},
			[]string{"kind"},
		),
		finished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reel_jobs_finished_total",
				Help: "Total number of jobs that reached a terminal state",
			},
			[]string{"kind", "state"},
		),
		active: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "reel_jobs_active",
				Help: "Number of jobs currently running",
			},
			[]string{"kind"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "reel_job_duration_seconds",
				Help: "Wall-clock duration of finished jobs in seconds",
				// Scans finish in seconds; long merges run for many minutes.
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
			},
			[]string{"kind", "state"},
		),
		gatherer: gatherer,
	}
}

// JobStarted implements job.Observer.
func (r *Recorder) JobStarted(kind job.Kind) {
	r.started.WithLabelValues(string(kind)).Inc()
	r.active.WithLabelValues(string(kind)).Inc()
}

// JobFinished implements job.Observer.
func (r *Recorder) JobFinished(kind job.Kind, state job.State, elapsed time.Duration) {
	r.active.WithLabelValues(string(kind)).Dec()
	r.finished.WithLabelValues(string(kind), string(state)).Inc()
	r.duration.WithLabelValues(string(kind), string(state)).Observe(elapsed.Seconds())
}

// Handler serves the recorder's registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
