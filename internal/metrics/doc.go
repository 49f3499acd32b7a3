// Package metrics exposes Prometheus counters and histograms for job
// lifecycles. A Recorder is passed to job controllers as their observer and
// served by the HTTP API at /metrics.
package metrics
