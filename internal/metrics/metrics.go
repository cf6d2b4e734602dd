// Package metrics exposes run counters through a private Prometheus registry.
// A scheduled run has no scrape endpoint, so the registry is written to a
// node_exporter textfile at the end of the run.
package metrics

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wakareadme"

// Recorder is safe for concurrent use. A nil Recorder records nothing.
type Recorder struct {
	reg *prometheus.Registry

	requests  *prometheus.CounterVec
	retries   *prometheus.CounterVec
	waits     prometheus.Counter
	cacheHits *prometheus.CounterVec
	stages    *prometheus.GaugeVec
	changed   prometheus.Gauge
	lastRun   prometheus.Gauge
}

func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_requests_total",
			Help:      "Remote API requests by resource and HTTP status.",
		}, []string{"resource", "status"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_retries_total",
			Help:      "Retried remote requests by resource and reason.",
		}, []string{"resource", "reason"}),
		waits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_wait_seconds_total",
			Help:      "Seconds spent waiting for rate limits to reset.",
		}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commit_cache_lookups_total",
			Help:      "Commit cache lookups by result.",
		}, []string{"result"}),
		stages: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of the last run's pipeline stages.",
		}, []string{"stage"}),
		changed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "document_changed",
			Help:      "1 when the last run rewrote the document.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
	r.reg.MustRegister(r.requests, r.retries, r.waits, r.cacheHits, r.stages, r.changed, r.lastRun)
	return r
}

func (r *Recorder) ObserveRequest(resource string, status int) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(resource, strconv.Itoa(status)).Inc()
}

func (r *Recorder) ObserveRetry(resource, reason string) {
	if r == nil {
		return
	}
	r.retries.WithLabelValues(resource, reason).Inc()
}

func (r *Recorder) ObserveWait(d time.Duration) {
	if r == nil || d <= 0 {
		return
	}
	r.waits.Add(d.Seconds())
}

func (r *Recorder) ObserveCache(hit bool) {
	if r == nil {
		return
	}
	if hit {
		r.cacheHits.WithLabelValues("hit").Inc()
		return
	}
	r.cacheHits.WithLabelValues("miss").Inc()
}

func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stages.WithLabelValues(stage).Set(d.Seconds())
}

func (r *Recorder) SetDocumentChanged(changed bool) {
	if r == nil {
		return
	}
	if changed {
		r.changed.Set(1)
	} else {
		r.changed.Set(0)
	}
}

func (r *Recorder) MarkFinished(t time.Time) {
	if r == nil {
		return
	}
	r.lastRun.Set(float64(t.Unix()))
}

// Gatherer exposes the registry, mainly for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

// WriteTextfile writes the registry in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, r.reg)
}
