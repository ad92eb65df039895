package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"coherence/pkg/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	MetricsNamespace = "coherence"

	subsystem = "Metrics"
)

// Recorder holds the coherence collectors on a private registry so several
// runs in one process do not collide.
type Recorder struct {
	registry *prometheus.Registry

	stepsTotal       *prometheus.CounterVec
	scenariosTotal   *prometheus.CounterVec
	pollsTotal       *prometheus.CounterVec
	scenarioDuration *prometheus.HistogramVec
}

// NewRecorder creates a recorder with its own registry. Go runtime and
// process collectors are registered alongside the coherence metrics.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		stepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "steps_total",
			Help:      "Count of terminated steps by outcome",
		}, []string{
			"scenario",
			"step",
			"result",
		}),

		scenariosTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "scenarios_total",
			Help:      "Count of finished scenarios by outcome",
		}, []string{
			"result",
		}),

		pollsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "polls_total",
			Help:      "Count of portal polls",
		}, []string{
			"scenario",
		}),

		scenarioDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "scenario_duration_seconds",
			Help:      "Wall-clock duration of scenarios",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{
			"result",
		}),
	}
}

// Registry returns the registry holding the recorder's collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordStep counts a terminated step.
func (r *Recorder) RecordStep(scenario, step, result string) {
	r.stepsTotal.WithLabelValues(scenario, step, result).Inc()
}

// RecordPoll counts one portal poll.
func (r *Recorder) RecordPoll(scenario string) {
	r.pollsTotal.WithLabelValues(scenario).Inc()
}

// RecordScenario counts a finished scenario and observes its duration.
func (r *Recorder) RecordScenario(result string, duration time.Duration) {
	r.scenariosTotal.WithLabelValues(result).Inc()
	r.scenarioDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// Handler serves the recorder's registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info(subsystem, "Serving metrics on %s/metrics", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logging.Warn(subsystem, "Metrics server shutdown: %v", err)
		}
		return nil
	}
}
