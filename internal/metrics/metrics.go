// Package metrics exposes engine outcomes and emitted signals to prometheus.
package metrics

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"smc-signals/internal/models"
)

// Recorder counts analysis outcomes and signals. It satisfies engine.Recorder
// and is safe for concurrent use.
type Recorder struct {
	registry *prometheus.Registry

	AnalysesTotal *prometheus.CounterVec
	SignalsTotal  *prometheus.CounterVec
	Confidence    *prometheus.HistogramVec
	RiskReward    prometheus.Histogram
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		AnalysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "smc_analyses_total", Help: "Analyses run, by outcome"},
			[]string{"symbol", "outcome"},
		),
		SignalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "smc_signals_total", Help: "Signals emitted"},
			[]string{"symbol", "direction"},
		),
		Confidence: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smc_signal_confidence",
				Help:    "Confidence of emitted signals",
				Buckets: prometheus.LinearBuckets(10, 10, 10),
			},
			[]string{"direction"},
		),
		RiskReward: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "smc_signal_risk_reward",
			Help:    "Risk:reward ratio of emitted signals",
			Buckets: []float64{1, 1.5, 2, 2.5, 3, 4, 5},
		}),
	}
	r.registry.MustRegister(r.AnalysesTotal, r.SignalsTotal, r.Confidence, r.RiskReward)
	return r
}

// RecordOutcome counts one analysis.
func (r *Recorder) RecordOutcome(symbol, outcome string) {
	r.AnalysesTotal.WithLabelValues(symbol, outcome).Inc()
}

// RecordSignal counts one emitted signal.
func (r *Recorder) RecordSignal(sig models.Signal) {
	dir := string(sig.Direction)
	r.SignalsTotal.WithLabelValues(sig.Symbol, dir).Inc()
	r.Confidence.WithLabelValues(dir).Observe(float64(sig.Confidence))
	r.RiskReward.Observe(sig.RiskReward)
}

// Registry returns the registry holding the recorder's collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the recorder's metrics.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve binds addr and exposes the recorder at path in the background.
// Bind failures are returned; later serve errors are logged.
func Serve(addr, path string, r *Recorder, logger zerolog.Logger) (*http.Server, error) {
	if path == "" {
		path = "/metrics"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(path, r.Handler())
	srv := &http.Server{Addr: ln.Addr().String(), Handler: mux}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", srv.Addr).Msg("metrics server stopped")
		}
	}()
	return srv, nil
}
