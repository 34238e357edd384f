// Package monitoring exposes engine metrics over a Prometheus
// endpoint.
package monitoring

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus collectors. All collectors are
// registered against the registry passed to NewMetrics, so tests can
// use isolated registries.
type Metrics struct {
	registry *prometheus.Registry

	cyclesTotal    prometheus.Counter
	cycleDuration  prometheus.Histogram
	timeoutsTotal  *prometheus.CounterVec
	tradesTotal    *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	openPositions  prometheus.Gauge
	observationOn  prometheus.Gauge
	lastPrice      *prometheus.GaugeVec
	entryScore     *prometheus.GaugeVec
	realizedPnLPct *prometheus.GaugeVec
}

// NewMetrics creates and registers the engine collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		cyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ver3_cycles_total",
			Help: "Total number of completed trading cycles",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ver3_cycle_duration_seconds",
			Help:    "Wall-clock duration of trading cycles",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		timeoutsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ver3_coin_timeouts_total",
			Help: "Per-coin analysis tasks that exceeded their timeout",
		}, []string{"coin"}),
		tradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ver3_trades_total",
			Help: "Total number of executed orders",
		}, []string{"coin", "side", "reason"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ver3_errors_total",
			Help: "Total number of errors by type",
		}, []string{"type"}),
		openPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ver3_open_positions",
			Help: "Number of currently open positions",
		}),
		observationOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ver3_observation_mode",
			Help: "1 while new entries are suppressed after consecutive losses",
		}),
		lastPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ver3_last_price",
			Help: "Last observed close price per coin",
		}, []string{"coin"}),
		entryScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ver3_entry_score",
			Help: "Entry score from the most recent analysis per coin",
		}, []string{"coin"}),
		realizedPnLPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ver3_last_realized_pnl_pct",
			Help: "Percent PnL of the most recent realized close per coin",
		}, []string{"coin"}),
	}

	registry.MustRegister(
		m.cyclesTotal, m.cycleDuration, m.timeoutsTotal, m.tradesTotal,
		m.errorsTotal, m.openPositions, m.observationOn, m.lastPrice,
		m.entryScore, m.realizedPnLPct,
	)
	return m
}

// ObserveCycle records one completed cycle.
func (m *Metrics) ObserveCycle(elapsed time.Duration, openPositions int, observation bool) {
	m.cyclesTotal.Inc()
	m.cycleDuration.Observe(elapsed.Seconds())
	m.openPositions.Set(float64(openPositions))
	if observation {
		m.observationOn.Set(1)
	} else {
		m.observationOn.Set(0)
	}
}

// RecordTimeout marks one per-coin task timeout.
func (m *Metrics) RecordTimeout(coin string) {
	m.timeoutsTotal.WithLabelValues(coin).Inc()
}

// RecordTrade records one executed order.
func (m *Metrics) RecordTrade(coin, side, reason string) {
	m.tradesTotal.WithLabelValues(coin, side, reason).Inc()
}

// RecordError counts one error by type.
func (m *Metrics) RecordError(errType string) {
	m.errorsTotal.WithLabelValues(errType).Inc()
}

// ObserveAnalysis records per-coin analysis outputs.
func (m *Metrics) ObserveAnalysis(coin string, price, score float64) {
	m.lastPrice.WithLabelValues(coin).Set(price)
	m.entryScore.WithLabelValues(coin).Set(score)
}

// ObserveRealized records the percent result of a realized close.
func (m *Metrics) ObserveRealized(coin string, pnlPct float64) {
	m.realizedPnLPct.WithLabelValues(coin).Set(pnlPct)
}

// Handler returns the scrape endpoint for this metrics set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs the metrics HTTP server until ctx is canceled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
