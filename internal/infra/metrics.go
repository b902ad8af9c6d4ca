package infra

import (
	"math/big"
	"net/http"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the desk's operational counters in Prometheus format.
// Each instance owns its registry, so tests can build as many as they
// want without collector name collisions.
type Metrics struct {
	registry *prometheus.Registry

	commands     *prometheus.CounterVec
	failures     *prometheus.CounterVec
	tokensSold   prometheus.Counter
	tokensBought prometheus.Counter
	feedClients  prometheus.Gauge
	coverageBps  prometheus.Gauge
}

// NewMetrics builds the collector set and registers it.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "desk_commands_total", Help: "Commands processed by the sequencer"},
			[]string{"kind", "outcome"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "desk_trade_failures_total", Help: "Rejected commands by failure reason"},
			[]string{"reason"},
		),
		tokensSold: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "desk_tokens_sold_total", Help: "Tokens sold to buyers"},
		),
		tokensBought: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "desk_tokens_bought_back_total", Help: "Tokens bought back from sellers"},
		),
		feedClients: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "desk_feed_clients", Help: "Connected feed subscribers"},
		),
		coverageBps: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "desk_solvency_coverage_bps", Help: "Wei reserve over obligation, in basis points"},
		),
	}
	m.registry.MustRegister(m.commands, m.failures, m.tokensSold, m.tokensBought, m.feedClients, m.coverageBps)
	return m
}

// CommandOK counts a committed command.
func (m *Metrics) CommandOK(kind string) {
	m.commands.WithLabelValues(kind, "ok").Inc()
}

// CommandFailed counts a rejected command and its failure reason.
func (m *Metrics) CommandFailed(kind, reason string) {
	m.commands.WithLabelValues(kind, "failed").Inc()
	m.failures.WithLabelValues(reason).Inc()
}

// AddTokensSold adds to the sold-to-buyers volume counter.
func (m *Metrics) AddTokensSold(amount *uint256.Int) {
	m.tokensSold.Add(approx(amount))
}

// AddTokensBoughtBack adds to the bought-back volume counter.
func (m *Metrics) AddTokensBoughtBack(amount *uint256.Int) {
	m.tokensBought.Add(approx(amount))
}

// FeedClientConnected increments the subscriber gauge.
func (m *Metrics) FeedClientConnected() {
	m.feedClients.Inc()
}

// FeedClientGone decrements the subscriber gauge.
func (m *Metrics) FeedClientGone() {
	m.feedClients.Dec()
}

// SetCoverageBps publishes the latest solvency coverage reading.
func (m *Metrics) SetCoverageBps(bps uint64) {
	m.coverageBps.Set(float64(bps))
}

// approx converts a 256-bit amount to the nearest float64. Counters are
// operator telemetry; exact values live in the journal.
func approx(x *uint256.Int) float64 {
	if x == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(x.ToBig()).Float64()
	return f
}

// Registry exposes the underlying registry (for scraping in tests).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the scrape endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts the scrape endpoint on addr.
func (m *Metrics) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
