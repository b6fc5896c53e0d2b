package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics holds all Prometheus metrics for the router. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Subgraph metrics
	SubgraphFetchLatency *prometheus.HistogramVec
	SubgraphRetries      *prometheus.CounterVec
	SubgraphRollbacks    *prometheus.CounterVec
	SubgraphPools        *prometheus.GaugeVec

	// Token fee metrics
	TokenFeeProbes    *prometheus.CounterVec
	TokenFeeCacheHits prometheus.Counter

	// Gas metrics
	GasCalcLatency prometheus.Histogram
	PoolLookups    *prometheus.CounterVec
	GasCostUSD     prometheus.Gauge

	// System metrics
	PoolsTracked     prometheus.Gauge
	WebSocketStatus  prometheus.Gauge
	LastBlockSeen    prometheus.Gauge
	BootstrapLatency prometheus.Histogram

	server *http.Server
}

// New creates all metrics and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all metrics and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SubgraphFetchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "router_subgraph_fetch_latency_seconds",
				Help:    "Time to fetch the full pool universe from the subgraph, including retries",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
			},
			[]string{"protocol"},
		),
		SubgraphRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_subgraph_retries_total",
				Help: "Subgraph fetch attempts that failed and were retried",
			},
			[]string{"protocol"},
		),
		SubgraphRollbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_subgraph_rollbacks_total",
				Help: "Retries that rolled the pinned block back because the indexer lagged",
			},
			[]string{"protocol"},
		),
		SubgraphPools: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "router_subgraph_pools",
				Help: "Pools returned by the last subgraph fetch, before and after filtering",
			},
			[]string{"protocol", "stage"},
		),
		TokenFeeProbes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_token_fee_probes_total",
				Help: "On-chain token fee probes by outcome",
			},
			[]string{"outcome"},
		),
		TokenFeeCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "router_token_fee_cache_hits_total",
				Help: "Token fee lookups served from cache",
			},
		),
		GasCalcLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "router_gas_calc_latency_seconds",
				Help:    "Time to convert a route's gas cost into USD, gas token and quote token",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
		),
		PoolLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_pool_lookups_total",
				Help: "Pricing pool lookups by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		GasCostUSD: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "router_reference_gas_cost_usd",
				Help: "USD cost of the reference swap at the latest gas price",
			},
		),
		PoolsTracked: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "router_pools_tracked",
				Help: "Number of pools in the current pool universe",
			},
		),
		WebSocketStatus: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "router_websocket_connected",
				Help: "WebSocket connection status (1=connected, 0=disconnected)",
			},
		),
		LastBlockSeen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "router_last_block_seen",
				Help: "Last block number seen from new heads",
			},
		),
		BootstrapLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "router_bootstrap_latency_seconds",
				Help:    "Time to bootstrap the pool universe",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17 minutes
			},
		),
	}

	reg.MustRegister(
		m.SubgraphFetchLatency,
		m.SubgraphRetries,
		m.SubgraphRollbacks,
		m.SubgraphPools,
		m.TokenFeeProbes,
		m.TokenFeeCacheHits,
		m.GasCalcLatency,
		m.PoolLookups,
		m.GasCostUSD,
		m.PoolsTracked,
		m.WebSocketStatus,
		m.LastBlockSeen,
		m.BootstrapLatency,
	)

	return m
}

// StartServer starts the HTTP server for Prometheus metrics.
func (m *Metrics) StartServer(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	m.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		log.Info().Int("port", port).Str("path", path).Msg("Starting metrics server")
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Metrics server error")
		}
	}()

	return nil
}

// Shutdown gracefully stops the metrics server.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m != nil && m.server != nil {
		return m.server.Shutdown(ctx)
	}
	return nil
}

// RecordSubgraphFetch records a completed subgraph fetch and its pool counts.
func (m *Metrics) RecordSubgraphFetch(protocol string, d time.Duration, fetched, kept int) {
	if m == nil {
		return
	}
	m.SubgraphFetchLatency.WithLabelValues(protocol).Observe(d.Seconds())
	m.SubgraphPools.WithLabelValues(protocol, "fetched").Set(float64(fetched))
	m.SubgraphPools.WithLabelValues(protocol, "kept").Set(float64(kept))
}

// RecordSubgraphRetry counts a retried subgraph attempt.
func (m *Metrics) RecordSubgraphRetry(protocol string, rolledBack bool) {
	if m == nil {
		return
	}
	m.SubgraphRetries.WithLabelValues(protocol).Inc()
	if rolledBack {
		m.SubgraphRollbacks.WithLabelValues(protocol).Inc()
	}
}

// RecordTokenFeeProbe counts a probe as "success" or "failure".
func (m *Metrics) RecordTokenFeeProbe(success bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.TokenFeeProbes.WithLabelValues(outcome).Inc()
}

// RecordTokenFeeCacheHits adds n cache hits.
func (m *Metrics) RecordTokenFeeCacheHits(n int) {
	if m == nil || n == 0 {
		return
	}
	m.TokenFeeCacheHits.Add(float64(n))
}

// RecordGasCalcLatency records the duration of one gas cost computation.
func (m *Metrics) RecordGasCalcLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.GasCalcLatency.Observe(d.Seconds())
}

// RecordPoolLookup counts a pricing pool lookup. kind is usd, native or v2_native.
func (m *Metrics) RecordPoolLookup(kind string, found bool) {
	if m == nil {
		return
	}
	outcome := "absent"
	if found {
		outcome = "found"
	}
	m.PoolLookups.WithLabelValues(kind, outcome).Inc()
}

// SetGasCostUSD sets the reference swap cost.
func (m *Metrics) SetGasCostUSD(usd float64) {
	if m == nil {
		return
	}
	m.GasCostUSD.Set(usd)
}

// SetPoolsTracked sets the current number of tracked pools.
func (m *Metrics) SetPoolsTracked(count int) {
	if m == nil {
		return
	}
	m.PoolsTracked.Set(float64(count))
}

// SetWebSocketConnected sets the WebSocket connection status.
func (m *Metrics) SetWebSocketConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.WebSocketStatus.Set(1)
	} else {
		m.WebSocketStatus.Set(0)
	}
}

// SetLastBlockSeen sets the last block number seen.
func (m *Metrics) SetLastBlockSeen(block uint64) {
	if m == nil {
		return
	}
	m.LastBlockSeen.Set(float64(block))
}

// RecordBootstrapLatency records the bootstrap duration.
func (m *Metrics) RecordBootstrapLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.BootstrapLatency.Observe(d.Seconds())
}
