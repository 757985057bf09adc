package metrics

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MarketMetrics struct {
	chainCalls     *prometheus.CounterVec
	chainLatency   *prometheus.HistogramVec
	settlements    *prometheus.CounterVec
	sharesReserved *prometheus.CounterVec
	balanceReads   *prometheus.CounterVec
}

var (
	marketOnce     sync.Once
	marketRegistry *MarketMetrics
)

func Market() *MarketMetrics {
	marketOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			chainCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "reelshare_chain_calls_total",
				Help: "Chain RPC calls by network, method and result.",
			}, []string{"network", "method", "result"}),
			chainLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "reelshare_chain_call_seconds",
				Help:    "Latency of chain RPC calls.",
				Buckets: prometheus.DefBuckets,
			}, []string{"network", "method"}),
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "reelshare_settlements_total",
				Help: "Purchase settlements by purchase type and result.",
			}, []string{"type", "result"}),
			sharesReserved: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "reelshare_shares_reserved_total",
				Help: "Investment shares granted by the share ledger.",
			}, []string{"content"}),
			balanceReads: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "reelshare_balance_reads_total",
				Help: "Balance aggregation entries by network and status.",
			}, []string{"network", "status"}),
		}
		prometheus.MustRegister(
			marketRegistry.chainCalls,
			marketRegistry.chainLatency,
			marketRegistry.settlements,
			marketRegistry.sharesReserved,
			marketRegistry.balanceReads,
		)
	})
	return marketRegistry
}

func (m *MarketMetrics) ObserveChainCall(network, method string, started time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.chainCalls.WithLabelValues(network, method, result).Inc()
	m.chainLatency.WithLabelValues(network, method).Observe(time.Since(started).Seconds())
}

func (m *MarketMetrics) ObserveSettlement(purchaseType, result string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(purchaseType, result).Inc()
}

func (m *MarketMetrics) ObserveSharesReserved(contentID string, shares int64) {
	if m == nil || shares <= 0 {
		return
	}
	m.sharesReserved.WithLabelValues(contentID).Add(float64(shares))
}

func (m *MarketMetrics) ObserveBalanceRead(network, status string) {
	if m == nil {
		return
	}
	m.balanceReads.WithLabelValues(network, status).Inc()
}

// Handler exposes the default registry for gin routers.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
