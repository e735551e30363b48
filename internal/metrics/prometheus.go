//go:build !noprom

package metrics

import (
	"fmt"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

type promRecorder struct {
	storeTotal   *prom.CounterVec
	storeSeconds *prom.HistogramVec
	stageTotal   *prom.CounterVec
	stageSeconds *prom.HistogramVec
	toolTotal    *prom.CounterVec
	toolSeconds  *prom.HistogramVec
	llmRetries   *prom.CounterVec
	buildItems   *prom.CounterVec
	poolInUse    prom.Gauge
	poolIdle     prom.Gauge
	stmtCache    *prom.CounterVec
}

func (p *promRecorder) IncStoreOpTotal(op string, success bool) {
	p.storeTotal.WithLabelValues(op, fmt.Sprintf("%t", success)).Inc()
}

func (p *promRecorder) ObserveStoreOpSeconds(op string, success bool, seconds float64) {
	p.storeSeconds.WithLabelValues(op, fmt.Sprintf("%t", success)).Observe(seconds)
}

func (p *promRecorder) IncStageTotal(stage string, success bool) {
	p.stageTotal.WithLabelValues(stage, fmt.Sprintf("%t", success)).Inc()
}

func (p *promRecorder) ObserveStageSeconds(stage string, success bool, seconds float64) {
	p.stageSeconds.WithLabelValues(stage, fmt.Sprintf("%t", success)).Observe(seconds)
}

func (p *promRecorder) IncToolTotal(tool string, success bool) {
	p.toolTotal.WithLabelValues(tool, fmt.Sprintf("%t", success)).Inc()
}

func (p *promRecorder) ObserveToolSeconds(tool string, success bool, seconds float64) {
	p.toolSeconds.WithLabelValues(tool, fmt.Sprintf("%t", success)).Observe(seconds)
}

func (p *promRecorder) IncLLMRetry(provider string) {
	p.llmRetries.WithLabelValues(provider).Inc()
}

func (p *promRecorder) AddBuildItems(kind, outcome string, n int) {
	p.buildItems.WithLabelValues(kind, outcome).Add(float64(n))
}

func (p *promRecorder) ObservePoolStats(inUse, idle int) {
	p.poolInUse.Set(float64(inUse))
	p.poolIdle.Set(float64(idle))
}

func (p *promRecorder) IncStmtCacheHit(kind string) {
	p.stmtCache.WithLabelValues(kind, "hit").Inc()
}

func (p *promRecorder) IncStmtCacheMiss(kind string) {
	p.stmtCache.WithLabelValues(kind, "miss").Inc()
}

func newPromRecorder() *promRecorder {
	return &promRecorder{
		storeTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "store_ops_total",
			Help: "Total number of graph store and vector index operations",
		}, []string{"op", "success"}),
		storeSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "store_op_seconds",
			Help:    "Graph store and vector index operation duration in seconds",
			Buckets: prom.DefBuckets,
		}, []string{"op", "success"}),
		stageTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "qa_stages_total",
			Help: "Total number of question pipeline stage executions",
		}, []string{"stage", "success"}),
		stageSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "qa_stage_seconds",
			Help:    "Question pipeline stage duration in seconds",
			Buckets: prom.DefBuckets,
		}, []string{"stage", "success"}),
		toolTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "tool_calls_total",
			Help: "Total number of tool handler calls",
		}, []string{"tool", "success"}),
		toolSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "tool_call_seconds",
			Help:    "Tool handler duration in seconds",
			Buckets: prom.DefBuckets,
		}, []string{"tool", "success"}),
		llmRetries: prom.NewCounterVec(prom.CounterOpts{
			Name: "llm_retries_total",
			Help: "Total number of retried language model calls",
		}, []string{"provider"}),
		buildItems: prom.NewCounterVec(prom.CounterOpts{
			Name: "graph_build_items_total",
			Help: "Nodes, edges and vectors processed by graph builds",
		}, []string{"kind", "outcome"}),
		poolInUse: prom.NewGauge(prom.GaugeOpts{
			Name: "db_pool_in_use",
			Help: "Open database connections currently in use",
		}),
		poolIdle: prom.NewGauge(prom.GaugeOpts{
			Name: "db_pool_idle",
			Help: "Idle database connections",
		}),
		stmtCache: prom.NewCounterVec(prom.CounterOpts{
			Name: "db_stmt_cache_total",
			Help: "Prepared statement cache lookups",
		}, []string{"kind", "result"}),
	}
}

func enablePrometheus(addr string) error {
	registry := prom.NewRegistry()
	p := newPromRecorder()
	registry.MustRegister(p.storeTotal, p.storeSeconds, p.stageTotal, p.stageSeconds,
		p.toolTotal, p.toolSeconds, p.llmRetries, p.buildItems, p.poolInUse, p.poolIdle, p.stmtCache)
	SetRecorder(p)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	go func() { _ = http.ListenAndServe(addr, mux) }()
	return nil
}
