package metrics

import (
	"sync"
	"time"
)

// Package metrics provides a minimal instrumentation interface with a no-op
// default and optional Prometheus-backed implementation enabled via env.

// Config selects the exporter.
type Config struct {
	Prometheus bool   `env:"METRICS_PROMETHEUS"`
	Addr       string `env:"METRICS_ADDR" envDefault:":9090"`
}

// Recorder defines the metrics surface used across the codebase.
type Recorder interface {
	IncStoreOpTotal(op string, success bool)
	ObserveStoreOpSeconds(op string, success bool, seconds float64)
	IncStageTotal(stage string, success bool)
	ObserveStageSeconds(stage string, success bool, seconds float64)
	IncToolTotal(tool string, success bool)
	ObserveToolSeconds(tool string, success bool, seconds float64)
	IncLLMRetry(provider string)
	AddBuildItems(kind string, outcome string, n int)
	ObservePoolStats(inUse, idle int)
	IncStmtCacheHit(kind string)
	IncStmtCacheMiss(kind string)
}

// noopRecorder implements Recorder with no-ops.
type noopRecorder struct{}

func (n *noopRecorder) IncStoreOpTotal(string, bool)                {}
func (n *noopRecorder) ObserveStoreOpSeconds(string, bool, float64) {}
func (n *noopRecorder) IncStageTotal(string, bool)                  {}
func (n *noopRecorder) ObserveStageSeconds(string, bool, float64)   {}
func (n *noopRecorder) IncToolTotal(string, bool)                   {}
func (n *noopRecorder) ObserveToolSeconds(string, bool, float64)    {}
func (n *noopRecorder) IncLLMRetry(string)                          {}
func (n *noopRecorder) AddBuildItems(string, string, int)           {}
func (n *noopRecorder) ObservePoolStats(int, int)                   {}
func (n *noopRecorder) IncStmtCacheHit(string)                      {}
func (n *noopRecorder) IncStmtCacheMiss(string)                     {}

var (
	recMu    sync.RWMutex
	recorder Recorder = &noopRecorder{}
)

// Default returns the current recorder.
func Default() Recorder {
	recMu.RLock()
	defer recMu.RUnlock()
	return recorder
}

// SetRecorder swaps the global recorder implementation.
func SetRecorder(r Recorder) {
	recMu.Lock()
	defer recMu.Unlock()
	recorder = r
}

// TimeOp is a helper to time graph store and vector index operations.
func TimeOp(op string) func(success bool) {
	start := time.Now()
	return func(success bool) {
		dur := time.Since(start).Seconds()
		Default().IncStoreOpTotal(op, success)
		Default().ObserveStoreOpSeconds(op, success, dur)
	}
}

// TimeStage is a helper to time query pipeline stages.
func TimeStage(stage string) func(success bool) {
	start := time.Now()
	return func(success bool) {
		dur := time.Since(start).Seconds()
		Default().IncStageTotal(stage, success)
		Default().ObserveStageSeconds(stage, success, dur)
	}
}

// TimeTool is a helper to time tool handler operations.
func TimeTool(tool string) func(success bool) {
	start := time.Now()
	return func(success bool) {
		dur := time.Since(start).Seconds()
		Default().IncToolTotal(tool, success)
		Default().ObserveToolSeconds(tool, success, dur)
	}
}

// Init enables the Prometheus exporter when cfg.Prometheus is set.
// It starts a small HTTP server on cfg.Addr with /metrics and /healthz.
func Init(cfg Config) error {
	if !cfg.Prometheus {
		return nil
	}
	addr := cfg.Addr
	if addr == "" {
		addr = ":9090"
	}
	return enablePrometheus(addr)
}

// enablePrometheus is provided by build-tagged files.
