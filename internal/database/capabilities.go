package database

import (
	"context"
	"strings"
	"time"
)

// capFlags stores capability detection for the DB handle
type capFlags struct {
	checked    bool
	vectorTopK bool
}

// detectCapabilities probes presence of vector_top_k and records flags.
func (dm *DBManager) detectCapabilities(ctx context.Context) {
	dm.capMu.Lock()
	defer dm.capMu.Unlock()
	if dm.caps.checked {
		return
	}
	// Skip ANN probe for in-memory test URLs to avoid driver quirks
	if strings.Contains(dm.config.URL, "mode=memory") {
		dm.caps = capFlags{checked: true}
		return
	}
	ctx2, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	rows, err := dm.db.QueryContext(ctx2, "SELECT id FROM vector_top_k('idx_vectors_embedding', vector32(?), 1) LIMIT 1", dm.vectorZeroString())
	if rows != nil {
		rows.Close()
	}
	dm.caps = capFlags{checked: true, vectorTopK: err == nil}
	dm.log.Debug("libsql capabilities detected", "vector_top_k", dm.caps.vectorTopK)
}

func (dm *DBManager) hasVectorTopK() bool {
	dm.capMu.RLock()
	defer dm.capMu.RUnlock()
	return dm.caps.vectorTopK
}
