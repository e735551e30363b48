package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/metrics"
)

// getPreparedStmt returns or prepares and caches a statement
func (dm *DBManager) getPreparedStmt(ctx context.Context, sqlText string) (*sql.Stmt, error) {
	// fast path read
	dm.stmtMu.RLock()
	if stmt, ok := dm.stmtCache[sqlText]; ok {
		dm.stmtMu.RUnlock()
		metrics.Default().IncStmtCacheHit("prepare")
		return stmt, nil
	}
	dm.stmtMu.RUnlock()
	metrics.Default().IncStmtCacheMiss("prepare")

	stmt, err := dm.db.PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	dm.stmtMu.Lock()
	defer dm.stmtMu.Unlock()
	if existing, ok := dm.stmtCache[sqlText]; ok {
		// lost the race; keep the first one
		_ = stmt.Close()
		return existing, nil
	}
	dm.stmtCache[sqlText] = stmt
	return stmt, nil
}

func (dm *DBManager) closeStatements() {
	dm.stmtMu.Lock()
	defer dm.stmtMu.Unlock()
	for k, stmt := range dm.stmtCache {
		_ = stmt.Close()
		delete(dm.stmtCache, k)
	}
}
