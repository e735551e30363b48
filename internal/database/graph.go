package database

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/graph"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/metrics"
)

// traversalSQL builds the single-hop query for a direction. Only fixed
// column names are interpolated.
func traversalSQL(dir graph.Direction, withTarget, withLimit bool) string {
	start, end := "r.source_id", "r.target_id"
	if dir == graph.Incoming {
		start, end = "r.target_id", "r.source_id"
	}
	q := `SELECT ` + nodeColumns + `
        FROM relationships r
        JOIN nodes s ON s.id = ` + start + `
        JOIN nodes n ON n.id = ` + end + `
        WHERE s.label = ? AND s.name = ? AND r.rel_type = ?`
	if withTarget {
		q += " AND n.label = ?"
	}
	q += " ORDER BY r.rowid"
	if withLimit {
		q += " LIMIT ?"
	}
	return q
}

// Traverse returns the nodes one hop away from q.From along q.Relation,
// in edge creation order. An unknown start node yields no nodes.
func (dm *DBManager) Traverse(ctx context.Context, q graph.TraversalQuery) ([]apptype.Node, error) {
	done := metrics.TimeOp("db_traverse")
	success := false
	defer func() { done(success) }()

	if err := q.Validate(); err != nil {
		return nil, err
	}
	args := []any{string(q.From.Label), q.From.Name, string(q.Relation)}
	if q.TargetLabel != "" {
		args = append(args, string(q.TargetLabel))
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
	}
	stmt, err := dm.getPreparedStmt(ctx, traversalSQL(q.Direction, q.TargetLabel != "", q.Limit > 0))
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to traverse %s from %s: %w", q.Relation, q.From, err)
	}
	defer rows.Close()
	nodes, err := scanNodes(rows)
	if err != nil {
		return nil, err
	}
	success = true
	return nodes, nil
}

// ClearAll deletes every relationship and node. Vector entries are cleared
// through the vector index.
func (dm *DBManager) ClearAll(ctx context.Context) error {
	done := metrics.TimeOp("db_clear_graph")
	success := false
	defer func() { done(success) }()

	tx, err := dm.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	for _, stmt := range []string{"DELETE FROM relationships", "DELETE FROM nodes"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear graph: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clear: %w", err)
	}
	success = true
	return nil
}

// Stats counts nodes per label and relationships per type.
func (dm *DBManager) Stats(ctx context.Context) (graph.Stats, error) {
	done := metrics.TimeOp("db_stats")
	success := false
	defer func() { done(success) }()

	stats := graph.Stats{
		Nodes:         map[apptype.EntityType]int{},
		Relationships: map[apptype.RelationType]int{},
	}
	rows, err := dm.db.QueryContext(ctx, "SELECT label, COUNT(*) FROM nodes GROUP BY label")
	if err != nil {
		return stats, fmt.Errorf("failed to count nodes: %w", err)
	}
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			rows.Close()
			return stats, fmt.Errorf("failed to scan node count: %w", err)
		}
		stats.Nodes[apptype.EntityType(label)] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, err
	}

	rows, err = dm.db.QueryContext(ctx, "SELECT rel_type, COUNT(*) FROM relationships GROUP BY rel_type")
	if err != nil {
		return stats, fmt.Errorf("failed to count relationships: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rel string
		var n int
		if err := rows.Scan(&rel, &n); err != nil {
			return stats, fmt.Errorf("failed to scan relationship count: %w", err)
		}
		stats.Relationships[apptype.RelationType(rel)] = n
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}
	dm.ObservePool()
	success = true
	return stats, nil
}
