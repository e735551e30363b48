package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/graph"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/metrics"
)

// CreateRelationship links two existing nodes. Missing endpoints yield a
// *graph.EndpointError; an existing (source, target, type) edge yields
// graph.ErrDuplicate.
func (dm *DBManager) CreateRelationship(ctx context.Context, from apptype.EntityRef, rel apptype.RelationType, to apptype.EntityRef, props map[string]any) (apptype.Relationship, error) {
	done := metrics.TimeOp("db_create_relationship")
	success := false
	defer func() { done(success) }()

	if !graph.ValidIdentifier(string(rel)) {
		return apptype.Relationship{}, fmt.Errorf("relation type %q: %w", rel, graph.ErrInvalidQuery)
	}

	var missing []apptype.EntityRef
	ids := make([]string, 2)
	for i, ref := range []apptype.EntityRef{from, to} {
		id, err := dm.findNodeID(ctx, ref)
		switch {
		case errors.Is(err, graph.ErrNotFound):
			missing = append(missing, ref)
		case err != nil:
			return apptype.Relationship{}, err
		default:
			ids[i] = id
		}
	}
	if len(missing) > 0 {
		return apptype.Relationship{}, &graph.EndpointError{Missing: missing}
	}

	propsJSON, err := encodeProps(props)
	if err != nil {
		return apptype.Relationship{}, err
	}
	stmt, err := dm.getPreparedStmt(ctx, `INSERT INTO relationships (id, source_id, target_id, rel_type, properties)
        VALUES (?, ?, ?, ?, ?) ON CONFLICT(source_id, target_id, rel_type) DO NOTHING`)
	if err != nil {
		return apptype.Relationship{}, err
	}
	id := uuid.NewString()
	result, err := stmt.ExecContext(ctx, id, ids[0], ids[1], string(rel), propsJSON)
	if err != nil {
		return apptype.Relationship{}, fmt.Errorf("failed to insert relationship %s-[%s]->%s: %w", from, rel, to, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return apptype.Relationship{}, fmt.Errorf("failed to read insert result: %w", err)
	}
	if n == 0 {
		return apptype.Relationship{}, fmt.Errorf("relationship %s-[%s]->%s: %w", from, rel, to, graph.ErrDuplicate)
	}
	success = true
	return apptype.Relationship{ID: id, Type: rel, From: from, To: to, Properties: copyProps(props)}, nil
}
