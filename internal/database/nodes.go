package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/graph"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const nodeColumns = "n.id, n.label, n.name, n.properties"

// CreateNode inserts a node keyed by (label, name). An existing node with the
// same key yields graph.ErrDuplicate and is left untouched.
func (dm *DBManager) CreateNode(ctx context.Context, label apptype.EntityType, name string, props map[string]any) (apptype.Node, error) {
	done := metrics.TimeOp("db_create_node")
	success := false
	defer func() { done(success) }()

	if !graph.ValidIdentifier(string(label)) {
		return apptype.Node{}, fmt.Errorf("label %q: %w", label, graph.ErrInvalidQuery)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return apptype.Node{}, fmt.Errorf("node name is empty: %w", graph.ErrInvalidQuery)
	}
	propsJSON, err := encodeProps(props)
	if err != nil {
		return apptype.Node{}, err
	}

	stmt, err := dm.getPreparedStmt(ctx, `INSERT INTO nodes (id, label, name, properties) VALUES (?, ?, ?, ?)
        ON CONFLICT(label, name) DO NOTHING`)
	if err != nil {
		return apptype.Node{}, err
	}
	id := uuid.NewString()
	result, err := stmt.ExecContext(ctx, id, string(label), name, propsJSON)
	if err != nil {
		return apptype.Node{}, fmt.Errorf("failed to insert node %s(%s): %w", label, name, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return apptype.Node{}, fmt.Errorf("failed to read insert result: %w", err)
	}
	if n == 0 {
		return apptype.Node{}, fmt.Errorf("node %s(%s): %w", label, name, graph.ErrDuplicate)
	}
	success = true
	return apptype.Node{ID: id, Label: label, Name: name, Properties: copyProps(props)}, nil
}

// FindNodes returns nodes with the given label whose properties equal every
// entry of props. The "name" key matches the node name.
func (dm *DBManager) FindNodes(ctx context.Context, label apptype.EntityType, props map[string]any, limit int) ([]apptype.Node, error) {
	done := metrics.TimeOp("db_find_nodes")
	success := false
	defer func() { done(success) }()

	if !graph.ValidIdentifier(string(label)) {
		return nil, fmt.Errorf("label %q: %w", label, graph.ErrInvalidQuery)
	}
	query, args, err := buildFindQuery(label, props, limit)
	if err != nil {
		return nil, err
	}
	rows, err := dm.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()
	nodes, err := scanNodes(rows)
	if err != nil {
		return nil, err
	}
	success = true
	return nodes, nil
}

// buildFindQuery translates a property filter into SQL. Keys are validated
// identifiers and values are always bound.
func buildFindQuery(label apptype.EntityType, props map[string]any, limit int) (string, []any, error) {
	keys := make([]string, 0, len(props))
	for k := range props {
		if !graph.ValidIdentifier(k) {
			return "", nil, fmt.Errorf("property key %q: %w", k, graph.ErrInvalidQuery)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("SELECT " + nodeColumns + " FROM nodes n WHERE n.label = ?")
	args := []any{string(label)}
	for _, k := range keys {
		v := props[k]
		if k == "name" {
			b.WriteString(" AND n.name = ?")
			args = append(args, fmt.Sprint(v))
			continue
		}
		switch v.(type) {
		case []string, []any, map[string]any:
			enc, err := json.MarshalToString(v)
			if err != nil {
				return "", nil, fmt.Errorf("failed to encode filter %q: %w", k, err)
			}
			v = enc
		}
		b.WriteString(" AND json_extract(n.properties, '$." + k + "') = ?")
		args = append(args, v)
	}
	b.WriteString(" ORDER BY n.rowid")
	if limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, limit)
	}
	return b.String(), args, nil
}

func (dm *DBManager) findNodeID(ctx context.Context, ref apptype.EntityRef) (string, error) {
	stmt, err := dm.getPreparedStmt(ctx, "SELECT id FROM nodes WHERE label = ? AND name = ?")
	if err != nil {
		return "", err
	}
	var id string
	err = stmt.QueryRowContext(ctx, string(ref.Label), ref.Name).Scan(&id)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("node %s: %w", ref, graph.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up node %s: %w", ref, err)
	}
	return id, nil
}

func scanNodes(rows *sql.Rows) ([]apptype.Node, error) {
	nodes := make([]apptype.Node, 0)
	for rows.Next() {
		var id, label, name, propsJSON string
		if err := rows.Scan(&id, &label, &name, &propsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		props, err := decodeProps(propsJSON)
		if err != nil {
			return nil, fmt.Errorf("node %s(%s): %w", label, name, err)
		}
		nodes = append(nodes, apptype.Node{ID: id, Label: apptype.EntityType(label), Name: name, Properties: props})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return nodes, nil
}

func encodeProps(props map[string]any) (string, error) {
	if len(props) == 0 {
		return "{}", nil
	}
	s, err := json.MarshalToString(props)
	if err != nil {
		return "", fmt.Errorf("failed to encode properties: %w", err)
	}
	return s, nil
}

func decodeProps(s string) (map[string]any, error) {
	props := map[string]any{}
	if s == "" || s == "{}" {
		return props, nil
	}
	if err := json.UnmarshalFromString(s, &props); err != nil {
		return nil, fmt.Errorf("failed to decode properties: %w", err)
	}
	return props, nil
}

func copyProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}
