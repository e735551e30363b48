package neo4jstore

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/graph"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store implements graph.Store on one Neo4j database.
type Store struct {
	c   *Client
	seq atomic.Int64
}

var _ graph.Store = (*Store)(nil)

// NewStore returns a store on c. Call EnsureSchema once before building.
func NewStore(c *Client) *Store {
	s := &Store{c: c}
	s.seq.Store(time.Now().UnixNano())
	return s
}

// EnsureSchema creates a unique name constraint per label. Failures are
// logged and skipped since restricted users may not manage schema.
func (s *Store) EnsureSchema(ctx context.Context) {
	session := s.c.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	for _, label := range apptype.AllEntityTypes() {
		q, err := constraintCypher(label)
		if err != nil {
			continue
		}
		res, err := session.Run(ctx, q, nil)
		if err != nil {
			s.c.log.Warn("neo4j schema init failed (continuing)", "label", label, "error", err)
			continue
		}
		_, _ = res.Consume(ctx)
	}
}

func (s *Store) CreateNode(ctx context.Context, label apptype.EntityType, name string, props map[string]any) (apptype.Node, error) {
	done := metrics.TimeOp("neo4j_create_node")
	success := false
	defer func() { done(success) }()

	name = strings.TrimSpace(name)
	if name == "" {
		return apptype.Node{}, fmt.Errorf("node name is empty: %w", graph.ErrInvalidQuery)
	}
	q, err := mergeNodeCypher(label)
	if err != nil {
		return apptype.Node{}, err
	}
	flat, err := flattenProps(props)
	if err != nil {
		return apptype.Node{}, err
	}
	id := uuid.NewString()

	session := s.c.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	created, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, q, map[string]any{"name": name, "id": id, "props": flat})
		if err != nil {
			return false, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return false, err
		}
		v, _ := rec.Get("created")
		ok, _ := v.(bool)
		return ok, nil
	})
	if err != nil {
		return apptype.Node{}, fmt.Errorf("failed to create node %s(%s): %w", label, name, err)
	}
	if ok, _ := created.(bool); !ok {
		return apptype.Node{}, fmt.Errorf("node %s(%s): %w", label, name, graph.ErrDuplicate)
	}
	success = true
	return apptype.Node{ID: id, Label: label, Name: name, Properties: props}, nil
}

func (s *Store) FindNodes(ctx context.Context, label apptype.EntityType, props map[string]any, limit int) ([]apptype.Node, error) {
	done := metrics.TimeOp("neo4j_find_nodes")
	success := false
	defer func() { done(success) }()

	q, params, err := findNodesCypher(label, props, limit)
	if err != nil {
		return nil, err
	}
	nodes, err := s.readNodes(ctx, q, params, label)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s nodes: %w", label, err)
	}
	success = true
	return nodes, nil
}

func (s *Store) CreateRelationship(ctx context.Context, from apptype.EntityRef, rel apptype.RelationType, to apptype.EntityRef, props map[string]any) (apptype.Relationship, error) {
	done := metrics.TimeOp("neo4j_create_relationship")
	success := false
	defer func() { done(success) }()

	check, err := endpointsCypher(from.Label, to.Label)
	if err != nil {
		return apptype.Relationship{}, err
	}
	merge, err := mergeRelCypher(from.Label, rel, to.Label)
	if err != nil {
		return apptype.Relationship{}, err
	}
	flat, err := flattenProps(props)
	if err != nil {
		return apptype.Relationship{}, err
	}
	id := uuid.NewString()
	params := map[string]any{"from": from.Name, "to": to.Name, "id": id, "props": flat, "seq": s.seq.Add(1)}

	session := s.c.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, check, params)
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		var missing []apptype.EntityRef
		if v, _ := rec.Get("has_from"); v != true {
			missing = append(missing, from)
		}
		if v, _ := rec.Get("has_to"); v != true {
			missing = append(missing, to)
		}
		if len(missing) > 0 {
			return &graph.EndpointError{Missing: missing}, nil
		}

		res, err = tx.Run(ctx, merge, params)
		if err != nil {
			return nil, err
		}
		rec, err = res.Single(ctx)
		if err != nil {
			return nil, err
		}
		v, _ := rec.Get("created")
		return v == true, nil
	})
	if err != nil {
		return apptype.Relationship{}, fmt.Errorf("failed to create relationship %s-[%s]->%s: %w", from, rel, to, err)
	}
	switch v := out.(type) {
	case *graph.EndpointError:
		return apptype.Relationship{}, v
	case bool:
		if !v {
			return apptype.Relationship{}, fmt.Errorf("relationship %s-[%s]->%s: %w", from, rel, to, graph.ErrDuplicate)
		}
	}
	success = true
	return apptype.Relationship{ID: id, Type: rel, From: from, To: to, Properties: props}, nil
}

func (s *Store) Traverse(ctx context.Context, q graph.TraversalQuery) ([]apptype.Node, error) {
	done := metrics.TimeOp("neo4j_traverse")
	success := false
	defer func() { done(success) }()

	text, params, err := traverseCypher(q)
	if err != nil {
		return nil, err
	}
	nodes, err := s.readNodes(ctx, text, params, q.TargetLabel)
	if err != nil {
		return nil, fmt.Errorf("failed to traverse %s from %s: %w", q.Relation, q.From, err)
	}
	success = true
	return nodes, nil
}

func (s *Store) ClearAll(ctx context.Context) error {
	done := metrics.TimeOp("neo4j_clear_all")
	success := false
	defer func() { done(success) }()

	session := s.c.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, clearCypher(), nil)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to clear graph: %w", err)
	}
	success = true
	return nil
}

func (s *Store) Stats(ctx context.Context) (graph.Stats, error) {
	done := metrics.TimeOp("neo4j_stats")
	success := false
	defer func() { done(success) }()

	st := graph.Stats{Nodes: map[apptype.EntityType]int{}, Relationships: map[apptype.RelationType]int{}}
	session := s.c.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)
	_, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, nodeStatsCypher(), nil)
		if err != nil {
			return nil, err
		}
		recs, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			l, _ := rec.Get("label")
			c, _ := rec.Get("c")
			if t, err := apptype.ParseEntityType(fmt.Sprint(l)); err == nil {
				st.Nodes[t] += int(toInt64(c))
			}
		}

		res, err = tx.Run(ctx, relStatsCypher(), nil)
		if err != nil {
			return nil, err
		}
		recs, err = res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			t, _ := rec.Get("t")
			c, _ := rec.Get("c")
			st.Relationships[apptype.RelationType(fmt.Sprint(t))] += int(toInt64(c))
		}
		return nil, nil
	})
	if err != nil {
		return graph.Stats{}, fmt.Errorf("failed to read graph stats: %w", err)
	}
	success = true
	return st, nil
}

func (s *Store) readNodes(ctx context.Context, q string, params map[string]any, label apptype.EntityType) ([]apptype.Node, error) {
	session := s.c.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)
	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, q, params)
		if err != nil {
			return nil, err
		}
		recs, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		nodes := make([]apptype.Node, 0, len(recs))
		for _, rec := range recs {
			v, ok := rec.Get("b")
			if !ok {
				v, _ = rec.Get("n")
			}
			if n, ok := v.(neo4j.Node); ok {
				nodes = append(nodes, decodeNode(n, label))
			}
		}
		return nodes, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]apptype.Node), nil
}

// decodeNode maps a driver node. fallback is used when the node carries no
// known entity label.
func decodeNode(n neo4j.Node, fallback apptype.EntityType) apptype.Node {
	label := fallback
	for _, l := range n.Labels {
		if t, err := apptype.ParseEntityType(l); err == nil {
			label = t
			break
		}
	}
	out := apptype.Node{Label: label, Properties: map[string]any{}}
	for k, v := range n.Props {
		switch k {
		case "id":
			out.ID = fmt.Sprint(v)
		case "name":
			out.Name = fmt.Sprint(v)
		default:
			out.Properties[k] = v
		}
	}
	return out
}

// flattenProps keeps values Neo4j can store as properties. Maps and other
// nested values are stored as JSON text. id and name are reserved.
func flattenProps(props map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(props))
	for k, v := range props {
		if k == "id" || k == "name" {
			continue
		}
		if !graph.ValidIdentifier(k) {
			return nil, fmt.Errorf("property key %q: %w", k, graph.ErrInvalidQuery)
		}
		switch t := v.(type) {
		case nil:
		case string, bool, int, int64, float64, []string:
			out[k] = t
		case int32:
			out[k] = int64(t)
		case float32:
			out[k] = float64(t)
		default:
			b, err := json.Marshal(t)
			if err != nil {
				return nil, fmt.Errorf("failed to encode property %q: %w", k, err)
			}
			out[k] = string(b)
		}
	}
	return out, nil
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}
