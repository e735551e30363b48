// Package graph defines the capability surfaces consumed by graph
// construction and query-time retrieval. Implementations live in
// internal/database (libSQL) and internal/neo4jstore (Neo4j).
package graph

import (
	"context"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/apptype"
)

// Store is the node/edge CRUD and single-hop traversal capability.
// Implementations must be safe for concurrent readers.
type Store interface {
	// CreateNode inserts a node. Returns ErrDuplicate when (label, name) exists.
	CreateNode(ctx context.Context, label apptype.EntityType, name string, props map[string]any) (apptype.Node, error)
	// FindNodes matches nodes by label and property equality. limit <= 0 means no limit.
	FindNodes(ctx context.Context, label apptype.EntityType, props map[string]any, limit int) ([]apptype.Node, error)
	// CreateRelationship links two existing nodes. Returns an error matching
	// ErrMissingEndpoint when either endpoint is absent and ErrDuplicate when
	// the (from, to, type) triple already exists.
	CreateRelationship(ctx context.Context, from apptype.EntityRef, rel apptype.RelationType, to apptype.EntityRef, props map[string]any) (apptype.Relationship, error)
	// Traverse returns the nodes one hop away, in edge creation order.
	Traverse(ctx context.Context, q TraversalQuery) ([]apptype.Node, error)
	// ClearAll removes every node and relationship.
	ClearAll(ctx context.Context) error
	// Stats reports node and relationship counts.
	Stats(ctx context.Context) (Stats, error)
}

// VectorIndex is the type-scoped similarity search capability.
type VectorIndex interface {
	// Index upserts records by ID.
	Index(ctx context.Context, recs ...apptype.VectorRecord) error
	// Search returns at most k texts of records tagged typ, nearest first.
	Search(ctx context.Context, text string, typ string, k int) ([]string, error)
	// ClearAll removes every record.
	ClearAll(ctx context.Context) error
}

// Stats summarizes the stored graph
type Stats struct {
	Nodes         map[apptype.EntityType]int   `json:"nodes"`
	Relationships map[apptype.RelationType]int `json:"relationships"`
}

// TotalNodes sums node counts across labels.
func (s Stats) TotalNodes() int {
	n := 0
	for _, c := range s.Nodes {
		n += c
	}
	return n
}

// TotalRelationships sums relationship counts across types.
func (s Stats) TotalRelationships() int {
	n := 0
	for _, c := range s.Relationships {
		n += c
	}
	return n
}
