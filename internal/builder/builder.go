// Package builder writes normalized records into a graph store and its
// vector index.
package builder

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/graph"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/logger"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/metrics"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/records"
)

// Options tune a build.
type Options struct {
	// Reset clears the store and index before writing.
	Reset bool
	// IndexRelations also indexes created edges as "<src> <label> <dst>".
	IndexRelations bool
	// BatchSize is the number of vector records per Index call.
	BatchSize int
	// ProgressEvery logs progress after this many nodes or edges. Zero disables.
	ProgressEvery int
}

func DefaultOptions() Options {
	return Options{IndexRelations: true, BatchSize: 64, ProgressEvery: 1000}
}

// Counts reports the outcome of a build.
type Counts struct {
	NodesCreated   int `json:"nodes_created"`
	NodesDuplicate int `json:"nodes_duplicate"`
	NodesFailed    int `json:"nodes_failed"`
	EdgesCreated   int `json:"edges_created"`
	EdgesDuplicate int `json:"edges_duplicate"`
	EdgesFailed    int `json:"edges_failed"`
	VectorsIndexed int `json:"vectors_indexed"`
	VectorsFailed  int `json:"vectors_failed"`
}

// Builder is single-writer; do not run two builds against the same store at once.
type Builder struct {
	store graph.Store
	index graph.VectorIndex
	log   *logger.Logger
	opts  Options
}

// New returns a builder. index may be nil, in which case nothing is indexed.
func New(store graph.Store, index graph.VectorIndex, log *logger.Logger, opts Options) *Builder {
	if log == nil {
		log = logger.Nop()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}
	return &Builder{store: store, index: index, log: log.With("component", "builder"), opts: opts}
}

// nodeOrder is the creation order after diseases.
var nodeOrder = []apptype.EntityType{
	apptype.Symptom, apptype.Drug, apptype.Food, apptype.Check, apptype.Department, apptype.Producer,
}

// Build creates disease nodes, then the other node types, then edges.
// Per-item failures are counted and the run continues. The run is not
// transactional; a cancelled context returns the counts so far.
func (b *Builder) Build(ctx context.Context, n records.Normalized) (Counts, error) {
	done := metrics.TimeStage("build")
	success := false
	defer func() { done(success) }()

	var c Counts
	if b.opts.Reset {
		if err := b.reset(ctx); err != nil {
			return c, err
		}
	}
	vb := &vectorBatch{b: b, counts: &c}

	b.log.Info("creating nodes", "diseases", len(n.Diseases), "total", n.NodeCount())
	withAttrs := make(map[string]struct{}, len(n.Diseases))
	for _, d := range n.Diseases {
		withAttrs[d.Name] = struct{}{}
		if err := b.createNode(ctx, apptype.Disease, d.Name, d.Properties(), &c, vb); err != nil {
			return c, err
		}
	}
	// names only known as complications get a bare disease node
	for _, name := range n.Nodes[apptype.Disease] {
		if _, ok := withAttrs[name]; ok {
			continue
		}
		if err := b.createNode(ctx, apptype.Disease, name, nil, &c, vb); err != nil {
			return c, err
		}
	}
	for _, t := range nodeOrder {
		for _, name := range n.Nodes[t] {
			if err := b.createNode(ctx, t, name, nil, &c, vb); err != nil {
				return c, err
			}
		}
	}

	b.log.Info("creating relationships", "total", n.EdgeCount())
	for _, rel := range apptype.AllRelationTypes() {
		for _, e := range n.Edges[rel] {
			if err := b.createEdge(ctx, e, &c, vb); err != nil {
				return c, err
			}
		}
	}
	if err := vb.flush(ctx); err != nil {
		return c, err
	}

	rec := metrics.Default()
	rec.AddBuildItems("node", "created", c.NodesCreated)
	rec.AddBuildItems("node", "duplicate", c.NodesDuplicate)
	rec.AddBuildItems("node", "failed", c.NodesFailed)
	rec.AddBuildItems("edge", "created", c.EdgesCreated)
	rec.AddBuildItems("edge", "duplicate", c.EdgesDuplicate)
	rec.AddBuildItems("edge", "failed", c.EdgesFailed)
	rec.AddBuildItems("vector", "indexed", c.VectorsIndexed)
	rec.AddBuildItems("vector", "failed", c.VectorsFailed)
	b.log.Info("graph build finished",
		"nodes", c.NodesCreated, "nodes_duplicate", c.NodesDuplicate, "nodes_failed", c.NodesFailed,
		"edges", c.EdgesCreated, "edges_duplicate", c.EdgesDuplicate, "edges_failed", c.EdgesFailed,
		"vectors", c.VectorsIndexed, "vectors_failed", c.VectorsFailed)
	success = true
	return c, nil
}

func (b *Builder) reset(ctx context.Context) error {
	if err := b.store.ClearAll(ctx); err != nil {
		return fmt.Errorf("failed to clear graph: %w", err)
	}
	if b.index != nil {
		if err := b.index.ClearAll(ctx); err != nil {
			return fmt.Errorf("failed to clear vector index: %w", err)
		}
	}
	b.log.Info("graph cleared")
	return nil
}

func (b *Builder) createNode(ctx context.Context, label apptype.EntityType, name string, props map[string]any, c *Counts, vb *vectorBatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	node, err := b.store.CreateNode(ctx, label, name, props)
	switch {
	case errors.Is(err, graph.ErrDuplicate):
		c.NodesDuplicate++
	case err != nil:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.NodesFailed++
		b.log.Warn("node not created", "label", label, "name", name, "error", err)
	default:
		c.NodesCreated++
		if err := vb.add(ctx, apptype.VectorRecord{ID: node.ID, Text: node.Name, Type: string(label)}); err != nil {
			return err
		}
	}
	b.progress("nodes", c.NodesCreated+c.NodesDuplicate+c.NodesFailed)
	return nil
}

func (b *Builder) createEdge(ctx context.Context, e apptype.Edge, c *Counts, vb *vectorBatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, dst, ok := e.Type.Endpoints()
	if !ok {
		c.EdgesFailed++
		b.log.Warn("unknown relation type", "type", e.Type)
		return nil
	}
	from := apptype.EntityRef{Label: src, Name: e.Source}
	to := apptype.EntityRef{Label: dst, Name: e.Target}
	rel, err := b.store.CreateRelationship(ctx, from, e.Type, to, map[string]any{"label": e.Type.Label()})
	switch {
	case errors.Is(err, graph.ErrDuplicate):
		c.EdgesDuplicate++
	case errors.Is(err, graph.ErrMissingEndpoint):
		c.EdgesFailed++
		b.log.Debug("relationship endpoint missing", "from", from, "type", e.Type, "to", to, "error", err)
	case err != nil:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.EdgesFailed++
		b.log.Warn("relationship not created", "from", from, "type", e.Type, "to", to, "error", err)
	default:
		c.EdgesCreated++
		if b.opts.IndexRelations {
			text := e.Source + " " + e.Type.Label() + " " + e.Target
			if err := vb.add(ctx, apptype.VectorRecord{ID: rel.ID, Text: text, Type: string(e.Type)}); err != nil {
				return err
			}
		}
	}
	b.progress("relationships", c.EdgesCreated+c.EdgesDuplicate+c.EdgesFailed)
	return nil
}

func (b *Builder) progress(kind string, n int) {
	if b.opts.ProgressEvery > 0 && n > 0 && n%b.opts.ProgressEvery == 0 {
		b.log.Info("build progress", "kind", kind, "processed", n)
	}
}

// vectorBatch buffers vector records and flushes them in BatchSize chunks.
type vectorBatch struct {
	b      *Builder
	counts *Counts
	buf    []apptype.VectorRecord
}

func (v *vectorBatch) add(ctx context.Context, rec apptype.VectorRecord) error {
	if v.b.index == nil {
		return nil
	}
	v.buf = append(v.buf, rec)
	if len(v.buf) >= v.b.opts.BatchSize {
		return v.flush(ctx)
	}
	return nil
}

// flush only returns an error on context cancellation; index failures are counted.
func (v *vectorBatch) flush(ctx context.Context) error {
	if len(v.buf) == 0 {
		return nil
	}
	batch := v.buf
	v.buf = nil
	if err := v.b.index.Index(ctx, batch...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		v.counts.VectorsFailed += len(batch)
		v.b.log.Warn("vector batch not indexed", "size", len(batch), "error", err)
		return nil
	}
	v.counts.VectorsIndexed += len(batch)
	return nil
}
