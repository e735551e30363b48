// Package graphtest provides in-memory graph.Store and graph.VectorIndex
// implementations for tests.
package graphtest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/embeddings"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/graph"
)

type storedRel struct {
	rel      apptype.Relationship
	src, dst int
}

// Store is a graph.Store kept in memory. Set TraverseErr to simulate an
// unavailable backend.
type Store struct {
	mu     sync.RWMutex
	nodes  []apptype.Node
	byKey  map[apptype.EntityRef]int
	rels   []storedRel
	relKey map[string]struct{}

	TraverseErr error
}

func NewStore() *Store {
	return &Store{byKey: map[apptype.EntityRef]int{}, relKey: map[string]struct{}{}}
}

func (s *Store) CreateNode(ctx context.Context, label apptype.EntityType, name string, props map[string]any) (apptype.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := apptype.EntityRef{Label: label, Name: name}
	if _, ok := s.byKey[ref]; ok {
		return apptype.Node{}, fmt.Errorf("node %s: %w", ref, graph.ErrDuplicate)
	}
	n := apptype.Node{ID: uuid.NewString(), Label: label, Name: name, Properties: copyMap(props)}
	s.byKey[ref] = len(s.nodes)
	s.nodes = append(s.nodes, n)
	return n, nil
}

func (s *Store) FindNodes(ctx context.Context, label apptype.EntityType, props map[string]any, limit int) ([]apptype.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []apptype.Node{}
	for _, n := range s.nodes {
		if n.Label != label || !matches(n, props) {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func matches(n apptype.Node, props map[string]any) bool {
	for k, v := range props {
		if k == "name" {
			if n.Name != fmt.Sprint(v) {
				return false
			}
			continue
		}
		if fmt.Sprint(n.Properties[k]) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}

func (s *Store) CreateRelationship(ctx context.Context, from apptype.EntityRef, rel apptype.RelationType, to apptype.EntityRef, props map[string]any) (apptype.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var missing []apptype.EntityRef
	src, ok := s.byKey[from]
	if !ok {
		missing = append(missing, from)
	}
	dst, ok := s.byKey[to]
	if !ok {
		missing = append(missing, to)
	}
	if len(missing) > 0 {
		return apptype.Relationship{}, &graph.EndpointError{Missing: missing}
	}
	key := fmt.Sprintf("%d|%d|%s", src, dst, rel)
	if _, ok := s.relKey[key]; ok {
		return apptype.Relationship{}, fmt.Errorf("relationship %s-[%s]->%s: %w", from, rel, to, graph.ErrDuplicate)
	}
	s.relKey[key] = struct{}{}
	r := apptype.Relationship{ID: uuid.NewString(), Type: rel, From: from, To: to, Properties: copyMap(props)}
	s.rels = append(s.rels, storedRel{rel: r, src: src, dst: dst})
	return r, nil
}

func (s *Store) Traverse(ctx context.Context, q graph.TraversalQuery) ([]apptype.Node, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if s.TraverseErr != nil {
		return nil, s.TraverseErr
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	start, ok := s.byKey[q.From]
	out := []apptype.Node{}
	if !ok {
		return out, nil
	}
	for _, r := range s.rels {
		if r.rel.Type != q.Relation {
			continue
		}
		near, far := r.src, r.dst
		if q.Direction == graph.Incoming {
			near, far = r.dst, r.src
		}
		if near != start {
			continue
		}
		n := s.nodes[far]
		if q.TargetLabel != "" && n.Label != q.TargetLabel {
			continue
		}
		out = append(out, n)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = nil
	s.rels = nil
	s.byKey = map[apptype.EntityRef]int{}
	s.relKey = map[string]struct{}{}
	return nil
}

func (s *Store) Stats(ctx context.Context) (graph.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := graph.Stats{Nodes: map[apptype.EntityType]int{}, Relationships: map[apptype.RelationType]int{}}
	for _, n := range s.nodes {
		st.Nodes[n.Label]++
	}
	for _, r := range s.rels {
		st.Relationships[r.rel.Type]++
	}
	return st, nil
}

// Relationships returns every stored relationship in creation order.
func (s *Store) Relationships() []apptype.Relationship {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]apptype.Relationship, len(s.rels))
	for i, r := range s.rels {
		out[i] = r.rel
	}
	return out
}

// Index is a graph.VectorIndex doing exact cosine search over hash
// embeddings. Set SearchErr or IndexErr to simulate failures.
type Index struct {
	mu       sync.RWMutex
	provider embeddings.Provider
	recs     map[string]indexed
	order    []string

	SearchErr error
	IndexErr  error
	Searches  int
}

type indexed struct {
	rec apptype.VectorRecord
	vec []float32
}

func NewIndex() *Index {
	return &Index{provider: embeddings.NewHashProvider(256), recs: map[string]indexed{}}
}

func (x *Index) Index(ctx context.Context, recs ...apptype.VectorRecord) error {
	if x.IndexErr != nil {
		return x.IndexErr
	}
	texts := make([]string, len(recs))
	for i, r := range recs {
		texts[i] = r.Text
	}
	vecs, err := x.provider.Embed(ctx, texts)
	if err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	for i, r := range recs {
		if _, ok := x.recs[r.ID]; !ok {
			x.order = append(x.order, r.ID)
		}
		x.recs[r.ID] = indexed{rec: r, vec: vecs[i]}
	}
	return nil
}

func (x *Index) Search(ctx context.Context, text string, typ string, k int) ([]string, error) {
	x.mu.Lock()
	x.Searches++
	x.mu.Unlock()
	if x.SearchErr != nil {
		return nil, x.SearchErr
	}
	if k <= 0 {
		return []string{}, nil
	}
	vecs, err := x.provider.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	q := vecs[0]
	type hit struct {
		text string
		sim  float64
	}
	x.mu.RLock()
	hits := make([]hit, 0)
	for _, id := range x.order {
		r := x.recs[id]
		if r.rec.Type != typ {
			continue
		}
		hits = append(hits, hit{text: r.rec.Text, sim: cosine(q, r.vec)})
	}
	x.mu.RUnlock()
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].sim > hits[j].sim })
	out := make([]string, 0, k)
	for i := 0; i < len(hits) && i < k; i++ {
		out = append(out, hits[i].text)
	}
	return out, nil
}

func (x *Index) ClearAll(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.recs = map[string]indexed{}
	x.order = nil
	return nil
}

// Len returns the number of indexed records.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.recs)
}

// Types returns the type tag of every record, keyed by text.
func (x *Index) Types() map[string]string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make(map[string]string, len(x.recs))
	for _, r := range x.recs {
		out[r.rec.Text] = r.rec.Type
	}
	return out
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
