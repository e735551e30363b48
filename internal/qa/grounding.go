package qa

import (
	"context"
	"strings"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/graph"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/logger"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/metrics"
)

// Grounder maps raw mentions to the nearest canonical entity names.
type Grounder struct {
	index  graph.VectorIndex
	log    *logger.Logger
	dedupe bool
}

func NewGrounder(index graph.VectorIndex, log *logger.Logger, dedupe bool) *Grounder {
	if log == nil {
		log = logger.Nop()
	}
	return &Grounder{index: index, log: log.With("component", "grounder"), dedupe: dedupe}
}

// Ground issues one top-1 search scoped to typ per non-blank mention.
// Output follows input order. Repeated canonical names are kept unless the
// grounder was built with dedupe. Mentions that fail or match nothing are dropped.
func (g *Grounder) Ground(ctx context.Context, raw []string, typ apptype.EntityType) []string {
	done := metrics.TimeStage("ground")
	success := true
	defer func() { done(success) }()

	out := make([]string, 0, len(raw))
	seen := map[string]struct{}{}
	for _, mention := range raw {
		mention = strings.TrimSpace(mention)
		if mention == "" {
			continue
		}
		hits, err := g.index.Search(ctx, mention, string(typ), 1)
		if err != nil {
			success = false
			g.log.Warn("Grounding search failed", "type", typ, "mention", mention, "error", err)
			continue
		}
		if len(hits) == 0 {
			g.log.Debug("No grounding match", "type", typ, "mention", mention)
			continue
		}
		name := hits[0]
		if g.dedupe {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
		}
		g.log.Debug("Grounded mention", "type", typ, "mention", mention, "canonical", name)
		out = append(out, name)
	}
	return out
}
