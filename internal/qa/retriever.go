package qa

import (
	"context"
	"sort"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/graph"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/logger"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/metrics"
)

// DefaultTopK is the number of names kept after ranking.
const DefaultTopK = 3

// RankedCandidate is a query-scoped aggregate of traversal results.
type RankedCandidate struct {
	Name       string         `json:"name"`
	Count      int            `json:"count"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// DiseaseRanking is the full ranking plus its top names.
type DiseaseRanking struct {
	Ranked []RankedCandidate `json:"ranked"`
	Top    []string          `json:"top"`
}

// Retriever ranks graph neighbours by how many query entities reach them.
type Retriever struct {
	store graph.Store
	log   *logger.Logger
	topK  int
}

func NewRetriever(store graph.Store, log *logger.Logger, topK int) *Retriever {
	if log == nil {
		log = logger.Nop()
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{store: store, log: log.With("component", "retriever"), topK: topK}
}

// DiseasesBySymptoms counts, per disease, the symptoms linking to it via has_symptom.
func (r *Retriever) DiseasesBySymptoms(ctx context.Context, symptoms []string) DiseaseRanking {
	ranked := r.rank(ctx, "diseases_by_symptoms", symptoms, func(name string) graph.TraversalQuery {
		return graph.TraversalQuery{
			From:        apptype.EntityRef{Label: apptype.Symptom, Name: name},
			Relation:    apptype.HasSymptom,
			Direction:   graph.Incoming,
			TargetLabel: apptype.Disease,
		}
	})
	return DiseaseRanking{Ranked: ranked, Top: topNames(ranked, r.topK)}
}

// DrugsByDiseases returns at most topK drug names reached via recommend_drug.
func (r *Retriever) DrugsByDiseases(ctx context.Context, diseases []string) []string {
	ranked := r.rank(ctx, "drugs_by_diseases", diseases, func(name string) graph.TraversalQuery {
		return graph.TraversalQuery{
			From:        apptype.EntityRef{Label: apptype.Disease, Name: name},
			Relation:    apptype.RecommendDrug,
			Direction:   graph.Outgoing,
			TargetLabel: apptype.Drug,
		}
	})
	return topNames(ranked, r.topK)
}

// rank sorts by count descending; ties keep first-seen order. Attributes
// come from the first node seen for a name.
func (r *Retriever) rank(ctx context.Context, stage string, from []string, query func(string) graph.TraversalQuery) []RankedCandidate {
	done := metrics.TimeStage(stage)
	success := true
	defer func() { done(success) }()

	ranked := []RankedCandidate{}
	pos := map[string]int{}
	for _, name := range from {
		if name == "" {
			continue
		}
		nodes, err := r.store.Traverse(ctx, query(name))
		if err != nil {
			success = false
			r.log.Warn("Traversal failed", "stage", stage, "from", name, "error", err)
			continue
		}
		for _, n := range nodes {
			if i, ok := pos[n.Name]; ok {
				ranked[i].Count++
				continue
			}
			pos[n.Name] = len(ranked)
			ranked = append(ranked, RankedCandidate{Name: n.Name, Count: 1, Attributes: n.Properties})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Count > ranked[j].Count })
	return ranked
}

func topNames(ranked []RankedCandidate, k int) []string {
	if len(ranked) < k {
		k = len(ranked)
	}
	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = ranked[i].Name
	}
	return out
}
