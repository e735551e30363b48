package records

import (
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/apptype"
)

// Stats counts what the normalizer saw.
type Stats struct {
	Records              int `json:"records"`
	Skipped              int `json:"skipped"`
	DuplicateDiseases    int `json:"duplicate_diseases"`
	MalformedDrugDetails int `json:"malformed_drug_details"`
	// UnlinkedDepartments counts records whose department list had a
	// length other than 1 or 2 and so produced no department edges.
	UnlinkedDepartments int `json:"unlinked_departments"`
}

// Normalized is the builder input.
type Normalized struct {
	Nodes    map[apptype.EntityType][]string
	Diseases []apptype.DiseaseAttributes
	Edges    map[apptype.RelationType][]apptype.Edge
	Stats    Stats
}

// NodeCount returns the number of distinct names across all types.
func (n Normalized) NodeCount() int {
	total := 0
	for _, names := range n.Nodes {
		total += len(names)
	}
	return total
}

// EdgeCount returns the number of deduplicated edges.
func (n Normalized) EdgeCount() int {
	total := 0
	for _, edges := range n.Edges {
		total += len(edges)
	}
	return total
}

// Normalizer accumulates records. It is not safe for concurrent use.
type Normalizer struct {
	sets     map[apptype.EntityType]map[string]struct{}
	diseases []apptype.DiseaseAttributes
	seen     map[string]struct{}
	edges    map[apptype.RelationType][]apptype.Edge
	stats    Stats
}

func NewNormalizer() *Normalizer {
	n := &Normalizer{
		sets:  make(map[apptype.EntityType]map[string]struct{}),
		seen:  make(map[string]struct{}),
		edges: make(map[apptype.RelationType][]apptype.Edge),
	}
	for _, t := range apptype.AllEntityTypes() {
		n.sets[t] = make(map[string]struct{})
	}
	return n
}

// Add normalizes one record. A record without a name is skipped.
func (n *Normalizer) Add(r Record) {
	n.stats.Records++
	disease := r.PrimaryName()
	if disease == "" {
		n.stats.Skipped++
		return
	}
	n.addName(apptype.Disease, disease)
	if _, dup := n.seen[disease]; dup {
		n.stats.DuplicateDiseases++
	} else {
		n.seen[disease] = struct{}{}
		n.diseases = append(n.diseases, r.Attributes())
	}

	n.link(disease, apptype.HasSymptom, apptype.Symptom, r.Symptom)
	n.link(disease, apptype.ComplicationOf, apptype.Disease, r.Acompany)
	n.link(disease, apptype.CommonDrug, apptype.Drug, r.CommonDrug)
	n.link(disease, apptype.RecommendDrug, apptype.Drug, r.RecommandDrug)
	n.link(disease, apptype.NoEat, apptype.Food, r.NotEat)
	n.link(disease, apptype.DoEat, apptype.Food, r.DoEat)
	n.link(disease, apptype.RecommendEat, apptype.Food, r.RecommandEat)
	n.link(disease, apptype.NeedCheck, apptype.Check, r.Check)

	// every listed department becomes a node; only 1 or 2 element lists link
	depts := r.CureDepartment.Clean()
	for _, d := range depts {
		n.addName(apptype.Department, d)
	}
	switch len(depts) {
	case 0:
	case 1:
		n.addEdge(disease, depts[0], apptype.BelongsToCategory)
	case 2:
		big, small := depts[0], depts[1]
		n.addEdge(small, big, apptype.BelongsTo)
		n.addEdge(disease, small, apptype.BelongsToCategory)
	default:
		n.stats.UnlinkedDepartments++
	}

	for _, detail := range r.DrugDetail.Clean() {
		producer, drug, ok := ParseDrugDetail(detail)
		if !ok {
			n.stats.MalformedDrugDetails++
			continue
		}
		n.addName(apptype.Producer, producer)
		n.addName(apptype.Drug, drug)
		n.addEdge(producer, drug, apptype.Produces)
	}
}

func (n *Normalizer) link(disease string, rel apptype.RelationType, target apptype.EntityType, values StringList) {
	for _, v := range values.Clean() {
		n.addName(target, v)
		n.addEdge(disease, v, rel)
	}
}

func (n *Normalizer) addName(t apptype.EntityType, name string) {
	n.sets[t][name] = struct{}{}
}

func (n *Normalizer) addEdge(src, dst string, rel apptype.RelationType) {
	n.edges[rel] = append(n.edges[rel], apptype.Edge{Source: src, Target: dst, Type: rel})
}

// Result returns sorted node sets, disease records in input order and
// deduplicated edges per relation type.
func (n *Normalizer) Result() Normalized {
	out := Normalized{
		Nodes:    make(map[apptype.EntityType][]string, len(n.sets)),
		Diseases: append([]apptype.DiseaseAttributes(nil), n.diseases...),
		Edges:    make(map[apptype.RelationType][]apptype.Edge, len(n.edges)),
		Stats:    n.stats,
	}
	for t, set := range n.sets {
		names := make([]string, 0, len(set))
		for name := range set {
			names = append(names, name)
		}
		sort.Strings(names)
		out.Nodes[t] = names
	}
	for rel, edges := range n.edges {
		out.Edges[rel] = DedupeEdges(edges)
	}
	return out
}

// ParseDrugDetail splits "<producer>(<drug>)". The producer is the text
// before the first "(" and the drug the text between the last "(" and the
// trailing ")". Full-width parentheses are accepted.
func ParseDrugDetail(s string) (producer, drug string, ok bool) {
	s = strings.NewReplacer("（", "(", "）", ")").Replace(strings.TrimSpace(s))
	first := strings.Index(s, "(")
	last := strings.LastIndex(s, "(")
	if first <= 0 || !strings.HasSuffix(s, ")") {
		return "", "", false
	}
	producer = strings.TrimSpace(s[:first])
	drug = strings.TrimSpace(s[last+1 : len(s)-1])
	if producer == "" || drug == "" {
		return "", "", false
	}
	return producer, drug, true
}
