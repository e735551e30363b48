package apptype

import (
	"fmt"
	"strings"
)

// EntityType is the label of a node in the medical knowledge graph
type EntityType string

const (
	Disease    EntityType = "Disease"
	Symptom    EntityType = "Symptom"
	Drug       EntityType = "Drug"
	Food       EntityType = "Food"
	Check      EntityType = "Check"
	Department EntityType = "Department"
	Producer   EntityType = "Producer"
)

// AllEntityTypes returns every entity type in graph construction order.
func AllEntityTypes() []EntityType {
	return []EntityType{Disease, Symptom, Drug, Food, Check, Department, Producer}
}

// ParseEntityType resolves a label name case-insensitively.
func ParseEntityType(s string) (EntityType, error) {
	for _, t := range AllEntityTypes() {
		if strings.EqualFold(strings.TrimSpace(s), string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown entity type: %q", s)
}

func (t EntityType) String() string { return string(t) }

// EntityRef identifies a node by label and natural key
type EntityRef struct {
	Label EntityType `json:"label"`
	Name  string     `json:"name"`
}

func (r EntityRef) String() string { return fmt.Sprintf("%s(%s)", r.Label, r.Name) }

// Node represents a stored entity
type Node struct {
	ID         string         `json:"id"`
	Label      EntityType     `json:"label"`
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Ref returns the canonical reference of the node.
func (n Node) Ref() EntityRef { return EntityRef{Label: n.Label, Name: n.Name} }

// Edge is a normalized (source, target, type) tuple produced from raw records
type Edge struct {
	Source string       `json:"source"`
	Target string       `json:"target"`
	Type   RelationType `json:"type"`
}

// Relationship represents a stored directed edge between two entities
type Relationship struct {
	ID         string         `json:"id"`
	Type       RelationType   `json:"type"`
	From       EntityRef      `json:"from"`
	To         EntityRef      `json:"to"`
	Properties map[string]any `json:"properties,omitempty"`
}

// VectorRecord pairs an entity's canonical text with its type tag.
// ID equals the identity of the originating node or relationship.
type VectorRecord struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Type string `json:"type"`
}

// RankedCandidate is a query-scoped aggregation of traversal results
type RankedCandidate struct {
	Name       string         `json:"name"`
	Count      int            `json:"count"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Extraction is the structured output of the entity extraction call
type Extraction struct {
	Disease      []string `json:"Disease"`
	Symptom      []string `json:"Symptom"`
	Drug         []string `json:"Drug"`
	Relationship []string `json:"relationship"`
}

// Clean drops blank and whitespace-only entries and guarantees non-nil lists.
func (e Extraction) Clean() Extraction {
	return Extraction{
		Disease:      nonBlank(e.Disease),
		Symptom:      nonBlank(e.Symptom),
		Drug:         nonBlank(e.Drug),
		Relationship: nonBlank(e.Relationship),
	}
}

// IsEmpty reports whether no entity of any type was extracted.
func (e Extraction) IsEmpty() bool {
	c := e.Clean()
	return len(c.Disease) == 0 && len(c.Symptom) == 0 && len(c.Drug) == 0
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
