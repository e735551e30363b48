package qa

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/graph"
)

// Dictionary finds known entity names inside a question by
// leftmost-longest substring match. It is the offline extractor used when
// the language model yields nothing.
type Dictionary struct {
	words  map[string]apptype.EntityType
	maxLen int // in runes
}

// NewDictionary builds a dictionary. A word listed under several types keeps
// the first type in apptype.AllEntityTypes order.
func NewDictionary(words map[apptype.EntityType][]string) *Dictionary {
	d := &Dictionary{words: map[string]apptype.EntityType{}}
	for _, t := range apptype.AllEntityTypes() {
		for _, w := range words[t] {
			w = strings.TrimSpace(w)
			if w == "" {
				continue
			}
			if _, ok := d.words[w]; ok {
				continue
			}
			d.words[w] = t
			if n := utf8.RuneCountInString(w); n > d.maxLen {
				d.maxLen = n
			}
		}
	}
	return d
}

// LoadDictionary reads every Disease, Symptom and Drug name from the store.
func LoadDictionary(ctx context.Context, store graph.Store) (*Dictionary, error) {
	words := map[apptype.EntityType][]string{}
	for _, t := range []apptype.EntityType{apptype.Disease, apptype.Symptom, apptype.Drug} {
		nodes, err := store.FindNodes(ctx, t, nil, 0)
		if err != nil {
			return nil, fmt.Errorf("load %s names: %w", t, err)
		}
		for _, n := range nodes {
			words[t] = append(words[t], n.Name)
		}
	}
	return NewDictionary(words), nil
}

// Len returns the number of distinct words.
func (d *Dictionary) Len() int { return len(d.words) }

// Match returns the non-overlapping words found in text, in order.
func (d *Dictionary) Match(text string) []apptype.EntityRef {
	runes := []rune(text)
	var out []apptype.EntityRef
	for i := 0; i < len(runes); {
		matched := 0
		for n := min(d.maxLen, len(runes)-i); n > 0; n-- {
			w := string(runes[i : i+n])
			if t, ok := d.words[w]; ok {
				out = append(out, apptype.EntityRef{Label: t, Name: w})
				matched = n
				break
			}
		}
		if matched == 0 {
			matched = 1
		}
		i += matched
	}
	return out
}

// Extract implements EntityExtractor.
func (d *Dictionary) Extract(_ context.Context, question string) (Extraction, error) {
	var e Extraction
	for _, ref := range d.Match(question) {
		switch ref.Label {
		case apptype.Disease:
			e.Disease = append(e.Disease, ref.Name)
		case apptype.Symptom:
			e.Symptom = append(e.Symptom, ref.Name)
		case apptype.Drug:
			e.Drug = append(e.Drug, ref.Name)
		}
	}
	if len(e.Symptom) > 0 {
		e.Relationship = append(e.Relationship, string(apptype.HasSymptom))
	}
	if len(e.Drug) > 0 {
		e.Relationship = append(e.Relationship, string(apptype.RecommendDrug))
	}
	return e, nil
}
