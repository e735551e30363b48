package qa

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/llm"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/logger"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/records"
)

// Extraction is the typed entity candidates found in a question.
type Extraction struct {
	Disease      records.StringList `json:"Disease"`
	Symptom      records.StringList `json:"Symptom"`
	Drug         records.StringList `json:"Drug"`
	Relationship records.StringList `json:"relationship"`
}

// Clean returns a copy with blank and surrounding whitespace removed.
func (e Extraction) Clean() Extraction {
	return Extraction{
		Disease:      e.Disease.Clean(),
		Symptom:      e.Symptom.Clean(),
		Drug:         e.Drug.Clean(),
		Relationship: e.Relationship.Clean(),
	}
}

// Empty reports whether no entity was extracted. Relationship hints alone do not count.
func (e Extraction) Empty() bool {
	return len(e.Disease) == 0 && len(e.Symptom) == 0 && len(e.Drug) == 0
}

// EntityExtractor turns a question into typed entity candidates.
type EntityExtractor interface {
	Extract(ctx context.Context, question string) (Extraction, error)
}

// Extractor asks the language model for entity candidates.
type Extractor struct {
	client llm.Client
	log    *logger.Logger
}

func NewExtractor(client llm.Client, log *logger.Logger) *Extractor {
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{client: client, log: log.With("component", "extractor")}
}

// Extract never fails on malformed model output; it returns an empty
// extraction instead. A model call failure returns an empty extraction and
// the error.
func (x *Extractor) Extract(ctx context.Context, question string) (Extraction, error) {
	raw, err := x.client.Complete(ctx, extractionSystemPrompt, extractionPrompt(question), llm.Options{JSON: true})
	if err != nil {
		return Extraction{}, fmt.Errorf("entity extraction: %w", err)
	}
	var out Extraction
	if err := llm.ParseJSON(raw, &out); err != nil {
		x.log.Warn("Malformed extraction output, treating as empty", "error", err, "output", truncate(raw, 200))
		return Extraction{}, nil
	}
	x.log.Debug("Entities extracted", "disease", out.Disease, "symptom", out.Symptom, "drug", out.Drug, "relationship", out.Relationship)
	return out, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
