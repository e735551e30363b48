package qa

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/llm"
)

// Synthesizer writes the final answer from the ranked context.
type Synthesizer struct {
	client llm.Client
}

func NewSynthesizer(client llm.Client) *Synthesizer {
	return &Synthesizer{client: client}
}

// Summarize returns the raw model text.
func (s *Synthesizer) Summarize(ctx context.Context, question string, ranked []RankedCandidate, diseaseNames, drugNames []string) (string, error) {
	text, err := s.client.Complete(ctx, summarySystemPrompt, summaryPrompt(question, ranked, diseaseNames, drugNames), llm.Options{})
	if err != nil {
		return "", fmt.Errorf("answer synthesis: %w", err)
	}
	return text, nil
}
