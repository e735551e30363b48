// Package qa answers medical questions: entity extraction, vector grounding,
// graph retrieval with frequency ranking, and answer synthesis.
package qa

import (
	"context"
	"errors"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/graph"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/llm"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/logger"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/metrics"
)

// DefaultFallbackMessage is returned when a question grounds to nothing.
const DefaultFallbackMessage = "您好，我是华佗，希望可以帮到您。"

// Options tune the query pipeline.
type Options struct {
	TopK int `env:"QA_TOP_K" envDefault:"3"`
	// DedupeMentions counts a canonical name once even when several mentions ground to it.
	DedupeMentions  bool   `env:"QA_DEDUPE_MENTIONS"`
	FallbackMessage string `env:"QA_FALLBACK_MESSAGE" envDefault:"您好，我是华佗，希望可以帮到您。"`
	// DictionaryFallback matches known names in the question when the model extracts nothing.
	DictionaryFallback bool `env:"QA_DICTIONARY_FALLBACK"`
}

func DefaultOptions() Options {
	return Options{TopK: DefaultTopK, FallbackMessage: DefaultFallbackMessage}
}

// Grounded holds canonical names per type.
type Grounded struct {
	Disease []string `json:"disease"`
	Symptom []string `json:"symptom"`
	Drug    []string `json:"drug"`
}

func (g Grounded) empty() bool {
	return len(g.Disease) == 0 && len(g.Symptom) == 0 && len(g.Drug) == 0
}

// Answer is the outcome of one question.
type Answer struct {
	Question     string         `json:"question"`
	Extraction   Extraction     `json:"extraction"`
	Grounded     Grounded       `json:"grounded"`
	Diseases     DiseaseRanking `json:"diseases"`
	DiseaseNames []string       `json:"disease_names"`
	Drugs        []string       `json:"drugs"`
	Text         string         `json:"text"`
	Fallback     bool           `json:"fallback"`
}

// Pipeline runs the stages sequentially. It holds no per-query state and is
// safe for concurrent use.
type Pipeline struct {
	store     graph.Store
	extractor EntityExtractor
	dict      EntityExtractor
	grounder  *Grounder
	retriever *Retriever
	synth     *Synthesizer
	log       *logger.Logger
	opts      Options
}

// New wires the pipeline from its collaborators.
func New(store graph.Store, index graph.VectorIndex, client llm.Client, log *logger.Logger, opts Options) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.FallbackMessage == "" {
		opts.FallbackMessage = DefaultFallbackMessage
	}
	return &Pipeline{
		store:     store,
		extractor: NewExtractor(client, log),
		grounder:  NewGrounder(index, log, opts.DedupeMentions),
		retriever: NewRetriever(store, log, opts.TopK),
		synth:     NewSynthesizer(client),
		log:       log.With("component", "pipeline"),
		opts:      opts,
	}
}

// WithDictionary returns a copy that falls back to d when extraction is empty.
func (p *Pipeline) WithDictionary(d EntityExtractor) *Pipeline {
	cp := *p
	cp.dict = d
	return &cp
}

// Extractor exposes the extraction stage.
func (p *Pipeline) Extractor() EntityExtractor { return p.extractor }

// Grounder exposes the grounding stage.
func (p *Pipeline) Grounder() *Grounder { return p.grounder }

// Retriever exposes the retrieval stage.
func (p *Pipeline) Retriever() *Retriever { return p.retriever }

// Ask answers one question. Collaborator failures before synthesis degrade
// to empty stage results; a synthesis failure is returned.
func (p *Pipeline) Ask(ctx context.Context, question string) (Answer, error) {
	done := metrics.TimeStage("ask")
	success := false
	defer func() { done(success) }()

	ans := Answer{Question: question}

	ext := p.extract(ctx, question)
	ans.Extraction = ext

	ans.Grounded = Grounded{
		Disease: p.grounder.Ground(ctx, ext.Disease, apptype.Disease),
		Symptom: p.grounder.Ground(ctx, ext.Symptom, apptype.Symptom),
		Drug:    p.grounder.Ground(ctx, ext.Drug, apptype.Drug),
	}
	if ans.Grounded.empty() {
		p.log.Info("Nothing grounded, returning fallback answer")
		ans.Diseases = DiseaseRanking{Ranked: []RankedCandidate{}, Top: []string{}}
		ans.DiseaseNames = []string{}
		ans.Drugs = []string{}
		ans.Text = p.opts.FallbackMessage
		ans.Fallback = true
		success = true
		return ans, nil
	}

	ans.Diseases = p.retriever.DiseasesBySymptoms(ctx, ans.Grounded.Symptom)
	ans.DiseaseNames = uniq(append(append([]string{}, ans.Grounded.Disease...), ans.Diseases.Top...))
	drugs := p.retriever.DrugsByDiseases(ctx, ans.DiseaseNames)
	ans.Drugs = truncateNames(uniq(append(drugs, ans.Grounded.Drug...)), p.opts.TopK)
	p.log.Info("Retrieved candidates", "diseases", ans.DiseaseNames, "drugs", ans.Drugs)

	described := p.describe(ctx, ans.Diseases.Ranked, ans.DiseaseNames)
	text, err := p.synthesize(ctx, question, described, ans.DiseaseNames, ans.Drugs)
	if err != nil {
		return ans, err
	}
	ans.Text = text
	success = true
	return ans, nil
}

func (p *Pipeline) extract(ctx context.Context, question string) Extraction {
	done := metrics.TimeStage("extract")
	ext, err := p.extractor.Extract(ctx, question)
	done(err == nil)
	if err != nil {
		p.log.Warn("Entity extraction unavailable", "error", err)
	}
	ext = ext.Clean()
	if ext.Empty() && p.dict != nil {
		if dext, derr := p.dict.Extract(ctx, question); derr == nil {
			p.log.Debug("Using dictionary extraction", "disease", dext.Disease, "symptom", dext.Symptom, "drug", dext.Drug)
			ext = dext.Clean()
		}
	}
	return ext
}

// describe adds attributes for named diseases that came from grounding
// rather than ranking, so the summary prompt can include their details.
func (p *Pipeline) describe(ctx context.Context, ranked []RankedCandidate, names []string) []RankedCandidate {
	have := make(map[string]struct{}, len(ranked))
	for _, c := range ranked {
		have[c.Name] = struct{}{}
	}
	out := append([]RankedCandidate(nil), ranked...)
	for _, name := range names {
		if _, ok := have[name]; ok {
			continue
		}
		nodes, err := p.store.FindNodes(ctx, apptype.Disease, map[string]any{"name": name}, 1)
		if err != nil || len(nodes) == 0 {
			continue
		}
		out = append(out, RankedCandidate{Name: name, Attributes: nodes[0].Properties})
	}
	return out
}

func (p *Pipeline) synthesize(ctx context.Context, question string, ranked []RankedCandidate, diseases, drugs []string) (string, error) {
	done := metrics.TimeStage("synthesize")
	text, err := p.synth.Summarize(ctx, question, ranked, diseases, drugs)
	done(err == nil)
	if err != nil && !errors.Is(err, context.Canceled) {
		p.log.Error("Answer synthesis failed", "error", err)
	}
	return text, err
}

func uniq(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func truncateNames(names []string, k int) []string {
	if len(names) > k {
		return names[:k]
	}
	return names
}
