// Package medkg is the library-first API: it owns the graph store, vector
// index and language model client, and exposes graph construction and
// question answering without any transport.
package medkg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/builder"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/config"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/database"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/embeddings"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/graph"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/llm"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/logger"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/neo4jstore"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/qa"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/records"
)

// Info describes the wiring of a service.
type Info struct {
	Backend            string `json:"backend"`
	EmbeddingsProvider string `json:"embeddings_provider"`
	EmbeddingDims      int    `json:"embedding_dims"`
	LLMModel           string `json:"llm_model"`
}

// Deps are the collaborators of a service built by hand.
type Deps struct {
	Store   graph.Store
	Index   graph.VectorIndex
	LLM     llm.Client
	Log     *logger.Logger
	Options qa.Options
	Info    Info
}

// Service composes the pipeline components. Safe for concurrent queries;
// builds must not overlap.
type Service struct {
	store graph.Store
	index graph.VectorIndex
	llm   llm.Client
	log   *logger.Logger
	opts  qa.Options
	info  Info

	mu       sync.RWMutex
	pipeline *qa.Pipeline

	pingers []func(context.Context) error
	closers []func(context.Context) error
	// observers report resource gauges such as pool usage.
	observers []func()
}

// NewWithDeps wraps existing collaborators.
func NewWithDeps(ctx context.Context, d Deps) *Service {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	s := &Service{store: d.Store, index: d.Index, llm: d.LLM, log: d.Log, opts: d.Options, info: d.Info}
	s.refreshPipeline(ctx)
	return s
}

// New opens the configured backends. The libSQL database always holds the
// vector index; GRAPH_BACKEND=neo4j moves nodes and edges to Neo4j.
func New(ctx context.Context, cfg *Config, log *logger.Logger) (*Service, error) {
	if log == nil {
		log = logger.Nop()
	}
	provider, err := embeddings.NewFromConfig(cfg.Embeddings, cfg.Database.EmbeddingDims)
	if err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}
	dm, err := database.NewDBManager(&cfg.Database, provider, log)
	if err != nil {
		return nil, err
	}

	d := Deps{
		Store:   dm,
		Index:   dm.Vectors(),
		LLM:     llm.NewChatClient(cfg.LLM, log),
		Log:     log,
		Options: cfg.QA,
		Info: Info{
			Backend:            config.BackendLibSQL,
			EmbeddingsProvider: provider.Name(),
			EmbeddingDims:      provider.Dimensions(),
			LLMModel:           cfg.LLM.Model,
		},
	}
	closers := []func(context.Context) error{func(context.Context) error { return dm.Close() }}
	pingers := []func(context.Context) error{dm.Ping}

	if strings.EqualFold(cfg.Backend, config.BackendNeo4j) {
		client, err := neo4jstore.NewClient(ctx, cfg.Neo4j, log)
		if err != nil {
			_ = dm.Close()
			return nil, err
		}
		ns := neo4jstore.NewStore(client)
		ns.EnsureSchema(ctx)
		d.Store = ns
		d.Info.Backend = config.BackendNeo4j
		closers = append([]func(context.Context) error{client.Close}, closers...)
		pingers = append(pingers, client.Driver.VerifyConnectivity)
	}

	s := NewWithDeps(ctx, d)
	s.closers = closers
	s.pingers = pingers
	s.observers = []func(){dm.ObservePool}
	log.Info("Service ready", "backend", d.Info.Backend, "embeddings", d.Info.EmbeddingsProvider, "dims", d.Info.EmbeddingDims)
	return s, nil
}

// refreshPipeline rebuilds the pipeline, reloading the dictionary when enabled.
func (s *Service) refreshPipeline(ctx context.Context) {
	p := qa.New(s.store, s.index, s.llm, s.log, s.opts)
	if s.opts.DictionaryFallback {
		dict, err := qa.LoadDictionary(ctx, s.store)
		if err != nil {
			s.log.Warn("Dictionary fallback unavailable", "error", err)
		} else {
			p = p.WithDictionary(dict)
		}
	}
	s.mu.Lock()
	s.pipeline = p
	s.mu.Unlock()
}

func (s *Service) current() *qa.Pipeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pipeline
}

// Info returns the service wiring.
func (s *Service) Info() Info { return s.info }

// Ask answers a question end to end.
func (s *Service) Ask(ctx context.Context, question string) (qa.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return qa.Answer{}, errors.New("question is empty")
	}
	return s.current().Ask(ctx, question)
}

// Extract runs entity extraction only. Blank entries are removed.
func (s *Service) Extract(ctx context.Context, question string) (qa.Extraction, error) {
	ext, err := s.current().Extractor().Extract(ctx, question)
	return ext.Clean(), err
}

// Ground maps mentions to canonical names of type typ.
func (s *Service) Ground(ctx context.Context, mentions []string, typ apptype.EntityType) []string {
	return s.current().Grounder().Ground(ctx, mentions, typ)
}

func (s *Service) DiseasesBySymptoms(ctx context.Context, symptoms []string) qa.DiseaseRanking {
	return s.current().Retriever().DiseasesBySymptoms(ctx, symptoms)
}

func (s *Service) DrugsByDiseases(ctx context.Context, diseases []string) []string {
	return s.current().Retriever().DrugsByDiseases(ctx, diseases)
}

// BuildReport summarizes a build from a JSONL file.
type BuildReport struct {
	Read       records.ReadStats `json:"read"`
	Normalized records.Stats     `json:"normalized"`
	Nodes      int               `json:"nodes"`
	Edges      int               `json:"edges"`
	Counts     builder.Counts    `json:"counts"`
}

// BuildFromFile loads records from path and writes them into the graph.
func (s *Service) BuildFromFile(ctx context.Context, path string, opts builder.Options) (BuildReport, error) {
	n, rs, err := records.LoadFile(ctx, path, s.log)
	if err != nil {
		return BuildReport{Read: rs}, err
	}
	rep, err := s.Build(ctx, n, opts)
	rep.Read = rs
	return rep, err
}

// Build writes already normalized records.
func (s *Service) Build(ctx context.Context, n records.Normalized, opts builder.Options) (BuildReport, error) {
	rep := BuildReport{Normalized: n.Stats, Nodes: n.NodeCount(), Edges: n.EdgeCount()}
	counts, err := builder.New(s.store, s.index, s.log, opts).Build(ctx, n)
	rep.Counts = counts
	s.refreshPipeline(ctx)
	return rep, err
}

// Clear removes every node, edge and vector record.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.store.ClearAll(ctx); err != nil {
		return err
	}
	if s.index != nil {
		if err := s.index.ClearAll(ctx); err != nil {
			return err
		}
	}
	s.refreshPipeline(ctx)
	return nil
}

// Stats reports node and edge counts.
func (s *Service) Stats(ctx context.Context) (graph.Stats, error) {
	return s.store.Stats(ctx)
}

// Ping checks every backend.
func (s *Service) Ping(ctx context.Context) error {
	for _, p := range s.pingers {
		if err := p(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ObserveResources pushes backend resource gauges to the metrics recorder.
func (s *Service) ObserveResources() {
	for _, o := range s.observers {
		o()
	}
}

// Close releases the backends.
func (s *Service) Close(ctx context.Context) error {
	var errs []error
	for _, c := range s.closers {
		if err := c(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
