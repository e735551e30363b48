package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/buildinfo"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/builder"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/graph"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/logger"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/metrics"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/qa"
	"github.com/ZanzyTHEbar/medkg-libsql-go/pkg/medkg"
)

const serverName = "medkg-libsql-go"

// ErrNotConfirmed is returned by clear_graph without confirm=true.
var ErrNotConfirmed = errors.New("clear_graph requires confirm=true")

// MCPServer exposes the question answering service as MCP tools
type MCPServer struct {
	server   *mcp.Server
	svc      *medkg.Service
	dataFile string
	log      *logger.Logger
}

// NewMCPServer creates a new MCP server. dataFile is the default input of build_graph.
func NewMCPServer(svc *medkg.Service, dataFile string, log *logger.Logger) *MCPServer {
	if log == nil {
		log = logger.Nop()
	}
	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: buildinfo.Version,
	}, nil)

	s := &MCPServer{server: server, svc: svc, dataFile: dataFile, log: log.With("component", "mcp")}
	s.setupToolHandlers()
	return s
}

func mustSchema[T any]() *jsonschema.Schema {
	schema, err := jsonschema.For[T]()
	if err != nil {
		var zero T
		panic(fmt.Sprintf("failed to create schema for %T: %v", zero, err))
	}
	return schema
}

// setupToolHandlers registers all MCP tools
func (s *MCPServer) setupToolHandlers() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "ask_question",
		Title:        "Ask Question",
		Description:  "Answer a medical question: extract entities, ground them, rank diseases and drugs from the knowledge graph, then summarize.",
		InputSchema:  mustSchema[apptype.QuestionArgs](),
		OutputSchema: mustSchema[apptype.AskQuestionResult](),
	}, s.handleAskQuestion)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "extract_entities",
		Title:        "Extract Entities",
		Description:  "Extract Disease, Symptom and Drug mentions and relation hints from a question.",
		InputSchema:  mustSchema[apptype.QuestionArgs](),
		OutputSchema: mustSchema[apptype.EntitySet](),
	}, s.handleExtractEntities)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "ground_entities",
		Title:        "Ground Entities",
		Description:  "Resolve raw mentions to the nearest canonical entity names of one type.",
		InputSchema:  mustSchema[apptype.GroundEntitiesArgs](),
		OutputSchema: mustSchema[apptype.GroundEntitiesResult](),
	}, s.handleGroundEntities)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "diseases_by_symptoms",
		Title:        "Diseases By Symptoms",
		Description:  "Rank diseases by how many of the given symptoms they have.",
		InputSchema:  mustSchema[apptype.DiseasesBySymptomsArgs](),
		OutputSchema: mustSchema[apptype.DiseasesBySymptomsResult](),
	}, s.handleDiseasesBySymptoms)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "drugs_by_diseases",
		Title:        "Drugs By Diseases",
		Description:  "Top recommended drugs for the given diseases.",
		InputSchema:  mustSchema[apptype.DrugsByDiseasesArgs](),
		OutputSchema: mustSchema[apptype.DrugsByDiseasesResult](),
	}, s.handleDrugsByDiseases)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "build_graph",
		Title:        "Build Graph",
		Description:  "Load JSONL medical records into the graph store and vector index.",
		InputSchema:  mustSchema[apptype.BuildGraphArgs](),
		OutputSchema: mustSchema[apptype.BuildGraphResult](),
	}, s.handleBuildGraph)

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations: &mcp.ToolAnnotations{Title: "Clear Graph"},
		Name:        "clear_graph",
		Title:       "Clear Graph",
		Description: "Delete every node, relationship and vector record.",
		InputSchema: mustSchema[apptype.ClearGraphArgs](),
	}, s.handleClearGraph)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "graph_stats",
		Title:        "Graph Stats",
		Description:  "Node counts per label and relationship counts per type.",
		InputSchema:  mustSchema[apptype.GraphStatsArgs](),
		OutputSchema: mustSchema[apptype.GraphStatsResult](),
	}, s.handleGraphStats)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "health_check",
		Title:        "Health Check",
		Description:  "Returns server, backend and model information.",
		InputSchema:  mustSchema[apptype.HealthArgs](),
		OutputSchema: mustSchema[apptype.HealthResult](),
	}, s.handleHealth)
}

func rankedNames(in []qa.RankedCandidate) []apptype.RankedName {
	out := make([]apptype.RankedName, len(in))
	for i, c := range in {
		out[i] = apptype.RankedName{Name: c.Name, Count: c.Count}
	}
	return out
}

func textContent(s string) []mcp.Content {
	return []mcp.Content{&mcp.TextContent{Text: s}}
}

func (s *MCPServer) handleAskQuestion(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.QuestionArgs],
) (*mcp.CallToolResultFor[apptype.AskQuestionResult], error) {
	done := metrics.TimeTool("ask_question")
	var success bool
	defer func() { done(success) }()

	ans, err := s.svc.Ask(ctx, params.Arguments.Question)
	if err != nil {
		return nil, fmt.Errorf("ask_question failed: %w", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.AskQuestionResult]{
		Content: textContent(ans.Text),
		StructuredContent: apptype.AskQuestionResult{
			Answer:       ans.Text,
			Fallback:     ans.Fallback,
			Symptoms:     nonNil(ans.Grounded.Symptom),
			Diseases:     rankedNames(ans.Diseases.Ranked),
			DiseaseNames: nonNil(ans.DiseaseNames),
			Drugs:        nonNil(ans.Drugs),
		},
	}, nil
}

func (s *MCPServer) handleExtractEntities(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.QuestionArgs],
) (*mcp.CallToolResultFor[apptype.EntitySet], error) {
	done := metrics.TimeTool("extract_entities")
	var success bool
	defer func() { done(success) }()

	ext, err := s.svc.Extract(ctx, params.Arguments.Question)
	if err != nil {
		return nil, fmt.Errorf("extract_entities failed: %w", err)
	}
	success = true
	set := apptype.EntitySet{
		Disease:      nonNil(ext.Disease),
		Symptom:      nonNil(ext.Symptom),
		Drug:         nonNil(ext.Drug),
		Relationship: nonNil(ext.Relationship),
	}
	return &mcp.CallToolResultFor[apptype.EntitySet]{
		Content:           textContent(fmt.Sprintf("%d diseases, %d symptoms, %d drugs", len(set.Disease), len(set.Symptom), len(set.Drug))),
		StructuredContent: set,
	}, nil
}

func (s *MCPServer) handleGroundEntities(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.GroundEntitiesArgs],
) (*mcp.CallToolResultFor[apptype.GroundEntitiesResult], error) {
	done := metrics.TimeTool("ground_entities")
	var success bool
	defer func() { done(success) }()

	typ, err := apptype.ParseEntityType(params.Arguments.Type)
	if err != nil {
		return nil, err
	}
	names := s.svc.Ground(ctx, params.Arguments.Mentions, typ)
	success = true
	return &mcp.CallToolResultFor[apptype.GroundEntitiesResult]{
		Content:           textContent(strings.Join(names, ", ")),
		StructuredContent: apptype.GroundEntitiesResult{Type: string(typ), Names: nonNil(names)},
	}, nil
}

func (s *MCPServer) handleDiseasesBySymptoms(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.DiseasesBySymptomsArgs],
) (*mcp.CallToolResultFor[apptype.DiseasesBySymptomsResult], error) {
	done := metrics.TimeTool("diseases_by_symptoms")
	defer func() { done(true) }()

	r := s.svc.DiseasesBySymptoms(ctx, params.Arguments.Symptoms)
	return &mcp.CallToolResultFor[apptype.DiseasesBySymptomsResult]{
		Content:           textContent(strings.Join(r.Top, ", ")),
		StructuredContent: apptype.DiseasesBySymptomsResult{Ranked: rankedNames(r.Ranked), Top: nonNil(r.Top)},
	}, nil
}

func (s *MCPServer) handleDrugsByDiseases(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.DrugsByDiseasesArgs],
) (*mcp.CallToolResultFor[apptype.DrugsByDiseasesResult], error) {
	done := metrics.TimeTool("drugs_by_diseases")
	defer func() { done(true) }()

	drugs := s.svc.DrugsByDiseases(ctx, params.Arguments.Diseases)
	return &mcp.CallToolResultFor[apptype.DrugsByDiseasesResult]{
		Content:           textContent(strings.Join(drugs, ", ")),
		StructuredContent: apptype.DrugsByDiseasesResult{Drugs: nonNil(drugs)},
	}, nil
}

func (s *MCPServer) handleBuildGraph(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.BuildGraphArgs],
) (*mcp.CallToolResultFor[apptype.BuildGraphResult], error) {
	done := metrics.TimeTool("build_graph")
	var success bool
	defer func() { done(success) }()

	path := strings.TrimSpace(params.Arguments.Path)
	if path == "" {
		path = s.dataFile
	}
	opts := builder.DefaultOptions()
	opts.Reset = params.Arguments.Reset
	rep, err := s.svc.BuildFromFile(ctx, path, opts)
	if err != nil {
		return nil, fmt.Errorf("build_graph failed: %w", err)
	}
	success = true
	c := rep.Counts
	return &mcp.CallToolResultFor[apptype.BuildGraphResult]{
		Content: textContent(fmt.Sprintf("Created %d nodes and %d relationships from %d records", c.NodesCreated, c.EdgesCreated, rep.Normalized.Records)),
		StructuredContent: apptype.BuildGraphResult{
			Records:        rep.Normalized.Records,
			Malformed:      rep.Read.Malformed,
			NodesCreated:   c.NodesCreated,
			NodesDuplicate: c.NodesDuplicate,
			NodesFailed:    c.NodesFailed,
			EdgesCreated:   c.EdgesCreated,
			EdgesDuplicate: c.EdgesDuplicate,
			EdgesFailed:    c.EdgesFailed,
			VectorsIndexed: c.VectorsIndexed,
		},
	}, nil
}

func (s *MCPServer) handleClearGraph(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.ClearGraphArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("clear_graph")
	var success bool
	defer func() { done(success) }()

	if !params.Arguments.Confirm {
		return nil, ErrNotConfirmed
	}
	if err := s.svc.Clear(ctx); err != nil {
		return nil, fmt.Errorf("clear_graph failed: %w", err)
	}
	success = true
	s.log.Warn("Graph cleared via MCP")
	return &mcp.CallToolResultFor[any]{Content: textContent("Graph cleared")}, nil
}

func (s *MCPServer) handleGraphStats(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.GraphStatsArgs],
) (*mcp.CallToolResultFor[apptype.GraphStatsResult], error) {
	done := metrics.TimeTool("graph_stats")
	var success bool
	defer func() { done(success) }()

	st, err := s.svc.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph_stats failed: %w", err)
	}
	success = true
	res := statsResult(st)
	return &mcp.CallToolResultFor[apptype.GraphStatsResult]{
		Content:           textContent(fmt.Sprintf("%d nodes, %d relationships", res.TotalNodes, res.TotalRelationships)),
		StructuredContent: res,
	}, nil
}

func statsResult(st graph.Stats) apptype.GraphStatsResult {
	res := apptype.GraphStatsResult{
		Nodes:              make(map[string]int, len(st.Nodes)),
		Relationships:      make(map[string]int, len(st.Relationships)),
		TotalNodes:         st.TotalNodes(),
		TotalRelationships: st.TotalRelationships(),
	}
	for k, v := range st.Nodes {
		res.Nodes[string(k)] = v
	}
	for k, v := range st.Relationships {
		res.Relationships[string(k)] = v
	}
	return res
}

// handleHealth returns basic server health information
func (s *MCPServer) handleHealth(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.HealthArgs],
) (*mcp.CallToolResultFor[apptype.HealthResult], error) {
	done := metrics.TimeTool("health_check")
	defer func() { done(true) }()

	info := s.svc.Info()
	status := "ok"
	if err := s.svc.Ping(ctx); err != nil {
		status = "degraded: " + err.Error()
	}
	res := apptype.HealthResult{
		Name:               serverName,
		Version:            buildinfo.Version,
		Revision:           buildinfo.Revision,
		BuildDate:          buildinfo.BuildDate,
		Backend:            info.Backend,
		EmbeddingsProvider: info.EmbeddingsProvider,
		EmbeddingDims:      info.EmbeddingDims,
		LLMModel:           info.LLMModel,
		Status:             status,
	}
	return &mcp.CallToolResultFor[apptype.HealthResult]{
		Content:           textContent(status),
		StructuredContent: res,
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// observeLoop reports pool stats periodically until ctx is done.
func (s *MCPServer) observeLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.svc.ObserveResources()
			}
		}
	}()
}

// Run starts the MCP server with stdio transport
func (s *MCPServer) Run(ctx context.Context) error {
	s.observeLoop(ctx)
	return s.server.Run(ctx, mcp.NewStdioTransport())
}

// Handler returns the SSE handler mounted at endpoint.
func (s *MCPServer) Handler(endpoint string) http.Handler {
	handler := mcp.NewSSEHandler(func(r *http.Request) *mcp.Server { return s.server })
	mux := http.NewServeMux()
	mux.Handle(endpoint, handler)
	return mux
}

// RunSSE starts the MCP server over SSE at the given address and endpoint
func (s *MCPServer) RunSSE(ctx context.Context, addr string, endpoint string) error {
	s.observeLoop(ctx)
	srv := &http.Server{Addr: addr, Handler: s.Handler(endpoint), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("SSE MCP server listening", "addr", addr, "endpoint", endpoint)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
