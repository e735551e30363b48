package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/apptype"
)

type StepResult struct {
	Name      string `json:"name"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Summary   string `json:"summary,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

type Report struct {
	SSEURL     string       `json:"sse_url"`
	StartedAt  time.Time    `json:"started_at"`
	DurationMs int64        `json:"duration_ms"`
	Steps      []StepResult `json:"steps"`
	Passed     bool         `json:"passed"`
}

func main() {
	sseURL := flag.String("sse-url", "http://localhost:8080/sse", "SSE endpoint URL")
	data := flag.String("data", "", "JSONL file to build from, as seen by the server (default: server MEDKG_DATA)")
	build := flag.Bool("build", true, "Run build_graph before querying")
	symptom := flag.String("symptom", "头痛", "Symptom used for the query steps")
	question := flag.String("question", "我最近头痛还流鼻涕，可能是什么病？", "Question for ask_question")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := mcp.NewClient(&mcp.Implementation{Name: "integration-tester", Version: "dev"}, nil)
	transport := mcp.NewSSEClientTransport(*sseURL, nil)

	start := time.Now()
	report := Report{SSEURL: *sseURL, StartedAt: start}
	steps := make([]StepResult, 0, 12)

	// Connect
	tConn := time.Now()
	connRes := StepResult{Name: "connect"}
	session, err := client.Connect(ctx, transport)
	if err != nil {
		connRes.Error = err.Error()
		connRes.ElapsedMs = elapsedMsSince(tConn)
		report.Steps = append(steps, connRes)
		report.DurationMs = elapsedMsSince(start)
		writeReport(report)
		os.Exit(1)
	}
	defer session.Close()
	connRes.Success = true
	connRes.ElapsedMs = elapsedMsSince(tConn)
	steps = append(steps, connRes)

	steps = append(steps, runListTools(ctx, session))
	steps = append(steps, runTool(ctx, session, "health_check", apptype.HealthArgs{}))
	if *build {
		steps = append(steps, runTool(ctx, session, "build_graph", apptype.BuildGraphArgs{Path: *data}))
	}
	steps = append(steps, runTool(ctx, session, "graph_stats", apptype.GraphStatsArgs{}))
	steps = append(steps, runTool(ctx, session, "extract_entities", apptype.QuestionArgs{Question: *question}))
	steps = append(steps, runTool(ctx, session, "ground_entities", apptype.GroundEntitiesArgs{Mentions: []string{*symptom}, Type: string(apptype.Symptom)}))
	steps = append(steps, runTool(ctx, session, "diseases_by_symptoms", apptype.DiseasesBySymptomsArgs{Symptoms: []string{*symptom}}))
	steps = append(steps, runDrugsForTopDisease(ctx, session, *symptom))
	steps = append(steps, runTool(ctx, session, "ask_question", apptype.QuestionArgs{Question: *question}))

	report.Steps = steps
	report.DurationMs = elapsedMsSince(start)
	report.Passed = true
	for _, s := range steps {
		if !s.Success {
			report.Passed = false
			break
		}
	}
	writeReport(report)

	if !report.Passed {
		os.Exit(1)
	}
}

func writeReport(r Report) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	_ = enc.Encode(r)
}

func runListTools(ctx context.Context, session *mcp.ClientSession) StepResult {
	t0 := time.Now()
	res := StepResult{Name: "list_tools"}
	tools, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		res.Error = err.Error()
	} else {
		res.Success = true
		res.Summary = fmt.Sprintf("%d tools", len(tools.Tools))
	}
	res.ElapsedMs = elapsedMsSince(t0)
	return res
}

func callTool(ctx context.Context, session *mcp.ClientSession, name string, args any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	out, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: json.RawMessage(raw)})
	if err != nil {
		return nil, err
	}
	if out.IsError {
		return out, errors.New(textOf(out))
	}
	return out, nil
}

func runTool(ctx context.Context, session *mcp.ClientSession, name string, args any) StepResult {
	t0 := time.Now()
	res := StepResult{Name: name}
	out, err := callTool(ctx, session, name, args)
	if err != nil {
		res.Error = err.Error()
	} else {
		res.Success = true
		res.Summary = textOf(out)
	}
	res.ElapsedMs = elapsedMsSince(t0)
	return res
}

// runDrugsForTopDisease chains diseases_by_symptoms into drugs_by_diseases.
func runDrugsForTopDisease(ctx context.Context, session *mcp.ClientSession, symptom string) StepResult {
	t0 := time.Now()
	res := StepResult{Name: "drugs_by_diseases"}
	defer func() { res.ElapsedMs = elapsedMsSince(t0) }()

	out, err := callTool(ctx, session, "diseases_by_symptoms", apptype.DiseasesBySymptomsArgs{Symptoms: []string{symptom}})
	if err != nil {
		res.Error = err.Error()
		return res
	}
	var ranking apptype.DiseasesBySymptomsResult
	if err := decodeStructured(out, &ranking); err != nil {
		res.Error = err.Error()
		return res
	}
	if len(ranking.Top) == 0 {
		res.Error = fmt.Sprintf("no disease found for symptom %q", symptom)
		return res
	}
	out, err = callTool(ctx, session, "drugs_by_diseases", apptype.DrugsByDiseasesArgs{Diseases: ranking.Top[:1]})
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = true
	res.Summary = ranking.Top[0] + ": " + textOf(out)
	return res
}

func decodeStructured(out *mcp.CallToolResult, v any) error {
	if out.StructuredContent == nil {
		return errors.New("missing structured content")
	}
	raw, err := json.Marshal(out.StructuredContent)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func textOf(out *mcp.CallToolResult) string {
	for _, c := range out.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func elapsedMsSince(t time.Time) int64 {
	return time.Since(t).Milliseconds()
}
