// Package config aggregates the per-package settings into one value
// parsed from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/database"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/embeddings"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/llm"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/logger"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/metrics"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/neo4jstore"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/qa"
)

// Graph store backends.
const (
	BackendLibSQL = "libsql"
	BackendNeo4j  = "neo4j"
)

// Server configures the MCP server transport.
type Server struct {
	Transport   string `env:"MCP_TRANSPORT" envDefault:"stdio"`
	Addr        string `env:"MCP_ADDR" envDefault:":8080"`
	SSEEndpoint string `env:"MCP_SSE_ENDPOINT" envDefault:"/sse"`
}

// Config is the full process configuration.
type Config struct {
	Backend  string `env:"GRAPH_BACKEND" envDefault:"libsql"`
	DataFile string `env:"MEDKG_DATA" envDefault:"./data/medical.json"`

	Database   database.Config
	Neo4j      neo4jstore.Config
	Embeddings embeddings.Config
	LLM        llm.Config
	Log        logger.Config
	Metrics    metrics.Config
	QA         qa.Options
	Server     Server
}

// Error reports an invalid setting.
type Error struct {
	Field string
	Value any
	Msg   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid config %s=%v: %s", e.Field, e.Value, e.Msg)
}

// Load reads the given .env files (default ".env"), skipping missing ones,
// then parses the environment. Variables already set take precedence.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Backend) {
	case BackendLibSQL:
	case BackendNeo4j:
		if !c.Neo4j.Enabled() {
			return &Error{Field: "NEO4J_URI", Value: c.Neo4j.URI, Msg: "required when GRAPH_BACKEND=neo4j"}
		}
	default:
		return &Error{Field: "GRAPH_BACKEND", Value: c.Backend, Msg: "expected libsql or neo4j"}
	}
	if strings.TrimSpace(c.Database.URL) == "" {
		return &Error{Field: "LIBSQL_URL", Value: c.Database.URL, Msg: "must not be empty"}
	}
	if c.Database.EmbeddingDims <= 0 {
		return &Error{Field: "EMBEDDING_DIMS", Value: c.Database.EmbeddingDims, Msg: "must be positive"}
	}
	if c.QA.TopK <= 0 {
		return &Error{Field: "QA_TOP_K", Value: c.QA.TopK, Msg: "must be positive"}
	}
	if strings.TrimSpace(c.LLM.BaseURL) == "" {
		return &Error{Field: "LLM_BASE_URL", Value: c.LLM.BaseURL, Msg: "must not be empty"}
	}
	if c.LLM.Timeout <= 0 {
		return &Error{Field: "LLM_TIMEOUT", Value: c.LLM.Timeout, Msg: "must be positive"}
	}
	switch c.Server.Transport {
	case "stdio", "sse":
	default:
		return &Error{Field: "MCP_TRANSPORT", Value: c.Server.Transport, Msg: "expected stdio or sse"}
	}
	return nil
}

// LLMConfigured reports whether an API key is present or the endpoint is
// not a hosted one that requires it.
func (c *Config) LLMConfigured() bool {
	return c.LLM.APIKey != "" || !strings.Contains(c.LLM.BaseURL, "api.openai.com")
}

