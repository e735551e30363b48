package embeddings

import (
	"context"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Provider defines a simple embeddings provider interface.
// Implementations should be concurrency-safe.
type Provider interface {
	// Name returns the provider name (e.g., "hash", "ollama").
	Name() string
	// Dimensions returns the embedding dimensionality this provider produces.
	Dimensions() int
	// Embed returns one embedding per input string.
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Config selects and configures the embeddings provider.
type Config struct {
	Provider    string        `env:"EMBEDDINGS_PROVIDER" envDefault:"hash"`
	AdaptMode   string        `env:"EMBEDDINGS_ADAPT_MODE" envDefault:"pad_or_truncate"`
	HTTPTimeout time.Duration `env:"EMBEDDINGS_HTTP_TIMEOUT" envDefault:"60s"`

	HashDims int `env:"EMBEDDINGS_HASH_DIMS" envDefault:"384"`

	OpenAIBaseURL string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIModel   string `env:"OPENAI_EMBEDDINGS_MODEL" envDefault:"text-embedding-3-small"`
	OpenAIDims    int    `env:"OPENAI_EMBEDDINGS_DIMS"`

	OllamaHost  string `env:"OLLAMA_HOST" envDefault:"http://localhost:11434"`
	OllamaModel string `env:"OLLAMA_EMBEDDINGS_MODEL" envDefault:"nomic-embed-text"`
	OllamaDims  int    `env:"OLLAMA_EMBEDDINGS_DIMS" envDefault:"768"`
}

// NewConfig returns the defaults used when nothing is set in the environment.
func NewConfig() Config {
	return Config{
		Provider:      "hash",
		AdaptMode:     "pad_or_truncate",
		HTTPTimeout:   60 * time.Second,
		HashDims:      384,
		OpenAIBaseURL: "https://api.openai.com/v1",
		OpenAIModel:   "text-embedding-3-small",
		OllamaHost:    "http://localhost:11434",
		OllamaModel:   "nomic-embed-text",
		OllamaDims:    768,
	}
}

// NewFromConfig constructs the configured provider.
// EMBEDDINGS_PROVIDER: "hash" (default), "openai", "localai", or "ollama".
// When targetDims is positive the provider is adapted to that dimensionality.
func NewFromConfig(cfg Config, targetDims int) (Provider, error) {
	var p Provider
	switch name := strings.ToLower(strings.TrimSpace(cfg.Provider)); name {
	case "", "hash", "local":
		p = NewHashProvider(cfg.HashDims)
	case "openai", "localai", "llamacpp", "llama.cpp":
		if name == "openai" && cfg.OpenAIAPIKey == "" && strings.Contains(cfg.OpenAIBaseURL, "api.openai.com") {
			return nil, fmt.Errorf("embeddings provider %q requires OPENAI_API_KEY", name)
		}
		p = newOpenAI(cfg)
	case "ollama":
		p = newOllama(cfg)
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", cfg.Provider)
	}
	return WrapToDims(p, targetDims, cfg.AdaptMode), nil
}
