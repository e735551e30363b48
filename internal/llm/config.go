package llm

import "time"

// Config configures the chat completion client. Any OpenAI-compatible
// endpoint works (OpenAI, DeepSeek, Qwen/DashScope compatible mode, Ollama /v1, LocalAI).
type Config struct {
	BaseURL     string        `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	APIKey      string        `env:"LLM_API_KEY" envDefault:"${OPENAI_API_KEY}" envExpand:"true"`
	Model       string        `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	Temperature float64       `env:"LLM_TEMPERATURE" envDefault:"0.2"`
	MaxTokens   int           `env:"LLM_MAX_TOKENS"`
	Timeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`

	MaxRetries           int           `env:"LLM_MAX_RETRIES" envDefault:"3"`
	RetryInitialInterval time.Duration `env:"LLM_RETRY_INITIAL_INTERVAL" envDefault:"500ms"`
	RetryMaxElapsed      time.Duration `env:"LLM_RETRY_MAX_ELAPSED" envDefault:"2m"`
}

// NewConfig returns the defaults.
func NewConfig() Config {
	return Config{
		BaseURL:              "https://api.openai.com/v1",
		Model:                "gpt-4o-mini",
		Temperature:          0.2,
		Timeout:              60 * time.Second,
		MaxRetries:           3,
		RetryInitialInterval: 500 * time.Millisecond,
		RetryMaxElapsed:      2 * time.Minute,
	}
}
