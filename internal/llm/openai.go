package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/logger"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ChatClient calls an OpenAI-compatible /chat/completions endpoint.
type ChatClient struct {
	cfg        Config
	endpoint   string
	httpClient *http.Client
	log        *logger.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// NewChatClient returns a client for cfg.
func NewChatClient(cfg Config, log *logger.Logger) *ChatClient {
	if log == nil {
		log = logger.Nop()
	}
	return &ChatClient{
		cfg:        cfg,
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.With("component", "llm", "model", cfg.Model),
	}
}

// Complete sends one chat completion. Network errors and 429/500/502/503
// responses are retried with exponential backoff.
func (c *ChatClient) Complete(ctx context.Context, system, user string, opts Options) (string, error) {
	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	if opts.Temperature != nil {
		payload.Temperature = *opts.Temperature
	}
	if opts.JSON {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	var content string
	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.cfg.APIKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return c.handleAPIError(resp.StatusCode, respBody)
		}

		var out chatResponse
		if err := json.Unmarshal(respBody, &out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}
		if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
			return backoff.Permanent(ErrEmptyResponse)
		}
		c.log.Debug("LLM completion done",
			"duration", time.Since(start),
			"prompt_tokens", out.Usage.PromptTokens,
			"completion_tokens", out.Usage.CompletionTokens,
			"finish_reason", out.Choices[0].FinishReason)
		content = out.Choices[0].Message.Content
		return nil
	}

	notify := func(err error, wait time.Duration) {
		metrics.Default().IncLLMRetry("openai")
		c.log.Warn("LLM request failed, retrying", "error", err, "wait", wait)
	}
	if err := backoff.RetryNotify(operation, c.backoff(ctx), notify); err != nil {
		return "", err
	}
	return content, nil
}

func (c *ChatClient) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if c.cfg.RetryInitialInterval > 0 {
		b.InitialInterval = c.cfg.RetryInitialInterval
	}
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = c.cfg.RetryMaxElapsed
	var bo backoff.BackOff = b
	if c.cfg.MaxRetries >= 0 {
		bo = backoff.WithMaxRetries(b, uint64(c.cfg.MaxRetries))
	}
	return backoff.WithContext(bo, ctx)
}

func (c *ChatClient) handleAPIError(statusCode int, body []byte) error {
	err := fmt.Errorf("LLM API error: status %d, body: %s", statusCode, truncate(string(body), 500))
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return err // transient
	default:
		c.log.Error("LLM API returned error status", "status", statusCode)
		return backoff.Permanent(err)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
