package embeddings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path"
)

type ollamaProvider struct {
	host  string
	model string
	dims  int
	http  *http.Client
}

func newOllama(cfg Config) Provider {
	return &ollamaProvider{
		host:  cfg.OllamaHost,
		model: cfg.OllamaModel,
		dims:  cfg.OllamaDims,
		http:  &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

func (p *ollamaProvider) Name() string    { return "ollama" }
func (p *ollamaProvider) Dimensions() int { return p.dims }

func (p *ollamaProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	base, err := url.Parse(p.host)
	if err != nil {
		return nil, err
	}
	// Prefer /api/embed (v0.2.6+); fall back to /api/embeddings one input at a time
	embedURL := *base
	embedURL.Path = path.Join(embedURL.Path, "/api/embed")
	body, err := json.Marshal(map[string]any{"model": p.model, "input": inputs})
	if err != nil {
		return nil, err
	}

	resp, err := p.post(ctx, embedURL.String(), body)
	if err != nil && (isTimeout(err) || errors.Is(err, context.DeadlineExceeded)) && ctx.Err() == nil {
		// cold model loads often time out once
		resp, err = p.post(ctx, embedURL.String(), body)
	}
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusMethodNotAllowed {
		resp.Body.Close()
		legacyURL := *base
		legacyURL.Path = path.Join(legacyURL.Path, "/api/embeddings")
		return p.embedLegacy(ctx, legacyURL.String(), inputs)
	}
	defer resp.Body.Close()
	if err := ollamaStatusError(resp); err != nil {
		return nil, err
	}
	var out struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(out.Embeddings), len(inputs))
	}
	return out.Embeddings, nil
}

func (p *ollamaProvider) embedLegacy(ctx context.Context, endpoint string, inputs []string) ([][]float32, error) {
	results := make([][]float32, 0, len(inputs))
	for _, in := range inputs {
		body, err := json.Marshal(map[string]any{"model": p.model, "prompt": in})
		if err != nil {
			return nil, err
		}
		resp, err := p.post(ctx, endpoint, body)
		if err != nil {
			return nil, err
		}
		var single struct {
			Embedding []float64 `json:"embedding"`
		}
		err = ollamaStatusError(resp)
		if err == nil {
			err = json.NewDecoder(resp.Body).Decode(&single)
		}
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		if len(single.Embedding) == 0 {
			return nil, fmt.Errorf("ollama returned no embedding")
		}
		results = append(results, f64to32(single.Embedding))
	}
	return results, nil
}

func (p *ollamaProvider) post(ctx context.Context, endpoint string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return p.http.Do(req)
}

func ollamaStatusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var b struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&b)
	if b.Error != "" {
		return fmt.Errorf("ollama error: %s", b.Error)
	}
	return fmt.Errorf("ollama http status: %s", resp.Status)
}

// isTimeout returns true if the error represents a timeout
func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
