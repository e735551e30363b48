package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(url string) Config {
	cfg := NewConfig()
	cfg.BaseURL = url
	cfg.APIKey = "sk-test"
	cfg.Model = "qwen-plus"
	cfg.Timeout = 5 * time.Second
	cfg.RetryInitialInterval = time.Millisecond
	cfg.RetryMaxElapsed = 2 * time.Second
	return cfg
}

const okBody = `{"choices":[{"message":{"role":"assistant","content":"{\"Disease\":[\"感冒\"]}"},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`

func TestCompleteSendsJSONMode(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = io.WriteString(w, okBody)
	}))
	defer srv.Close()

	c := NewChatClient(testConfig(srv.URL+"/v1/"), nil)
	out, err := c.Complete(context.Background(), "sys", "感冒吃什么药", Options{JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"Disease":["感冒"]}`, out)

	assert.Equal(t, "qwen-plus", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "感冒吃什么药", got.Messages[1].Content)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestCompleteTemperatureOverride(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = io.WriteString(w, okBody)
	}))
	defer srv.Close()

	zero := 0.0
	_, err := NewChatClient(testConfig(srv.URL), nil).Complete(context.Background(), "s", "u", Options{Temperature: &zero})
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Temperature)
	assert.Nil(t, got.ResponseFormat)
}

func TestCompleteRetriesTransientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, okBody)
	}))
	defer srv.Close()

	out, err := NewChatClient(testConfig(srv.URL), nil).Complete(context.Background(), "s", "u", Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"bad key"}`)
	}))
	defer srv.Close()

	_, err := NewChatClient(testConfig(srv.URL), nil).Complete(context.Background(), "s", "u", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestCompleteGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxRetries = 2
	_, err := NewChatClient(cfg, nil).Complete(context.Background(), "s", "u", Options{})
	require.Error(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestCompleteEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"  "}}]}`)
	}))
	defer srv.Close()

	_, err := NewChatClient(testConfig(srv.URL), nil).Complete(context.Background(), "s", "u", Options{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestExtractJSONObject(t *testing.T) {
	cases := map[string]string{
		"{\"a\":1}":                         `{"a":1}`,
		"```json\n{\"a\":1}\n```":           `{"a":1}`,
		"好的，结果如下：{\"a\":[\"咳嗽\"]} 希望有帮助": `{"a":["咳嗽"]}`,
		"no json here":                      "no json here",
	}
	for in, want := range cases {
		assert.Equal(t, want, ExtractJSONObject(in), in)
	}
}

func TestParseJSONRepairs(t *testing.T) {
	type out struct {
		Disease []string `json:"Disease"`
		Symptom []string `json:"Symptom"`
	}

	var v out
	require.NoError(t, ParseJSON("```json\n{\"Disease\":[\"感冒\"],\"Symptom\":[]}\n```", &v))
	assert.Equal(t, []string{"感冒"}, v.Disease)

	v = out{}
	require.NoError(t, ParseJSON(`{"Disease":["感冒"],"Symptom":["咳嗽"]`, &v))
	assert.Equal(t, []string{"咳嗽"}, v.Symptom)

	v = out{}
	require.NoError(t, ParseJSON(`{'Disease': ['肺炎'], 'Symptom': ['发热',],}`, &v))
	assert.Equal(t, []string{"肺炎"}, v.Disease)
	assert.Equal(t, []string{"发热"}, v.Symptom)

	assert.Error(t, ParseJSON("", &v))
}

func TestClientFunc(t *testing.T) {
	var c Client = ClientFunc(func(_ context.Context, system, user string, _ Options) (string, error) {
		return system + user, nil
	})
	out, err := c.Complete(context.Background(), "a", "b", Options{})
	require.NoError(t, err)
	assert.Equal(t, "ab", out)
}
