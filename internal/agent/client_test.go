package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(provider Provider, url string, opts ...Option) *Client {
	base := []Option{
		WithAPIConfig(provider, url, "test-model"),
		WithRateLimit(0, 1),
		WithBackoff(time.Millisecond),
		WithRetry(2),
	}
	return NewClient("sk-test-key-0123456789", append(base, opts...)...)
}

func TestClient_OpenAI_JSONSchema(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test-key-0123456789", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body["model"])

		format, ok := body["response_format"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "json_schema", format["type"])
		schema := format["json_schema"].(map[string]any)
		assert.Equal(t, "chapter_outline", schema["name"])

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": `{"chapters":[]}`}}},
		})
	}))
	defer srv.Close()

	c := newTestClient(ProviderOpenAI, srv.URL)
	out, err := c.CompleteJSONWithSystem(context.Background(), "sys", "user", OutlineSchema)
	require.NoError(t, err)
	assert.Equal(t, `{"chapters":[]}`, out)
}

func TestClient_Anthropic_SchemaInSystemPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "sk-test-key-0123456789", r.Header.Get("x-api-key"))
		assert.NotEmpty(t, r.Header.Get("anthropic-version"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		system, _ := body["system"].(string)
		assert.Contains(t, system, "sys")
		assert.Contains(t, system, `"passed"`)

		json.NewEncoder(w).Encode(map[string]any{
			"content": []any{map[string]any{"text": `{"passed":true,"feedback":""}`}},
		})
	}))
	defer srv.Close()

	c := newTestClient(ProviderAnthropic, srv.URL)
	out, err := c.CompleteJSONWithSystem(context.Background(), "sys", "user", VerdictSchema)
	require.NoError(t, err)
	assert.Contains(t, out, `"passed":true`)
}

func TestClient_Ollama_TextAndJSON(t *testing.T) {
	var formats []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		formats = append(formats, req.Format)

		json.NewEncoder(w).Encode(map[string]any{"model": req.Model, "response": "hello"})
	}))
	defer srv.Close()

	c := newTestClient(ProviderOllama, srv.URL)
	_, err := c.CompleteWithSystem(context.Background(), "sys", "user")
	require.NoError(t, err)
	_, err = c.CompleteJSONWithSystem(context.Background(), "sys", "user", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"", "json"}, formats)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"response": "third time lucky"})
	}))
	defer srv.Close()

	c := newTestClient(ProviderOllama, srv.URL)
	out, err := c.CompleteWithSystem(context.Background(), "", "user")
	require.NoError(t, err)
	assert.Equal(t, "third time lucky", out)
	assert.Equal(t, int32(3), hits.Load())
}

func TestClient_ClientErrorIsTerminal(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(ProviderOpenAI, srv.URL)
	_, err := c.CompleteWithSystem(context.Background(), "", "user")
	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	_, err := newTestClient(ProviderOpenAI, srv.URL).CompleteWithSystem(context.Background(), "", "user")
	assert.Equal(t, KindEmpty, KindOf(err))
}
