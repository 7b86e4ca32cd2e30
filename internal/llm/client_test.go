package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rx3lixir/bookclub/internal/summary"
	"github.com/rx3lixir/bookclub/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleRequest = summary.Request{
	Topic:       "Is Ahab a tragic hero?",
	RoundNumber: 2,
	Lines: []summary.Line{
		{Name: "alice", Text: "He is doomed by his own obsession."},
		{Name: "bob", Text: "He never earns our sympathy."},
	},
}

func TestClient_OpenAI(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"pro\":[\"obsession\"],\"con\":[\"cruelty\"],\"main_issues\":[],\"unresolved_issues\":[\"fate\"]}"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	c, err := NewClient(Config{Provider: ProviderOpenAI, BaseURL: server.URL, APIKey: "key", Model: "m"}, logger.Discard())
	require.NoError(t, err)

	sum, err := c.Summarize(context.Background(), sampleRequest)
	require.NoError(t, err)
	assert.Equal(t, []string{"obsession"}, sum.Pro)
	assert.Equal(t, []string{"cruelty"}, sum.Con)
	assert.Equal(t, []string{"fate"}, sum.UnresolvedIssues)

	assert.Equal(t, "m", gotBody["model"])
	msgs := gotBody["messages"].([]any)
	require.Len(t, msgs, 2)
	user := msgs[1].(map[string]any)["content"].(string)
	assert.Contains(t, user, "Round: 2")
	assert.Contains(t, user, "He never earns our sympathy.")
}

func TestClient_AnthropicFencedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.System)
		for _, m := range req.Messages {
			assert.NotEqual(t, "system", m.Role)
		}

		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Here you go:\n` + "```json\\n" + `{\"pro\":[\"a\"],\"con\":[],\"main_issues\":[\"b\"],\"unresolved_issues\":[]}\n` + "```" + `"}],"stop_reason":"end_turn"}`))
	}))
	defer server.Close()

	c, err := NewClient(Config{Provider: ProviderAnthropic, BaseURL: server.URL, APIKey: "key", Model: "m"}, logger.Discard())
	require.NoError(t, err)

	sum, err := c.Summarize(context.Background(), sampleRequest)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, sum.Pro)
	assert.Equal(t, []string{"b"}, sum.MainIssues)
}

func TestClient_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c, err := NewClient(Config{Provider: ProviderOpenAI, BaseURL: server.URL, Model: "m"}, logger.Discard())
	require.NoError(t, err)

	_, err = c.Summarize(context.Background(), sampleRequest)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestClient_BadRequestIsNotTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c, err := NewClient(Config{Provider: ProviderOpenAI, BaseURL: server.URL, Model: "m"}, logger.Discard())
	require.NoError(t, err)

	_, err = c.Summarize(context.Background(), sampleRequest)
	require.Error(t, err)
	assert.False(t, IsTransient(err))
}

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient(Config{Provider: "ollama", Model: "m"}, logger.Discard())
	assert.Error(t, err)
}

func TestProviders_BuildURL(t *testing.T) {
	tests := []struct {
		kind    ProviderKind
		baseURL string
		want    string
	}{
		{ProviderOpenAI, "", "https://api.openai.com/v1/chat/completions"},
		{ProviderOpenAI, "http://gateway/", "http://gateway/v1/chat/completions"},
		{ProviderAnthropic, "", "https://api.anthropic.com/v1/messages"},
		{ProviderAnthropic, "https://custom.api.com", "https://custom.api.com/v1/messages"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind)+tt.baseURL, func(t *testing.T) {
			p, err := ProviderFor(tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.BuildURL(tt.baseURL))
		})
	}
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, extractJSON(`sure: {"a":1} done`))
	assert.Empty(t, extractJSON("no json here"))
}
