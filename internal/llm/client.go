// Package llm calls an external chat model to summarize discussion rounds.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rx3lixir/bookclub/internal/summary"
)

// maxResponseSize limits the response body to prevent memory exhaustion.
const maxResponseSize = 1 << 20

type Config struct {
	Provider  ProviderKind
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Client implements summary.Summarizer. It makes exactly one request per
// call; retrying is the pipeline's job.
type Client struct {
	provider   Provider
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

func NewClient(cfg Config, log *slog.Logger, opts ...ClientOption) (*Client, error) {
	provider, err := ProviderFor(cfg.Provider)
	if err != nil {
		return nil, err
	}

	if cfg.Model == "" {
		return nil, errors.New("summarizer model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	c := &Client{
		provider:   provider,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Client) Summarize(ctx context.Context, req summary.Request) (*summary.Summary, error) {
	messages, err := buildPrompt(req)
	if err != nil {
		return nil, err
	}

	content, err := c.complete(ctx, messages)
	if err != nil {
		return nil, err
	}

	raw := extractJSON(content)
	if raw == "" {
		return nil, fmt.Errorf("summarizer returned no JSON object")
	}

	var out summary.Summary
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}

	return &out, nil
}

func (c *Client) complete(ctx context.Context, messages []Message) (string, error) {
	url := c.provider.BuildURL(c.cfg.BaseURL)

	body, err := c.provider.BuildRequestBody(c.cfg.Model, messages, c.cfg.MaxTokens)
	if err != nil {
		return "", fmt.Errorf("build request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	c.provider.SetHeaders(httpReq, c.cfg.APIKey)

	c.log.Debug("sending summarizer request",
		"provider", c.provider.Kind(),
		"model", c.cfg.Model,
		"bytes", len(body))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &TransientError{err: fmt.Errorf("HTTP request failed: %w", err)}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return "", &TransientError{err: fmt.Errorf("read response body: %w", err)}
	}

	if httpResp.StatusCode != http.StatusOK {
		return "", classifyHTTPError(httpResp.StatusCode, respBody)
	}

	return c.provider.ParseResponse(respBody)
}

const systemPrompt = `You summarize one round of a book-club debate.
Reply with a single JSON object and nothing else:
{"pro": [string], "con": [string], "main_issues": [string], "unresolved_issues": [string]}
"pro" lists arguments in favour of the topic, "con" arguments against it.
Use the language the participants used. Use empty arrays when a section has nothing.`

func buildPrompt(req summary.Request) ([]Message, error) {
	transcript, err := json.Marshal(req.Lines)
	if err != nil {
		return nil, fmt.Errorf("encode transcript: %w", err)
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Topic: %s\n", req.Topic)
	fmt.Fprintf(&user, "Round: %d\n", req.RoundNumber)
	user.WriteString("Messages in chronological order:\n")
	user.Write(transcript)

	return []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: user.String()},
	}, nil
}

var (
	jsonBlockPattern  = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)
)

// extractJSON pulls the object out of a fenced block or surrounding prose
func extractJSON(content string) string {
	if m := jsonBlockPattern.FindStringSubmatch(content); len(m) > 1 {
		return m[1]
	}
	return jsonObjectPattern.FindString(content)
}
