package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// openAIProvider speaks the chat completions API, which most
// self-hosted gateways also expose.
type openAIProvider struct{}

func (openAIProvider) Kind() ProviderKind {
	return ProviderOpenAI
}

func (openAIProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	return baseURL + "/v1/chat/completions"
}

func (openAIProvider) SetHeaders(req *http.Request, apiKey string) {
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

type openAIRequest struct {
	Model          string         `json:"model"`
	Messages       []Message      `json:"messages"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

func (openAIProvider) BuildRequestBody(model string, messages []Message, maxTokens int) ([]byte, error) {
	return json.Marshal(openAIRequest{
		Model:          model,
		Messages:       messages,
		MaxTokens:      maxTokens,
		ResponseFormat: map[string]any{"type": "json_object"},
	})
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (openAIProvider) ParseResponse(body []byte) (string, error) {
	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse openai response: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("openai response has no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
