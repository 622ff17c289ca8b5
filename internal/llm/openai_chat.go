// Package llm holds the chat-model client used by the appropriateness
// filter. The reasoning service speaks the OpenAI chat-completions wire
// format; the client adapts it to the eino model interface so the filter
// stays provider-agnostic.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"job-match-go/internal/logger"
)

const defaultHTTPTimeout = 30 * time.Second

// chatCompletionRequest is the OpenAI-compatible request body. The eino
// schema.Message is wire-compatible for role and content.
type chatCompletionRequest struct {
	Model    string            `json:"model"`
	Messages []*schema.Message `json:"messages"`
}

type chatCompletionMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

type chatCompletionChoice struct {
	Index        int                   `json:"index"`
	Message      chatCompletionMessage `json:"message"`
	FinishReason string                `json:"finish_reason"`
}

type chatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []chatCompletionChoice `json:"choices"`
}

// OpenAIChatModel implements model.ToolCallingChatModel over any
// OpenAI-compatible chat-completions endpoint.
type OpenAIChatModel struct {
	apiKey     string
	modelName  string
	apiURL     string
	httpClient *http.Client
}

var _ model.ToolCallingChatModel = (*OpenAIChatModel)(nil)

// NewOpenAIChatModel creates a chat-model client. apiURL and modelName are
// required; the filter never falls back to a hardcoded provider.
func NewOpenAIChatModel(apiKey, modelName, apiURL string) (*OpenAIChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("api key must not be empty")
	}
	if strings.TrimSpace(modelName) == "" {
		return nil, fmt.Errorf("model name must not be empty")
	}
	if strings.TrimSpace(apiURL) == "" {
		return nil, fmt.Errorf("api url must not be empty")
	}

	return &OpenAIChatModel{
		apiKey:     apiKey,
		modelName:  modelName,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}, nil
}

// Generate sends the messages and returns the first choice as an assistant
// message.
func (m *OpenAIChatModel) Generate(ctx context.Context, messages []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	reqPayload := chatCompletionRequest{
		Model:    m.modelName,
		Messages: messages,
	}

	jsonData, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("build http request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion request: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		logger.Logger.Warn().
			Str("status", httpResp.Status).
			Str("model", m.modelName).
			Msg("chat completion returned non-OK status")
		return nil, fmt.Errorf("chat completion failed with status %s: %s", httpResp.Status, string(bodyBytes))
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(bodyBytes, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w. body: %s", err, string(bodyBytes))
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	apiMessage := resp.Choices[0].Message
	content := ""
	if apiMessage.Content != nil {
		content = *apiMessage.Content
	}

	result := &schema.Message{
		Role:    schema.RoleType(apiMessage.Role),
		Content: content,
	}
	if result.Role == "" {
		result.Role = schema.RoleType("assistant")
	}
	return result, nil
}

// Stream is not needed by the filter; decisions are single-shot.
func (m *OpenAIChatModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("streaming not implemented for OpenAIChatModel")
}

// BindTools is a no-op; the filter drives the model with plain prompts.
func (m *OpenAIChatModel) BindTools(tools []*schema.ToolInfo) error {
	if len(tools) > 0 {
		logger.Logger.Debug().Int("tools", len(tools)).Msg("ignoring tool bindings, client is prompt-only")
	}
	return nil
}

// WithTools satisfies model.ToolCallingChatModel.
func (m *OpenAIChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	if err := m.BindTools(tools); err != nil {
		return nil, err
	}
	return m, nil
}
