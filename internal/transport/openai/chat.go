// Package openai adapts the OpenAI-compatible chat and embedding APIs to
// the domain contracts.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/coursechat/internal/domain"
	"github.com/kailas-cloud/coursechat/internal/metrics"
)

// ChatConfig holds the chat completion provider settings.
type ChatConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Logger      *zap.Logger
}

// ChatClient implements domain.ChatClient over the chat completions API.
// Tool-use blocks map to tool_calls and tool results to role-"tool"
// messages.
type ChatClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *zap.Logger
}

// NewChatClient creates an OpenAI-compatible chat client.
func NewChatClient(cfg *ChatConfig) *ChatClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		// the wire format drops a zero temperature, which the API reads
		// as "use the default"; the smallest non-zero value survives
		temperature = math.SmallestNonzeroFloat32
	}

	return &ChatClient{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      cfg.Logger,
	}
}

// Chat implements domain.ChatClient.
func (c *ChatClient) Chat(ctx context.Context, req *domain.ChatRequest) (*domain.Reply, error) {
	apiReq, err := c.buildRequest(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, *apiReq)
	duration := time.Since(start)

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return nil, parseAPIError("chat", err)
	}
	if len(resp.Choices) == 0 {
		metrics.LLMRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return nil, fmt.Errorf("empty chat response: %w", domain.ErrLLMProvider)
	}

	metrics.LLMRequestsTotal.WithLabelValues(c.model, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(c.model).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.LLMTokensTotal.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.LLMTokensTotal.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))
	}

	return replyFromChoice(resp.Choices[0])
}

func (c *ChatClient) buildRequest(req *domain.ChatRequest) (*openai.ChatCompletionRequest, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	for i := range req.Messages {
		converted, err := convertMessage(&req.Messages[i])
		if err != nil {
			return nil, err
		}
		messages = append(messages, converted...)
	}

	apiReq := &openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	if len(req.Tools) > 0 {
		apiReq.Tools = make([]openai.Tool, 0, len(req.Tools))
		for _, def := range req.Tools {
			apiReq.Tools = append(apiReq.Tools, openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        def.Name,
					Description: def.Description,
					Parameters:  def.InputSchema,
				},
			})
		}
		if req.ToolChoiceAuto {
			apiReq.ToolChoice = "auto"
		}
	}
	return apiReq, nil
}

// convertMessage flattens one domain message into wire messages. A user
// turn of tool results becomes one role-"tool" message per result.
func convertMessage(m *domain.Message) ([]openai.ChatCompletionMessage, error) {
	if m.Role == domain.RoleAssistant {
		out := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant}
		for _, b := range m.Content {
			switch b.Type {
			case domain.BlockText:
				out.Content += b.Text
			case domain.BlockToolUse:
				args, err := json.Marshal(b.ToolUse.Input)
				if err != nil {
					return nil, fmt.Errorf("marshal tool input for %s: %w", b.ToolUse.Name, err)
				}
				out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
					ID:   b.ToolUse.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      b.ToolUse.Name,
						Arguments: string(args),
					},
				})
			}
		}
		return []openai.ChatCompletionMessage{out}, nil
	}

	var out []openai.ChatCompletionMessage
	text := ""
	for _, b := range m.Content {
		switch b.Type {
		case domain.BlockText:
			text += b.Text
		case domain.BlockToolResult:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    b.ToolResult.Content,
				ToolCallID: b.ToolResult.ToolUseID,
			})
		}
	}
	if text != "" {
		out = append([]openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: text,
		}}, out...)
	}
	return out, nil
}

func replyFromChoice(choice openai.ChatCompletionChoice) (*domain.Reply, error) {
	reply := &domain.Reply{StopReason: domain.StopEndTurn}
	if choice.FinishReason == openai.FinishReasonToolCalls {
		reply.StopReason = domain.StopToolUse
	}

	if choice.Message.Content != "" {
		reply.Content = append(reply.Content, domain.TextBlock(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		input := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
				return nil, fmt.Errorf("parse tool arguments of %s: %w", tc.Function.Name, domain.ErrLLMProvider)
			}
		}
		reply.Content = append(reply.Content, domain.ToolUseBlock(tc.ID, tc.Function.Name, input))
	}
	return reply, nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors wrap domain.ErrLLMProvider for correct 502 mapping.
func parseAPIError(op string, err error) error {
	wrap := domain.ErrLLMProvider

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("%s API error %d: %s: %w", op, reqErr.HTTPStatusCode, detail, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s API error %d: %s: %w", op, apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("%s request failed: %v: %w", op, err, wrap)
}

// extractDetail pulls the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
