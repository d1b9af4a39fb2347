package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/nexus/pkg/models"
)

// OpenAIProvider adapts the Chat Completions API to the neutral Provider
// contract.
type OpenAIProvider struct {
	client     *openai.Client
	model      string
	maxRetries int
	retryDelay time.Duration
	maxTokens  int
}

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
	RetryDelay time.Duration
	MaxTokens  int
}

// NewOpenAIProvider constructs an adapter bound to a single model alias.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai: model is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		maxTokens:  cfg.MaxTokens,
	}, nil
}

func (p *OpenAIProvider) Name() string         { return "openai" }
func (p *OpenAIProvider) CurrentModel() string { return p.model }

// SendConversation implements Provider. OpenAI has no separate system-block
// slot: the system prompt is flattened into a single leading system message.
func (p *OpenAIProvider) SendConversation(
	ctx context.Context,
	system *models.SystemPrompt,
	history []*models.Message,
	tools []models.ToolDefinition,
	newMessage *models.Message,
	messageLimit *int,
	toolChoice string,
) (ProviderResponse, error) {
	full := truncateHistory(withNewMessage(history, newMessage), messageLimit)

	messages := convertMessagesToOpenAI(full)
	if system != nil && len(system.Blocks) > 0 {
		messages = append([]openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleSystem,
			Content: system.ToSimpleString(),
		}}, messages...)
	}

	req := openai.ChatCompletionRequest{
		Model:     p.model,
		Messages:  messages,
		MaxTokens: p.maxTokens,
	}

	if len(tools) > 0 {
		req.Tools = convertToolsToOpenAI(tools)
	}
	if toolChoice != "" {
		req.ToolChoice = openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: toolChoice},
		}
	}

	var resp openai.ChatCompletionResponse
	var err error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		resp, err = p.client.CreateChatCompletion(ctx, req)
		if err == nil {
			break
		}
		wrapped := p.wrapError(err)
		if !wrapped.Reason.IsRetryable() || attempt == p.maxRetries {
			return ProviderResponse{}, wrapped
		}
		backoff := p.retryDelay * time.Duration(math.Pow(2, float64(attempt)))
		select {
		case <-ctx.Done():
			return ProviderResponse{}, ctx.Err()
		case <-time.After(backoff):
		}
	}
	if err != nil {
		return ProviderResponse{}, p.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return ProviderResponse{}, NewProviderError("openai", p.model, errors.New("empty choices in response"))
	}

	choice := resp.Choices[0]
	var blocks []models.ContentBlock
	if choice.Message.Content != "" {
		blocks = append(blocks, models.Text(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		blocks = append(blocks, models.ToolUse(tc.ID, tc.Function.Name, json.RawMessage(tc.Function.Arguments)))
	}

	return ProviderResponse{
		ID:    resp.ID,
		Model: resp.Model,
		Content: blocks,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
		StopReason: convertOpenAIStopReason(string(choice.FinishReason)),
	}, nil
}

func convertOpenAIStopReason(reason string) StopReason {
	switch reason {
	case "tool_calls":
		return StopToolUse
	case "length":
		return StopMaxTokens
	case "stop":
		return StopEndTurn
	default:
		return StopOther
	}
}

func convertMessagesToOpenAI(history []*models.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, msg := range history {
		role := openai.ChatMessageRoleUser
		if msg.Role == models.RoleGhost {
			role = openai.ChatMessageRoleAssistant
		}

		var text string
		var toolCalls []openai.ToolCall
		var toolResults []*models.ToolResultBlock

		for _, block := range msg.Content {
			switch {
			case block.IsText():
				text += block.Text.Text
			case block.IsToolUse():
				toolCalls = append(toolCalls, openai.ToolCall{
					ID:   block.ToolUse.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      block.ToolUse.Name,
						Arguments: string(block.ToolUse.Input),
					},
				})
			case block.IsToolResult():
				toolResults = append(toolResults, block.ToolResult)
			}
		}

		if len(toolResults) > 0 {
			for _, tr := range toolResults {
				result = append(result, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    tr.Content,
					ToolCallID: tr.ToolUseID,
				})
			}
			continue
		}

		chatMsg := openai.ChatCompletionMessage{Role: role, Content: text}
		if len(toolCalls) > 0 {
			chatMsg.ToolCalls = toolCalls
			chatMsg.Content = text
		}
		result = append(result, chatMsg)
	}
	return result
}

func convertToolsToOpenAI(tools []models.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, 0, len(tools))
	for _, tool := range tools {
		var schema map[string]any
		if err := json.Unmarshal([]byte(tool.SchemaJSON), &schema); err != nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schema,
			},
		})
	}
	return result
}

func (p *OpenAIProvider) wrapError(err error) *ProviderError {
	if err == nil {
		return nil
	}
	if pe, ok := GetProviderError(err); ok {
		return pe
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		providerErr := (&ProviderError{Provider: "openai", Model: p.model, Cause: err, Reason: FailoverUnknown}).
			WithStatus(apiErr.HTTPStatusCode)
		if apiErr.Message != "" {
			providerErr = providerErr.WithMessage(apiErr.Message)
		}
		if apiErr.Code != nil {
			if code, ok := apiErr.Code.(string); ok && code != "" {
				providerErr = providerErr.WithCode(code)
			}
		}
		return providerErr
	}

	return NewProviderError("openai", p.model, err)
}
