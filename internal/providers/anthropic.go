package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haasonsaas/nexus/pkg/models"
)

// AnthropicProvider adapts Claude's Messages API to the neutral Provider
// contract. It issues non-streaming requests: the chat loop only needs the
// fully assembled response, not incremental tokens, so there is no
// SSE-processing state machine to maintain here.
type AnthropicProvider struct {
	client     anthropic.Client
	model      string
	maxRetries int
	retryDelay time.Duration
	maxTokens  int
}

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
	RetryDelay time.Duration
	MaxTokens  int
}

// NewAnthropicProvider constructs an adapter bound to a single model alias.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("anthropic: model is required")
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

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicProvider{
		client:     anthropic.NewClient(opts...),
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		maxTokens:  cfg.MaxTokens,
	}, nil
}

func (p *AnthropicProvider) Name() string         { return "anthropic" }
func (p *AnthropicProvider) CurrentModel() string { return p.model }

// SendConversation implements Provider.
func (p *AnthropicProvider) SendConversation(
	ctx context.Context,
	system *models.SystemPrompt,
	history []*models.Message,
	tools []models.ToolDefinition,
	newMessage *models.Message,
	messageLimit *int,
	toolChoice string,
) (ProviderResponse, error) {
	full := truncateHistory(withNewMessage(history, newMessage), messageLimit)

	messages, err := convertMessagesToAnthropic(full)
	if err != nil {
		return ProviderResponse{}, fmt.Errorf("anthropic: failed to convert messages: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		Messages:  messages,
		MaxTokens: int64(p.maxTokens),
	}

	if system != nil && len(system.Blocks) > 0 {
		params.System = convertSystemToAnthropic(*system)
	}

	if len(tools) > 0 {
		toolParams, err := convertToolsToAnthropic(tools)
		if err != nil {
			return ProviderResponse{}, fmt.Errorf("anthropic: failed to convert tools: %w", err)
		}
		params.Tools = toolParams
	}

	if toolChoice != "" {
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: toolChoice},
		}
	}

	var msg *anthropic.Message
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		msg, err = p.client.Messages.New(ctx, params)
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

	blocks := make([]models.ContentBlock, 0, len(msg.Content))
	for _, c := range msg.Content {
		switch c.Type {
		case "text":
			blocks = append(blocks, models.Text(c.Text))
		case "tool_use":
			input, marshalErr := json.Marshal(c.Input)
			if marshalErr != nil {
				input = json.RawMessage("{}")
			}
			blocks = append(blocks, models.ToolUse(c.ID, c.Name, input))
		}
	}

	return ProviderResponse{
		ID:    msg.ID,
		Model: string(msg.Model),
		Content: blocks,
		Usage: Usage{
			InputTokens:       int(msg.Usage.InputTokens),
			OutputTokens:      int(msg.Usage.OutputTokens),
			CacheReadTokens:   int(msg.Usage.CacheReadInputTokens),
			CacheCreateTokens: int(msg.Usage.CacheCreationInputTokens),
		},
		StopReason: convertAnthropicStopReason(string(msg.StopReason)),
	}, nil
}

func convertAnthropicStopReason(reason string) StopReason {
	switch reason {
	case "tool_use":
		return StopToolUse
	case "max_tokens":
		return StopMaxTokens
	case "end_turn", "stop_sequence":
		return StopEndTurn
	default:
		return StopOther
	}
}

func convertSystemToAnthropic(prompt models.SystemPrompt) []anthropic.TextBlockParam {
	blocks := make([]anthropic.TextBlockParam, 0, len(prompt.Blocks))
	for _, b := range prompt.Blocks {
		block := anthropic.TextBlockParam{Type: "text", Text: b.Content}
		if b.CacheControl {
			block.CacheControl = anthropic.CacheControlEphemeralParam{Type: "ephemeral"}
		}
		blocks = append(blocks, block)
	}
	return blocks
}

func convertMessagesToAnthropic(history []*models.Message) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(history))
	for _, msg := range history {
		var content []anthropic.ContentBlockParamUnion
		for _, block := range msg.Content {
			switch {
			case block.IsText():
				content = append(content, anthropic.NewTextBlock(block.Text.Text))
			case block.IsToolUse():
				var input map[string]any
				if len(block.ToolUse.Input) > 0 {
					if err := json.Unmarshal(block.ToolUse.Input, &input); err != nil {
						return nil, fmt.Errorf("invalid tool_use input for %s: %w", block.ToolUse.Name, err)
					}
				}
				content = append(content, anthropic.NewToolUseBlock(block.ToolUse.ID, input, block.ToolUse.Name))
			case block.IsToolResult():
				content = append(content, anthropic.NewToolResultBlock(
					block.ToolResult.ToolUseID,
					block.ToolResult.Content,
					block.ToolResult.IsError,
				))
			}
		}
		if len(content) == 0 {
			continue
		}
		if msg.Role == models.RoleGhost {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}
	return result, nil
}

func convertToolsToAnthropic(tools []models.ToolDefinition) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal([]byte(tool.SchemaJSON), &schema); err != nil {
			return nil, fmt.Errorf("invalid schema for %s: %w", tool.Name, err)
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if toolParam.OfTool == nil {
			return nil, fmt.Errorf("invalid schema for %s: missing tool definition", tool.Name)
		}
		toolParam.OfTool.Description = anthropic.String(tool.Description)
		result = append(result, toolParam)
	}
	return result, nil
}

type anthropicErrorPayload struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func (p *AnthropicProvider) wrapError(err error) *ProviderError {
	if err == nil {
		return nil
	}
	if pe, ok := GetProviderError(err); ok {
		return pe
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		providerErr := (&ProviderError{Provider: "anthropic", Model: p.model, Cause: err, Reason: FailoverUnknown}).
			WithStatus(apiErr.StatusCode)

		requestID := apiErr.RequestID
		if raw := apiErr.RawJSON(); raw != "" {
			var payload anthropicErrorPayload
			if json.Unmarshal([]byte(raw), &payload) == nil {
				if payload.Error.Message != "" {
					providerErr = providerErr.WithMessage(payload.Error.Message)
				}
				if payload.Error.Type != "" {
					providerErr = providerErr.WithCode(payload.Error.Type)
				}
				if payload.RequestID != "" {
					requestID = payload.RequestID
				}
			}
		}
		if providerErr.Message == "" {
			providerErr.Message = "anthropic request failed"
		}
		if requestID != "" {
			providerErr = providerErr.WithRequestID(requestID)
		}
		return providerErr
	}

	return NewProviderError("anthropic", p.model, err)
}
