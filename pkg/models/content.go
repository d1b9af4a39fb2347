// Package models holds the data types shared across the gateway core:
// operators, ghosts, sessions, messages, usage, notes and their derived
// indices.
package models

import "encoding/json"

// ContentBlock is the atomic element of a message: exactly one of Text,
// ToolUse, or ToolResult is populated, mirroring the provider-neutral block
// model in internal/providers.
type ContentBlock struct {
	Text       *TextBlock       `json:"text,omitempty"`
	ToolUse    *ToolUseBlock    `json:"tool_use,omitempty"`
	ToolResult *ToolResultBlock `json:"tool_result,omitempty"`
}

// TextBlock carries plain assistant or operator text.
type TextBlock struct {
	Text string `json:"text"`
}

// ToolUseBlock is a provider-issued request to execute a tool.
type ToolUseBlock struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResultBlock answers a ToolUseBlock by id.
type ToolResultBlock struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

// Text is a convenience constructor for a text-only block.
func Text(s string) ContentBlock {
	return ContentBlock{Text: &TextBlock{Text: s}}
}

// ToolUse is a convenience constructor for a tool-use block.
func ToolUse(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{ToolUse: &ToolUseBlock{ID: id, Name: name, Input: input}}
}

// ToolResult is a convenience constructor for a tool-result block.
func ToolResult(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{ToolResult: &ToolResultBlock{ToolUseID: toolUseID, Content: content, IsError: isError}}
}

// IsText reports whether the block carries text.
func (c ContentBlock) IsText() bool { return c.Text != nil }

// IsToolUse reports whether the block carries a tool-use request.
func (c ContentBlock) IsToolUse() bool { return c.ToolUse != nil }

// IsToolResult reports whether the block carries a tool result.
func (c ContentBlock) IsToolResult() bool { return c.ToolResult != nil }

// PlainText extracts the text payload, or "" if this isn't a text block.
func (c ContentBlock) PlainText() string {
	if c.Text == nil {
		return ""
	}
	return c.Text.Text
}
