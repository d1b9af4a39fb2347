// Package tools implements the gateway's tool runtime: the Tool interface,
// the workspace-boundary-aware execution context, the approval sentinel
// protocol, and the concrete tool set a chat session or reflection job runs
// against.
package tools

import (
	"context"
	"encoding/json"
)

// Result is a tool's output, shaped for direct embedding into a provider's
// tool-result content block.
type Result struct {
	Content string
	IsError bool
}

func ok(content string) (Result, error)  { return Result{Content: content}, nil }
func errf(content string) (Result, error) { return Result{Content: content, IsError: true}, nil }

// Tool is one callable the model can invoke mid-conversation. Prompt returns
// an optional block of detailed usage guidance appended to the system
// prompt's tool-definitions section; most tools have none.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Prompt() string
	Execute(ctx context.Context, tc *ToolContext, input json.RawMessage) (Result, error)
}
