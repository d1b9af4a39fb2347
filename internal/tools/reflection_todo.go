package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// TodoStatus is one reflection-job TODO item's progress marker.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoDone       TodoStatus = "done"
	TodoSkipped    TodoStatus = "skipped"
)

func (s TodoStatus) marker() string {
	switch s {
	case TodoInProgress:
		return "◉"
	case TodoDone:
		return "✓"
	case TodoSkipped:
		return "–"
	default:
		return "○"
	}
}

// TodoItem is one step of a reflection job's running plan, held in the tool
// context for the lifetime of the job (no persistence layer backs it; a
// reflection job is short-lived and its final diary/note writes are what
// survives).
type TodoItem struct {
	Title  string
	Status TodoStatus
	Note   string
}

type reflectionTodoTool struct{}

func newReflectionTodoTool() Tool { return reflectionTodoTool{} }

func (reflectionTodoTool) Name() string { return "reflection_todo" }

func (reflectionTodoTool) Description() string {
	return "Manages this reflection job's TODO list: set the full list, or update one item's status."
}

func (reflectionTodoTool) Prompt() string { return "" }

func (reflectionTodoTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {"type": "string", "enum": ["set", "update", "view"]},
			"items": {"type": "array", "items": {"type": "string"}, "description": "Required for set: the full ordered list of step titles."},
			"index": {"type": "integer", "description": "Required for update: 0-based item index."},
			"status": {"type": "string", "enum": ["pending", "in_progress", "done", "skipped"], "description": "Required for update."},
			"note": {"type": "string", "description": "Optional note attached to the item on update."}
		},
		"required": ["action"],
		"additionalProperties": false
	}`)
}

func (reflectionTodoTool) Execute(ctx context.Context, tc *ToolContext, input json.RawMessage) (Result, error) {
	var args struct {
		Action string `json:"action"`
		Items  []string `json:"items"`
		Index  int      `json:"index"`
		Status string   `json:"status"`
		Note   string   `json:"note"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return errf("invalid input: " + err.Error())
	}

	switch args.Action {
	case "set":
		tc.Todos = make([]TodoItem, len(args.Items))
		for i, title := range args.Items {
			tc.Todos[i] = TodoItem{Title: title, Status: TodoPending}
		}
		return ok(renderTodos(tc.Todos))

	case "update":
		if args.Index < 0 || args.Index >= len(tc.Todos) {
			return errf(fmt.Sprintf("index %d out of range (%d items)", args.Index, len(tc.Todos)))
		}
		if args.Status != "" {
			tc.Todos[args.Index].Status = TodoStatus(args.Status)
		}
		if args.Note != "" {
			tc.Todos[args.Index].Note = args.Note
		}
		return ok(renderTodos(tc.Todos))

	case "view":
		return ok(renderTodos(tc.Todos))

	default:
		return errf(fmt.Sprintf("unknown action %q", args.Action))
	}
}

func renderTodos(items []TodoItem) string {
	if len(items) == 0 {
		return "TODO [0/0]\n(no items)"
	}
	done := 0
	for _, it := range items {
		if it.Status == TodoDone || it.Status == TodoSkipped {
			done++
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "TODO [%d/%d]\n", done, len(items))
	for i, it := range items {
		fmt.Fprintf(&b, "[%d/%d] %s %s", i+1, len(items), it.Status.marker(), it.Title)
		if it.Note != "" {
			fmt.Fprintf(&b, " (%s)", it.Note)
		}
		b.WriteString("\n")
	}
	return b.String()
}
