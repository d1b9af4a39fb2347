package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestReflectionTodoTool_SetThenUpdate(t *testing.T) {
	tc := NewToolContext("ghost", t.TempDir())
	tool := newReflectionTodoTool()

	setParams, _ := json.Marshal(map[string]any{"action": "set", "items": []string{"scan notes", "write summary"}})
	result, err := tool.Execute(context.Background(), tc, setParams)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if !strings.Contains(result.Content, "TODO [0/2]") {
		t.Errorf("expected a fresh 0/2 header, got: %s", result.Content)
	}
	if !strings.Contains(result.Content, "○ scan notes") {
		t.Errorf("expected a pending marker on the first item, got: %s", result.Content)
	}

	updateParams, _ := json.Marshal(map[string]any{"action": "update", "index": 0, "status": "done", "note": "found 3 notes"})
	result, err = tool.Execute(context.Background(), tc, updateParams)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !strings.Contains(result.Content, "TODO [1/2]") {
		t.Errorf("expected 1/2 done after marking item 0 done, got: %s", result.Content)
	}
	if !strings.Contains(result.Content, "✓ scan notes (found 3 notes)") {
		t.Errorf("expected the done marker and note, got: %s", result.Content)
	}
}

func TestReflectionTodoTool_UpdateOutOfRangeErrors(t *testing.T) {
	tc := NewToolContext("ghost", t.TempDir())
	tool := newReflectionTodoTool()

	params, _ := json.Marshal(map[string]any{"action": "update", "index": 5, "status": "done"})
	result, err := tool.Execute(context.Background(), tc, params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an out-of-range error")
	}
}

func TestReflectionTodoTool_ViewEmptyList(t *testing.T) {
	tc := NewToolContext("ghost", t.TempDir())
	tool := newReflectionTodoTool()

	params, _ := json.Marshal(map[string]any{"action": "view"})
	result, err := tool.Execute(context.Background(), tc, params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(result.Content, "TODO [0/0]") {
		t.Errorf("expected an empty-list header, got: %s", result.Content)
	}
}
