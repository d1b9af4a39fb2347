package tools

import (
	"context"
	"encoding/json"
	"testing"
)

func TestReferenceImportTool_RequiresKnowledgeEngine(t *testing.T) {
	tc := NewToolContext("ghost", t.TempDir())
	tool := newReferenceImportTool()

	params, _ := json.Marshal(map[string]any{
		"title":   "Go Concurrency",
		"sources": []map[string]string{{"type": "web", "url": "https://example.com"}},
	})
	result, err := tool.Execute(context.Background(), tc, params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error without a knowledge engine configured")
	}
}

func TestReferenceImportTool_RequiresAtLeastOneSource(t *testing.T) {
	tc := NewToolContext("ghost", t.TempDir())
	tool := newReferenceImportTool()
	tc.Knowledge = nil // exercised before the engine is touched

	params, _ := json.Marshal(map[string]any{"title": "Empty Topic", "sources": []map[string]string{}})
	result, err := tool.Execute(context.Background(), tc, params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error for a request with no sources")
	}
}
