package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDiaryWriteTool_RejectsBadDate(t *testing.T) {
	tc := NewToolContext("ghost", t.TempDir())
	params, _ := json.Marshal(map[string]string{"date": "today", "content": "hi"})

	result, err := newDiaryWriteTool().Execute(context.Background(), tc, params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected a bad-date error")
	}
}

func TestDiaryWriteTool_WriteReplacesContent(t *testing.T) {
	root := t.TempDir()
	tc := NewToolContext("ghost", root)
	path := filepath.Join(root, "diary", "2026-07-31.md")
	os.MkdirAll(filepath.Dir(path), 0o755)
	os.WriteFile(path, []byte("old entry"), 0o644)

	params, _ := json.Marshal(map[string]string{"date": "2026-07-31", "content": "new entry", "action": "write"})
	result, err := newDiaryWriteTool().Execute(context.Background(), tc, params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success: %s", result.Content)
	}
	content, _ := os.ReadFile(path)
	if string(content) != "new entry" {
		t.Errorf("content = %q, want replaced content", content)
	}
}

func TestDiaryWriteTool_AppendAddsSeparator(t *testing.T) {
	root := t.TempDir()
	tc := NewToolContext("ghost", root)
	path := filepath.Join(root, "diary", "2026-07-31.md")
	os.MkdirAll(filepath.Dir(path), 0o755)
	os.WriteFile(path, []byte("morning entry"), 0o644)

	params, _ := json.Marshal(map[string]string{"date": "2026-07-31", "content": "evening entry"})
	result, err := newDiaryWriteTool().Execute(context.Background(), tc, params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success: %s", result.Content)
	}
	content, _ := os.ReadFile(path)
	if !strings.Contains(string(content), "morning entry") || !strings.Contains(string(content), "---") || !strings.Contains(string(content), "evening entry") {
		t.Errorf("content = %q, want both entries joined by a separator", content)
	}
}

func TestDiaryWriteTool_AppendWithNoExistingEntry(t *testing.T) {
	root := t.TempDir()
	tc := NewToolContext("ghost", root)

	params, _ := json.Marshal(map[string]string{"date": "2026-08-01", "content": "first entry"})
	result, err := newDiaryWriteTool().Execute(context.Background(), tc, params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success: %s", result.Content)
	}
	content, _ := os.ReadFile(filepath.Join(root, "diary", "2026-08-01.md"))
	if string(content) != "first entry" {
		t.Errorf("content = %q", content)
	}
}
