package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSkillTool_FindsSkillAcrossMultiplePaths(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()

	skillDir := filepath.Join(second, "summarize", "SKILL.md")
	os.MkdirAll(filepath.Dir(skillDir), 0o755)
	os.WriteFile(skillDir, []byte("---\nname: summarize\n---\n\nSummarize the input."), 0o644)

	tool := newLoadSkillTool([]string{first, second})
	tc := NewToolContext("ghost", t.TempDir())

	params, _ := json.Marshal(map[string]string{"name": "summarize"})
	result, err := tool.Execute(context.Background(), tc, params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success: %s", result.Content)
	}
	if result.Content == "" {
		t.Error("expected the SKILL.md content back")
	}
}

func TestLoadSkillTool_UnknownSkillErrors(t *testing.T) {
	tool := newLoadSkillTool([]string{t.TempDir()})
	tc := NewToolContext("ghost", t.TempDir())

	params, _ := json.Marshal(map[string]string{"name": "does-not-exist"})
	result, err := tool.Execute(context.Background(), tc, params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error for a missing skill")
	}
}
