package tools

import (
	"context"
	"encoding/json"
	"testing"
)

func TestNewChatToolManager_ExcludesWriteTools(t *testing.T) {
	mgr := NewChatToolManager(nil)
	names := toolNames(mgr)

	for _, writeOnly := range []string{"note_write", "reference_manage", "identity_edit", "diary_write", "reflection_todo"} {
		if names[writeOnly] {
			t.Errorf("chat tool set should not include %q", writeOnly)
		}
	}
	if !names["run_shell_command"] || !names["knowledge_search"] {
		t.Error("expected chat tool set to include shell and knowledge_search")
	}
}

func TestNewReflectionToolManager_ExcludesShellAndFileWrites(t *testing.T) {
	mgr := NewReflectionToolManager(nil)
	names := toolNames(mgr)

	for _, chatOnly := range []string{"run_shell_command", "change_directory", "replace", "create_file"} {
		if names[chatOnly] {
			t.Errorf("reflection tool set should not include %q", chatOnly)
		}
	}
	if !names["note_write"] || !names["reflection_todo"] {
		t.Error("expected reflection tool set to include note_write and reflection_todo")
	}
}

func toolNames(mgr *Manager) map[string]bool {
	out := make(map[string]bool)
	for _, tl := range mgr.Tools() {
		out[tl.Name()] = true
	}
	return out
}

func TestManager_Execute_UnknownTool(t *testing.T) {
	mgr := NewChatToolManager(nil)
	tc := NewToolContext("ghost", t.TempDir())

	_, err := mgr.Execute(context.Background(), "does_not_exist", json.RawMessage(`{}`), tc)
	if err == nil {
		t.Fatal("expected an error for an unknown tool name")
	}
}

func TestManager_Execute_RejectsInputFailingSchema(t *testing.T) {
	mgr := NewChatToolManager(nil)
	tc := NewToolContext("ghost", t.TempDir())

	// run_shell_command requires "command"; omit it.
	result, err := mgr.Execute(context.Background(), "run_shell_command", json.RawMessage(`{}`), tc)
	if err != nil {
		t.Fatalf("Execute returned a hard error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected schema validation to reject missing required field")
	}
}

func TestManager_Execute_RunsValidCall(t *testing.T) {
	mgr := NewChatToolManager(nil)
	tc := NewToolContext("ghost", t.TempDir())

	params, _ := json.Marshal(map[string]string{"command": "echo hi"})
	result, err := mgr.Execute(context.Background(), "run_shell_command", params, tc)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success: %s", result.Content)
	}
}
