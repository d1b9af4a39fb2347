package tools

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestApprovalReason_WorkspaceEscapeRoundTrip(t *testing.T) {
	reason := ApprovalReason{Kind: "workspace_escape", Path: "/outside/secrets.txt"}
	errStr := reason.ToError()

	parsed, ok := ParseApprovalReason(errStr)
	if !ok {
		t.Fatalf("ParseApprovalReason(%q) ok=false, want true", errStr)
	}
	if parsed.Kind != "workspace_escape" || parsed.Path != reason.Path {
		t.Errorf("parsed = %+v, want %+v", parsed, reason)
	}
}

func TestApprovalReason_ReferenceImportRoundTrip(t *testing.T) {
	reason := ApprovalReason{Kind: "reference_import", Title: "Go Concurrency Patterns", Summary: "2 sources"}
	errStr := reason.ToError()

	parsed, ok := ParseApprovalReason(errStr)
	if !ok {
		t.Fatalf("ParseApprovalReason(%q) ok=false, want true", errStr)
	}
	if parsed.Kind != "reference_import" || parsed.Title != reason.Title || parsed.Summary != reason.Summary {
		t.Errorf("parsed = %+v, want %+v", parsed, reason)
	}
}

func TestParseApprovalReason_NotASentinel(t *testing.T) {
	if _, ok := ParseApprovalReason("some ordinary tool error"); ok {
		t.Error("expected ok=false for a non-sentinel error string")
	}
}

func TestParseApprovalReason_EmptyPayload(t *testing.T) {
	if _, ok := ParseApprovalReason(ApprovalRequiredPrefix); ok {
		t.Error("expected ok=false for an empty sentinel payload")
	}
}

func TestResolveLocalPath_AllowsWithinWorkspace(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "notes.md"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	tc := NewToolContext("ghost", root)

	resolved, err := ResolveLocalPath(tc, "notes.md")
	if err != nil {
		t.Fatalf("ResolveLocalPath: %v", err)
	}
	if resolved != filepath.Join(root, "notes.md") {
		t.Errorf("resolved = %q, want %q", resolved, filepath.Join(root, "notes.md"))
	}
}

func TestResolveLocalPath_BlocksEscapeWithoutApproval(t *testing.T) {
	root := t.TempDir()
	tc := NewToolContext("ghost", root)

	_, err := ResolveLocalPath(tc, "../outside.txt")
	if err == nil {
		t.Fatal("expected an APPROVAL_REQUIRED error, got nil")
	}
	reason, ok := ParseApprovalReason(err.Error())
	if !ok || reason.Kind != "workspace_escape" {
		t.Errorf("err = %q, want an APPROVAL_REQUIRED workspace_escape sentinel", err.Error())
	}
}

func TestResolveLocalPath_AllowsEscapeOnceApproved(t *testing.T) {
	root := t.TempDir()
	tc := NewToolContext("ghost", root)
	tc.ApplyApproval(ApprovalReason{Kind: "workspace_escape", Path: "/tmp/whatever"})

	if _, err := ResolveLocalPath(tc, "../outside.txt"); err != nil {
		t.Fatalf("expected the one-shot approval to allow escape, got: %v", err)
	}

	// The allowance is consumed: a second escape needs fresh approval.
	if _, err := ResolveLocalPath(tc, "../outside-again.txt"); err == nil {
		t.Fatal("expected the escape allowance to be one-shot")
	}
}

func TestResolveLocalPath_BlocksSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks behave differently on windows")
	}
	workspace := t.TempDir()
	outside := t.TempDir()

	link := filepath.Join(workspace, "escape")
	if err := os.Symlink(outside, link); err != nil {
		t.Fatal(err)
	}

	tc := NewToolContext("ghost", workspace)
	_, err := ResolveLocalPath(tc, filepath.Join("escape", "secrets.txt"))
	if err == nil {
		t.Fatal("expected a symlink pointing outside the workspace to require approval")
	}
}

func TestHasApproval_ConsumesOneShot(t *testing.T) {
	tc := NewToolContext("ghost", t.TempDir())
	tc.GrantApproval("reference_import")

	if !tc.HasApproval("reference_import") {
		t.Fatal("expected HasApproval to find the granted approval")
	}
	if tc.HasApproval("reference_import") {
		t.Error("expected the approval to be consumed after one check")
	}
}

func TestSetCwd_TracksDirty(t *testing.T) {
	tc := NewToolContext("ghost", t.TempDir())
	if tc.IsDirty() {
		t.Fatal("new context should not start dirty")
	}
	tc.SetCwd(filepath.Join(tc.WorkspaceRoot, "sub"))
	if !tc.IsDirty() {
		t.Error("expected SetCwd to a new path to mark the context dirty")
	}
	tc.ClearDirty()
	if tc.IsDirty() {
		t.Error("expected ClearDirty to reset the flag")
	}
}
