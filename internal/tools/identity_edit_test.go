package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIdentityEditTool_WriteThenAppend(t *testing.T) {
	root := t.TempDir()
	tc := NewToolContext("ghost", root)

	writeParams, _ := json.Marshal(map[string]string{"content": "I am a helpful ghost.", "action": "write"})
	if result, err := newIdentityEditTool().Execute(context.Background(), tc, writeParams); err != nil || result.IsError {
		t.Fatalf("write failed: err=%v result=%+v", err, result)
	}

	appendParams, _ := json.Marshal(map[string]string{"content": "I also like concise answers."})
	if result, err := newIdentityEditTool().Execute(context.Background(), tc, appendParams); err != nil || result.IsError {
		t.Fatalf("append failed: err=%v result=%+v", err, result)
	}

	content, err := os.ReadFile(filepath.Join(root, "identity.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), "helpful ghost") || !strings.Contains(string(content), "concise answers") {
		t.Errorf("content = %q, want both writes present", content)
	}
}
