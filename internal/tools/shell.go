package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"time"
)

const shellTimeout = 2 * time.Minute

type shellTool struct{}

func newShellTool() Tool { return shellTool{} }

func (shellTool) Name() string { return "run_shell_command" }

func (shellTool) Description() string {
	return "Runs a shell command in the ghost's current working directory and returns its combined stdout/stderr."
}

func (shellTool) Prompt() string { return "" }

func (shellTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {"type": "string", "description": "The shell command to run."}
		},
		"required": ["command"],
		"additionalProperties": false
	}`)
}

func (shellTool) Execute(ctx context.Context, tc *ToolContext, input json.RawMessage) (Result, error) {
	var args struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return errf("invalid input: " + err.Error())
	}

	runCtx, cancel := context.WithTimeout(ctx, shellTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", args.Command)
	cmd.Dir = tc.Cwd

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return errf(out.String() + "\ncommand failed: " + err.Error())
	}
	return ok(out.String())
}
