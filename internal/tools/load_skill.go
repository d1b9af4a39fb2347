package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// loadSkillTool reads a SKILL.md from one of the configured skill
// directories by name, giving the ghost on-demand access to packaged
// procedural knowledge without inflating every system prompt with it.
type loadSkillTool struct {
	skillPaths []string
}

func newLoadSkillTool(skillPaths []string) Tool {
	return loadSkillTool{skillPaths: skillPaths}
}

func (loadSkillTool) Name() string { return "load_skill" }

func (loadSkillTool) Description() string {
	return "Loads a packaged skill's SKILL.md content by name, for detailed instructions on a specific capability."
}

func (loadSkillTool) Prompt() string { return "" }

func (loadSkillTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {"type": "string", "description": "The skill's directory name."}
		},
		"required": ["name"],
		"additionalProperties": false
	}`)
}

func (t loadSkillTool) Execute(ctx context.Context, tc *ToolContext, input json.RawMessage) (Result, error) {
	var args struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return errf("invalid input: " + err.Error())
	}

	for _, root := range t.skillPaths {
		path := filepath.Join(root, args.Name, "SKILL.md")
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		return ok(string(content))
	}
	return errf(fmt.Sprintf("no skill named %q found", args.Name))
}
