package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Manager holds one role's tool set (chat or reflection) and dispatches a
// named call to the matching tool, validating its input against the tool's
// schema first.
type Manager struct {
	tools []Tool
}

// NewChatToolManager builds the set available to an interactive ghost
// session: filesystem, shell, search, web, knowledge lookup, and the
// approval-gated reference importer. Write tools (note_write,
// reference_manage, identity/diary edit) are reflection-only.
func NewChatToolManager(skillPaths []string) *Manager {
	return &Manager{tools: []Tool{
		newShellTool(),
		newChangeDirectoryTool(),
		newFileEditTool(),
		newReadFileTool(),
		newCreateFileTool(),
		newGrepSearchTool(),
		newFindFilesTool(),
		newListDirTool(),
		newWebSearchTool(nil),
		newWebFetchTool(),
		newKnowledgeSearchTool(),
		newKnowledgeGetTool(),
		newReferenceImportTool(),
		newLoadSkillTool(skillPaths),
	}}
}

// NewReflectionToolManager builds the set available to an autonomous
// reflection job: knowledge query and write tools, identity/diary editing,
// and the structured TODO tracker. No shell or arbitrary filesystem write
// access — reflection works through the knowledge layer.
func NewReflectionToolManager(skillPaths []string) *Manager {
	return &Manager{tools: []Tool{
		newKnowledgeSearchTool(),
		newKnowledgeGetTool(),
		newNoteWriteTool(),
		newReferenceWriteTool(),
		newReferenceManageTool(),
		newIdentityEditTool(),
		newDiaryWriteTool(),
		newReflectionTodoTool(),
		newWebSearchTool(nil),
		newWebFetchTool(),
		newReadFileTool(),
		newFindFilesTool(),
		newLoadSkillTool(skillPaths),
	}}
}

// Tools lists every tool in this manager's set, in registration order.
func (m *Manager) Tools() []Tool { return m.tools }

// Execute validates input against the named tool's schema, then runs it.
func (m *Manager) Execute(ctx context.Context, name string, input json.RawMessage, tc *ToolContext) (Result, error) {
	for _, t := range m.tools {
		if t.Name() != name {
			continue
		}
		if err := validateInput(t.Schema(), input); err != nil {
			return Result{Content: err.Error(), IsError: true}, nil
		}
		return t.Execute(ctx, tc, input)
	}
	return Result{}, fmt.Errorf("unknown tool: %s", name)
}

func validateInput(schema json.RawMessage, input json.RawMessage) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("input.json", bytes.NewReader(schema)); err != nil {
		return fmt.Errorf("tool schema: %w", err)
	}
	compiled, err := compiler.Compile("input.json")
	if err != nil {
		return fmt.Errorf("tool schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(input, &doc); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	if err := compiled.Validate(doc); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	return nil
}
