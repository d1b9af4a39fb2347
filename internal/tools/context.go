package tools

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/haasonsaas/nexus/internal/knowledge"
	"github.com/haasonsaas/nexus/pkg/models"
)

// ApprovalRequiredPrefix marks a tool error as an approval request rather
// than a hard failure: the chat loop recognizes it, surfaces the reason to
// the operator, and resumes the tool call with the context's approval state
// updated if the operator grants it.
const ApprovalRequiredPrefix = "APPROVAL_REQUIRED:"

// ApprovalReason is why a tool call is paused pending operator sign-off.
type ApprovalReason struct {
	// Kind is "workspace_escape" or "reference_import".
	Kind string
	// Path is set for workspace_escape.
	Path string
	// Title and Summary are set for reference_import.
	Title   string
	Summary string
}

// ToError renders a reason as the tool error string a tool returns to halt
// execution pending approval: a bare path for a workspace escape (backward
// compatible with a tool that just returns the raw path), a JSON payload for
// anything structured.
func (r ApprovalReason) ToError() string {
	switch r.Kind {
	case "reference_import":
		payload, _ := json.Marshal(map[string]string{
			"reason":  "reference_import",
			"title":   r.Title,
			"summary": r.Summary,
		})
		return ApprovalRequiredPrefix + string(payload)
	default:
		return ApprovalRequiredPrefix + r.Path
	}
}

// DenialMessage is shown to the ghost when the operator declines approval.
func (r ApprovalReason) DenialMessage() string {
	switch r.Kind {
	case "reference_import":
		return "Error: Operator denied approval to import this reference topic."
	default:
		return "Error: Operator denied approval to leave the workspace."
	}
}

// ParseApprovalReason recovers an ApprovalReason from a tool error string,
// returning ok=false if the string isn't an approval sentinel. A JSON
// payload produces a structured reason; a bare non-empty string is treated
// as a workspace-escape path.
func ParseApprovalReason(toolError string) (ApprovalReason, bool) {
	payload, found := strings.CutPrefix(toolError, ApprovalRequiredPrefix)
	if !found {
		return ApprovalReason{}, false
	}
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return ApprovalReason{}, false
	}

	if strings.HasPrefix(payload, "{") {
		var raw map[string]string
		if err := json.Unmarshal([]byte(payload), &raw); err != nil {
			return ApprovalReason{}, false
		}
		if raw["reason"] != "reference_import" {
			return ApprovalReason{}, false
		}
		return ApprovalReason{Kind: "reference_import", Title: raw["title"], Summary: raw["summary"]}, true
	}

	return ApprovalReason{Kind: "workspace_escape", Path: payload}, true
}

// ToolContext carries everything a tool execution needs: the ghost's
// identity and workspace boundary, the operator's access level, any
// outstanding approvals, and handles to the subsystems write tools touch.
type ToolContext struct {
	GhostName       string
	WorkspaceRoot   string
	Cwd             string
	OperatorAccess  models.AccessLevel
	Knowledge       *knowledge.Engine

	allowOutsideWorkspace bool
	approvedActions       []string
	dirty                 bool
	Todos                 []TodoItem
}

// NewToolContext builds a context rooted at workspaceRoot, cwd defaulting to
// the workspace root itself.
func NewToolContext(ghostName, workspaceRoot string) *ToolContext {
	return &ToolContext{
		GhostName:      ghostName,
		WorkspaceRoot:  workspaceRoot,
		Cwd:            workspaceRoot,
		OperatorAccess: models.AccessStandard,
	}
}

// SetCwd updates the working directory a relative path resolves against,
// marking the context dirty so a caller persisting session state knows to
// write the new cwd back.
func (tc *ToolContext) SetCwd(path string) {
	if tc.Cwd != path {
		tc.Cwd = path
		tc.dirty = true
	}
}

// IsDirty reports whether the cwd has changed since the last ClearDirty.
func (tc *ToolContext) IsDirty() bool { return tc.dirty }

// ClearDirty resets the dirty flag after a caller has persisted the cwd.
func (tc *ToolContext) ClearDirty() { tc.dirty = false }

// GrantApproval records a one-shot named approval, consumed by the next
// matching HasApproval check.
func (tc *ToolContext) GrantApproval(action string) {
	tc.approvedActions = append(tc.approvedActions, action)
}

// HasApproval checks and consumes a named approval.
func (tc *ToolContext) HasApproval(action string) bool {
	for i, a := range tc.approvedActions {
		if a == action {
			tc.approvedActions = append(tc.approvedActions[:i], tc.approvedActions[i+1:]...)
			return true
		}
	}
	return false
}

// ApplyApproval updates context state once an operator has granted an
// approval reason: a workspace escape is allowed for exactly the next path
// resolution, a reference import is granted as a named one-shot approval.
func (tc *ToolContext) ApplyApproval(reason ApprovalReason) {
	switch reason.Kind {
	case "reference_import":
		tc.GrantApproval("reference_import")
	default:
		tc.allowOutsideWorkspace = true
	}
}

// resolveLocalPathUnchecked resolves raw (absolute or cwd-relative) without
// enforcing the workspace boundary, for callers that have already decided
// the boundary doesn't apply (e.g. displaying a path in an error message).
func resolveLocalPathUnchecked(tc *ToolContext, raw string) string {
	if filepath.IsAbs(raw) {
		return normalizeAbsolutePath(raw)
	}
	return normalizeAbsolutePath(filepath.Join(tc.Cwd, raw))
}

// ResolveLocalPath resolves a tool-supplied path to an absolute path,
// enforcing that it stays within the workspace root unless the context
// carries a one-shot escape allowance. A path outside the workspace with no
// allowance returns an APPROVAL_REQUIRED error rather than failing outright,
// so the caller can surface it to the operator and retry once granted.
func ResolveLocalPath(tc *ToolContext, raw string) (string, error) {
	normalized := resolveLocalPathUnchecked(tc, raw)

	if isWithinWorkspace(tc, normalized) {
		return normalized, nil
	}

	if tc.allowOutsideWorkspace {
		tc.allowOutsideWorkspace = false
		return normalized, nil
	}

	// The cwd itself may already be outside the workspace (a prior escape
	// changed it); a path under that cwd doesn't need fresh approval.
	normalizedCwd := normalizeAbsolutePath(tc.Cwd)
	if !isWithinWorkspace(tc, normalizedCwd) && strings.HasPrefix(normalized, normalizedCwd) {
		return normalized, nil
	}

	reason := ApprovalReason{Kind: "workspace_escape", Path: normalized}
	return "", fmt.Errorf("%s", reason.ToError())
}

func isWithinWorkspace(tc *ToolContext, path string) bool {
	normalized := canonicalizeForBoundaryCheck(path)
	workspace := canonicalizeForBoundaryCheck(tc.WorkspaceRoot)
	return normalized == workspace || strings.HasPrefix(normalized, workspace+string(filepath.Separator))
}

// canonicalizeForBoundaryCheck resolves symlinks so a workspace boundary
// check can't be defeated by a symlink pointing outside the workspace. For a
// path (or ancestor) that doesn't exist yet, it canonicalizes the nearest
// existing ancestor and re-attaches the unresolved suffix.
func canonicalizeForBoundaryCheck(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}

	var suffix []string
	probe := path
	for {
		if resolved, err := filepath.EvalSymlinks(probe); err == nil {
			return filepath.Join(append([]string{resolved}, suffix...)...)
		}
		parent := filepath.Dir(probe)
		if parent == probe {
			break
		}
		suffix = append([]string{filepath.Base(probe)}, suffix...)
		probe = parent
	}
	return normalizeAbsolutePath(path)
}

// normalizeAbsolutePath cleans . and .. components without touching the
// filesystem (plain lexical normalization, unlike EvalSymlinks).
func normalizeAbsolutePath(path string) string {
	return filepath.Clean(path)
}
