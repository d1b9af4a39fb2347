package orchestration

import (
	"strconv"
	"strings"
)

// ControlCommand is an operator reply recognized outside the normal chat
// entrypoint: it resolves a pending approval or tool-loop pause instead of
// starting a new turn.
type ControlCommand int

const (
	// ControlNone means content isn't a recognized control command and
	// should go through the normal chat entrypoint.
	ControlNone ControlCommand = iota
	ControlApprove
	ControlDeny
	ControlSteps
)

var stepPrefixes = []string{"steps ", "step ", "max ", "limit "}

// ParseControlCommand classifies an operator's raw reply. For ControlSteps
// the returned int is the requested step count (always > 0); it's 0 for
// every other command.
func ParseControlCommand(content string) (ControlCommand, int) {
	trimmed := strings.TrimSpace(content)
	lower := strings.ToLower(trimmed)

	switch lower {
	case "approve":
		return ControlApprove, 0
	case "deny":
		return ControlDeny, 0
	}

	if n, ok := ParseStepLimit(content); ok {
		return ControlSteps, n
	}
	return ControlNone, 0
}

// ParseStepLimit recognizes "steps N" / "step N" / "max N" / "limit N"
// (case-insensitive), returning the positive step count it names. A bare
// "steps"/"max"/etc. with no number, a zero, or a negative count doesn't
// match.
func ParseStepLimit(content string) (int, bool) {
	lower := strings.ToLower(strings.TrimSpace(content))
	for _, prefix := range stepPrefixes {
		if rest, ok := strings.CutPrefix(lower, prefix); ok {
			n, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil || n <= 0 {
				return 0, false
			}
			return n, true
		}
	}
	return 0, false
}
