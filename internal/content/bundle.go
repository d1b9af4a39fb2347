package content

import "embed"

//go:embed bundled/messages
var messagesFS embed.FS

//go:embed bundled/prompts
var promptsFS embed.FS

const (
	messagesRoot = "bundled/messages"
	promptsRoot  = "bundled/prompts"
)
