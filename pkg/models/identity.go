package models

import "time"

// AccessLevel is the operator's authorization tier.
type AccessLevel string

const (
	AccessStandard AccessLevel = "standard"
	AccessElevated AccessLevel = "elevated"
)

// OperatorStatus tracks the operator approval workflow (external to the core).
type OperatorStatus string

const (
	OperatorPending  OperatorStatus = "pending"
	OperatorApproved OperatorStatus = "approved"
	OperatorDenied   OperatorStatus = "denied"
)

// Operator is the authenticated principal driving chat turns.
type Operator struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	AccessLevel AccessLevel    `json:"access_level"`
	Status      OperatorStatus `json:"status"`
	Welcomed    bool           `json:"welcomed"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Ghost is the operator-owned personality with its own workspace, diary and
// private notes.
type Ghost struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	OperatorID string    `json:"operator_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Role distinguishes an operator-authored message from a ghost-authored one.
type Role string

const (
	RoleOperator Role = "operator"
	RoleGhost    Role = "ghost"
)

// Session is an ordered message log within a ghost.
type Session struct {
	ID           string    `json:"id"`
	GhostID      string    `json:"ghost_id"`
	OperatorID   string    `json:"operator_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	Active       bool      `json:"active"`
}

// Message is an immutable, persisted conversational turn.
type Message struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"session_id"`
	Role       Role           `json:"role"`
	Content    []ContentBlock `json:"content"`
	Model      string         `json:"model,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	SequenceNo int64          `json:"sequence_no"`
}

// UsageLog is one row per provider request.
type UsageLog struct {
	ID               string    `json:"id"`
	GhostID          string    `json:"ghost_id"`
	SessionID        string    `json:"session_id"`
	MessageID        string    `json:"message_id,omitempty"`
	Model            string    `json:"model"`
	InputTokens      int       `json:"input_tokens"`
	OutputTokens     int       `json:"output_tokens"`
	CacheReadTokens  int       `json:"cache_read_tokens"`
	CacheCreateTokens int      `json:"cache_create_tokens"`
	CreatedAt        time.Time `json:"created_at"`
}

// PromptCacheEntry is the durable row backing the session prompt cache.
type PromptCacheEntry struct {
	SessionID   string    `json:"session_id"`
	GhostID     string    `json:"ghost_id"`
	Blocks      string    `json:"blocks"` // serialized system blocks
	Fingerprint uint64    `json:"fingerprint"`
	CachedAt    time.Time `json:"cached_at"`
}

// JobKind identifies the kind of background job a JobLog records.
type JobKind string

const (
	JobHeartbeat  JobKind = "heartbeat"
	JobReflection JobKind = "reflection"
	JobCron       JobKind = "cron"
)

// JobLog is a durable record of a background job run.
type JobLog struct {
	ID         string    `json:"id"`
	Kind       JobKind   `json:"kind"`
	SessionID  string    `json:"session_id"`
	Transcript string    `json:"transcript"`
	TODOs      []string  `json:"todos,omitempty"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
