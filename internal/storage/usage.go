package storage

import (
	"context"

	"github.com/haasonsaas/nexus/pkg/models"
)

// UsageRecord inserts one provider-call accounting row.
func (s *Store) UsageRecord(ctx context.Context, u *models.UsageLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_log(
			id, ghost_id, session_id, message_id, model,
			input_tokens, output_tokens, cache_read_tokens, cache_create_tokens, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.GhostID, u.SessionID, u.MessageID, u.Model,
		u.InputTokens, u.OutputTokens, u.CacheReadTokens, u.CacheCreateTokens, u.CreatedAt)
	return err
}

// UsageTotals is an aggregate over a set of usage_log rows.
type UsageTotals struct {
	InputTokens       int64
	OutputTokens      int64
	CacheReadTokens   int64
	CacheCreateTokens int64
	RequestCount      int64
}

// UsageTotalsForSession aggregates a session's accounting rows.
func (s *Store) UsageTotalsForSession(ctx context.Context, sessionID string) (UsageTotals, error) {
	var t UsageTotals
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(input_tokens), 0),
			COALESCE(SUM(output_tokens), 0),
			COALESCE(SUM(cache_read_tokens), 0),
			COALESCE(SUM(cache_create_tokens), 0),
			COUNT(*)
		FROM usage_log WHERE session_id = ?
	`, sessionID)
	err := row.Scan(&t.InputTokens, &t.OutputTokens, &t.CacheReadTokens, &t.CacheCreateTokens, &t.RequestCount)
	return t, err
}

// UsageTotalsForGhost aggregates across every session a ghost has had.
func (s *Store) UsageTotalsForGhost(ctx context.Context, ghostID string) (UsageTotals, error) {
	var t UsageTotals
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(input_tokens), 0),
			COALESCE(SUM(output_tokens), 0),
			COALESCE(SUM(cache_read_tokens), 0),
			COALESCE(SUM(cache_create_tokens), 0),
			COUNT(*)
		FROM usage_log WHERE ghost_id = ?
	`, ghostID)
	err := row.Scan(&t.InputTokens, &t.OutputTokens, &t.CacheReadTokens, &t.CacheCreateTokens, &t.RequestCount)
	return t, err
}
