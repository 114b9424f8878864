package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lzjever/mbos-pvs/internal/core"
)

// RecordEvent writes a session audit entry. Failures are the caller's
// choice to ignore; audit writes never gate the operation itself.
func (s *Store) RecordEvent(ctx context.Context, workspaceID string, sessionID *string, action string, payload interface{}) error {
	payloadBytes, _ := json.Marshal(payload)
	if payload == nil {
		payloadBytes = []byte("{}")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pvs.session_events (workspace_id, session_id, action, payload)
		VALUES ($1, $2, $3, $4)`,
		workspaceID, sessionID, action, payloadBytes,
	)
	return err
}

// ListEvents returns the workspace's most recent session events, newest
// first.
func (s *Store) ListEvents(ctx context.Context, workspaceID string, limit int) ([]core.SessionEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, ts, workspace_id, session_id, action, payload
		FROM pvs.session_events
		WHERE workspace_id = $1
		ORDER BY event_id DESC
		LIMIT $2`,
		workspaceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []core.SessionEvent
	for rows.Next() {
		var ev core.SessionEvent
		if err := rows.Scan(&ev.EventID, &ev.Ts, &ev.WorkspaceID, &ev.SessionID, &ev.Action, &ev.Payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
