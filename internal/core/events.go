package core

import (
	"encoding/json"
	"time"
)

// SessionEvent is an audit record of one control-plane action against a
// workspace's preview session.
type SessionEvent struct {
	EventID     int64           `json:"event_id"`
	Ts          time.Time       `json:"ts"`
	WorkspaceID string          `json:"workspace_id"`
	SessionID   *string         `json:"session_id,omitempty"`
	Action      string          `json:"action"`
	Payload     json.RawMessage `json:"payload"`
}
