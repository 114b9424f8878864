package core

import "time"

type SessionStatus string

const (
	SessionStarting SessionStatus = "starting"
	SessionRunning  SessionStatus = "running"
	SessionStopping SessionStatus = "stopping"
	SessionStopped  SessionStatus = "stopped"
	SessionError    SessionStatus = "error"
)

// PreviewSession tracks one workspace's live preview VM and its lifecycle.
type PreviewSession struct {
	ID             string        `json:"id"`
	WorkspaceID    string        `json:"workspace_id"`
	VMID           string        `json:"vm_id"`
	VMAddress      string        `json:"vm_address"`
	SyncURL        string        `json:"sync_url"`
	PreviewURL     string        `json:"preview_url"`
	Status         SessionStatus `json:"status"`
	FileCount      int           `json:"file_count"`
	FilesSyncedAt  *time.Time    `json:"files_synced_at,omitempty"`
	LastActivityAt time.Time     `json:"last_activity_at"`
	ExpiresAt      time.Time     `json:"expires_at"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Active reports whether the session counts against the
// one-active-session-per-workspace limit.
func (s *PreviewSession) Active() bool {
	return s.Status == SessionStarting || s.Status == SessionRunning
}

// Terminal reports whether the session can no longer transition.
func (s *PreviewSession) Terminal() bool {
	return s.Status == SessionStopped
}

// Expired reports whether the session is past its reclamation deadline.
func (s *PreviewSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
