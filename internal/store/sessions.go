package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lzjever/mbos-pvs/internal/core"
)

const sessionColumns = `id, workspace_id, vm_id, vm_address, sync_url, preview_url,
	status, file_count, files_synced_at, last_activity_at, expires_at, created_at, updated_at`

func scanSession(row pgx.Row) (*core.PreviewSession, error) {
	var s core.PreviewSession
	err := row.Scan(
		&s.ID, &s.WorkspaceID, &s.VMID, &s.VMAddress, &s.SyncURL, &s.PreviewURL,
		&s.Status, &s.FileCount, &s.FilesSyncedAt, &s.LastActivityAt,
		&s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSession inserts a new session record. The partial unique index on
// active sessions rejects a second active session for the same workspace.
func (s *Store) CreateSession(ctx context.Context, sess *core.PreviewSession) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pvs.preview_sessions
			(id, workspace_id, status, last_activity_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)`,
		sess.ID, sess.WorkspaceID, sess.Status, sess.LastActivityAt, sess.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetActiveSession returns the workspace's starting/running session that has
// not yet expired, or nil if there is none.
func (s *Store) GetActiveSession(ctx context.Context, workspaceID string) (*core.PreviewSession, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM pvs.preview_sessions
		WHERE workspace_id = $1
		  AND status IN ('starting', 'running')
		  AND expires_at > now()`,
		workspaceID,
	)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active session: %w", err)
	}
	return sess, nil
}

// GetOpenSession returns the workspace's most recent non-stopped session
// regardless of expiry. Used by the stop path, which must also reach
// sessions in error status.
func (s *Store) GetOpenSession(ctx context.Context, workspaceID string) (*core.PreviewSession, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM pvs.preview_sessions
		WHERE workspace_id = $1
		  AND status IN ('starting', 'running', 'stopping', 'error')
		ORDER BY created_at DESC
		LIMIT 1`,
		workspaceID,
	)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get open session: %w", err)
	}
	return sess, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*core.PreviewSession, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM pvs.preview_sessions
		WHERE id = $1`,
		id,
	)
	sess, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// SetVM records the VM identity as soon as provisioning succeeds, while
// the session is still starting. A start that fails later must still
// leave enough on the record for the sweep to reclaim the VM.
func (s *Store) SetVM(ctx context.Context, id, vmID, vmAddress, syncURL, previewURL string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE pvs.preview_sessions
		SET vm_id = $2, vm_address = $3, sync_url = $4, preview_url = $5, updated_at = now()
		WHERE id = $1`,
		id, vmID, vmAddress, syncURL, previewURL,
	)
	if err != nil {
		return fmt.Errorf("set vm: %w", err)
	}
	return nil
}

// MarkRunning promotes the session to running with a fresh deadline.
func (s *Store) MarkRunning(ctx context.Context, id string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE pvs.preview_sessions
		SET status = 'running', expires_at = $2, last_activity_at = now(), updated_at = now()
		WHERE id = $1`,
		id, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	return nil
}

func (s *Store) SetStatus(ctx context.Context, id string, status core.SessionStatus) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE pvs.preview_sessions
		SET status = $2, updated_at = now()
		WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("set status %s: %w", status, err)
	}
	return nil
}

// RecordSync stores the result of a successful full snapshot push.
func (s *Store) RecordSync(ctx context.Context, id string, fileCount int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE pvs.preview_sessions
		SET file_count = $2, files_synced_at = now(), last_activity_at = now(), updated_at = now()
		WHERE id = $1`,
		id, fileCount,
	)
	if err != nil {
		return fmt.Errorf("record sync: %w", err)
	}
	return nil
}

// Touch bumps last_activity_at only (single-file updates).
func (s *Store) Touch(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE pvs.preview_sessions
		SET last_activity_at = now(), updated_at = now()
		WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// Extend moves the expiration deadline and bumps last_activity_at.
func (s *Store) Extend(ctx context.Context, id string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE pvs.preview_sessions
		SET expires_at = $2, last_activity_at = now(), updated_at = now()
		WHERE id = $1`,
		id, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("extend session: %w", err)
	}
	return nil
}

// ListExpired returns non-stopped sessions past their deadline, oldest first.
// Error sessions are included so their VMs get reclaimed too.
func (s *Store) ListExpired(ctx context.Context, limit int) ([]core.PreviewSession, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM pvs.preview_sessions
		WHERE status IN ('starting', 'running', 'stopping', 'error')
		  AND expires_at <= now()
		ORDER BY expires_at
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list expired: %w", err)
	}
	defer rows.Close()

	var out []core.PreviewSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired session: %w", err)
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}
