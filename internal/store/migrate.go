package store

import "context"

const schemaDDL = `
CREATE SCHEMA IF NOT EXISTS pvs;

CREATE TABLE IF NOT EXISTS pvs.preview_sessions (
	id               TEXT PRIMARY KEY,
	workspace_id     TEXT NOT NULL,
	vm_id            TEXT NOT NULL DEFAULT '',
	vm_address       TEXT NOT NULL DEFAULT '',
	sync_url         TEXT NOT NULL DEFAULT '',
	preview_url      TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT 'starting',
	file_count       INT NOT NULL DEFAULT 0,
	files_synced_at  TIMESTAMPTZ,
	last_activity_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at       TIMESTAMPTZ NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

-- At most one active (starting/running) session per workspace.
CREATE UNIQUE INDEX IF NOT EXISTS preview_sessions_one_active
	ON pvs.preview_sessions (workspace_id)
	WHERE status IN ('starting', 'running');

CREATE INDEX IF NOT EXISTS preview_sessions_expiry
	ON pvs.preview_sessions (expires_at)
	WHERE status IN ('starting', 'running', 'stopping', 'error');

CREATE TABLE IF NOT EXISTS pvs.workspace_files (
	workspace_id TEXT NOT NULL,
	path         TEXT NOT NULL,
	content      TEXT NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (workspace_id, path)
);

CREATE TABLE IF NOT EXISTS pvs.session_events (
	event_id     BIGSERIAL PRIMARY KEY,
	ts           TIMESTAMPTZ NOT NULL DEFAULT now(),
	workspace_id TEXT NOT NULL,
	session_id   TEXT,
	action       TEXT NOT NULL,
	payload      JSONB NOT NULL DEFAULT '{}'::jsonb
);
`

// Migrate applies the schema. All statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaDDL)
	return err
}
