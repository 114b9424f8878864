package store

import (
	"context"
	"fmt"

	"github.com/lzjever/mbos-pvs/internal/core"
)

// WorkspaceSnapshot reads the workspace's generated files as a full
// snapshot. The content rows are written by the generation pipeline; this
// side only reads them.
func (s *Store) WorkspaceSnapshot(ctx context.Context, workspaceID string) (core.FileSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT path, content
		FROM pvs.workspace_files
		WHERE workspace_id = $1`,
		workspaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list workspace files: %w", err)
	}
	defer rows.Close()

	snapshot := core.FileSnapshot{}
	for rows.Next() {
		var path, content string
		if err := rows.Scan(&path, &content); err != nil {
			return nil, fmt.Errorf("scan workspace file: %w", err)
		}
		snapshot[path] = content
	}
	return snapshot, rows.Err()
}

// PutWorkspaceFile upserts a single generated file. Exposed for tooling and
// tests; the generation pipeline owns these rows in production.
func (s *Store) PutWorkspaceFile(ctx context.Context, workspaceID, path, content string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pvs.workspace_files (workspace_id, path, content)
		VALUES ($1, $2, $3)
		ON CONFLICT (workspace_id, path)
		DO UPDATE SET content = EXCLUDED.content, updated_at = now()`,
		workspaceID, path, content,
	)
	if err != nil {
		return fmt.Errorf("put workspace file: %w", err)
	}
	return nil
}
