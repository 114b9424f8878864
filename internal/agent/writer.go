package agent

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lzjever/mbos-pvs/internal/core"
)

// writeSnapshot writes every snapshot file under root, creating parent
// directories as needed. Writes are additive: files on disk that the
// snapshot omits are left alone (no pruning). Returns the number of files
// written.
func writeSnapshot(root string, files core.FileSnapshot) (int, error) {
	written := 0
	for p, content := range files {
		if err := writeFile(root, p, content); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func writeFile(root, p, content string) error {
	rel, err := core.CleanPath(p)
	if err != nil {
		return err
	}
	dst := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", rel, err)
	}
	if err := os.WriteFile(dst, []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}
