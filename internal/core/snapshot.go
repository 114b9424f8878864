package core

import (
	"fmt"
	"path"
	"strings"
)

// FileSnapshot maps project-relative POSIX paths to full file contents.
// It represents the complete desired state of a workspace's generated
// project at a point in time.
type FileSnapshot map[string]string

// ManifestPath is the dependency manifest file that gates a reinstall
// when its content changes between syncs.
const ManifestPath = "package.json"

// CleanPath normalizes a snapshot key to a clean project-relative path.
// Absolute paths, parent escapes and Windows-style separators are rejected.
func CleanPath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty path")
	}
	if strings.Contains(p, "\\") {
		return "", fmt.Errorf("path %q: backslash separators not allowed", p)
	}
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("path %q: absolute paths not allowed", p)
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("path %q escapes project root", p)
	}
	return cleaned, nil
}

// Validate checks that the snapshot is non-empty and every key is a safe
// project-relative path.
func (fs FileSnapshot) Validate() error {
	if len(fs) == 0 {
		return fmt.Errorf("snapshot has no files")
	}
	for p := range fs {
		if _, err := CleanPath(p); err != nil {
			return err
		}
	}
	return nil
}

// Manifest returns the dependency manifest content, if the snapshot
// carries one.
func (fs FileSnapshot) Manifest() (string, bool) {
	for p, content := range fs {
		if cleaned, err := CleanPath(p); err == nil && cleaned == ManifestPath {
			return content, true
		}
	}
	return "", false
}
