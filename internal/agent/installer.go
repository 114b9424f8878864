package agent

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/lzjever/mbos-pvs/internal/core"
	"github.com/lzjever/mbos-pvs/internal/observability"
)

// Installer runs the dependency install step when the manifest content
// changes between snapshots. Callers serialize access; the sync handler
// holds its mutex across writes, install and respawn.
type Installer struct {
	root     string
	command  []string
	timeout  time.Duration
	lastHash [sha256.Size]byte
	haveHash bool
	log      *zap.Logger
}

func NewInstaller(root string, command []string, timeout time.Duration, log *zap.Logger) *Installer {
	return &Installer{root: root, command: command, timeout: timeout, log: log}
}

// MaybeInstall runs the install command if the snapshot carries a manifest
// whose content differs from the last installed one. Returns whether an
// install ran. A failed or timed-out install leaves the recorded hash
// unchanged so the next sync retries it.
func (i *Installer) MaybeInstall(ctx context.Context, snapshot core.FileSnapshot) (bool, error) {
	manifest, ok := snapshot.Manifest()
	if !ok {
		return false, nil
	}
	hash := sha256.Sum256([]byte(manifest))
	if i.haveHash && hash == i.lastHash {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	i.log.Info("dependency manifest changed, installing",
		zap.String("command", i.command[0]))
	start := time.Now()

	cmd := exec.CommandContext(ctx, i.command[0], i.command[1:]...)
	cmd.Dir = i.root
	out, err := cmd.CombinedOutput()

	observability.AgentInstallDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.AgentInstallsTotal.WithLabelValues("error").Inc()
		if ctx.Err() == context.DeadlineExceeded {
			return true, fmt.Errorf("dependency install timed out after %s", i.timeout)
		}
		return true, fmt.Errorf("dependency install: %w: %s", err, truncateOutput(out))
	}

	observability.AgentInstallsTotal.WithLabelValues("ok").Inc()
	i.lastHash = hash
	i.haveHash = true
	i.log.Info("dependency install finished", zap.Duration("took", time.Since(start)))
	return true, nil
}

func truncateOutput(out []byte) string {
	const max = 2048
	if len(out) <= max {
		return string(out)
	}
	return string(out[len(out)-max:])
}
