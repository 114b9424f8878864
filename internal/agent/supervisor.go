package agent

import (
	"fmt"
	"os"
	"os/exec"
	"sync"

	"go.uber.org/zap"

	"github.com/lzjever/mbos-pvs/internal/observability"
)

// ProcessSpec describes the dev-server child process to run.
type ProcessSpec struct {
	Command []string
	Dir     string
	Env     []string
}

// Supervisor owns at most one live dev-server process. Replace terminates
// any prior process before installing the new handle, so two handles can
// never be live at once even when syncs overlap.
type Supervisor struct {
	mu  sync.Mutex
	cmd *exec.Cmd
	gen uint64
	log *zap.Logger
}

func NewSupervisor(log *zap.Logger) *Supervisor {
	return &Supervisor{log: log}
}

// Replace kills the current process (if any) and spawns the new one.
// The kill is fire-and-forget: Replace does not wait for the old process
// to exit; its exit status is reaped and logged on a background goroutine
// so supersession noise is swallowed intentionally.
func (s *Supervisor) Replace(spec ProcessSpec) error {
	if len(spec.Command) == 0 {
		return fmt.Errorf("empty process command")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.terminateLocked()

	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		observability.AgentProcessRunning.Set(0)
		return fmt.Errorf("spawn %s: %w", spec.Command[0], err)
	}

	s.gen++
	gen := s.gen
	pid := cmd.Process.Pid
	log := s.log.With(zap.Int("pid", pid), zap.Uint64("generation", gen))
	log.Info("dev server started")

	go func() {
		err := cmd.Wait()
		log.Info("dev server exited", zap.Error(err))
	}()

	s.cmd = cmd
	observability.AgentProcessRestartsTotal.Inc()
	observability.AgentProcessRunning.Set(1)
	return nil
}

// Stop kills the current process, if any. Used on agent shutdown so no
// orphaned dev server survives the agent.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminateLocked()
}

// Running reports whether a process handle is currently held. It says
// nothing about whether the dev server is actually serving.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil
}

// Generation counts successful spawns. Exposed for tests that assert a
// sync did or did not restart the dev server.
func (s *Supervisor) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *Supervisor) terminateLocked() {
	if s.cmd == nil {
		return
	}
	if s.cmd.Process != nil {
		pid := s.cmd.Process.Pid
		if err := s.cmd.Process.Kill(); err != nil {
			s.log.Warn("kill dev server failed", zap.Int("pid", pid), zap.Error(err))
		} else {
			s.log.Info("dev server killed", zap.Int("pid", pid))
		}
	}
	s.cmd = nil
	observability.AgentProcessRunning.Set(0)
}
