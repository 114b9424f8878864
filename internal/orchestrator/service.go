// Package orchestrator is the control plane for live preview sessions:
// it enforces the one-active-session-per-workspace invariant, routes file
// mutations to the VM sync agent, and reclaims expired sessions.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lzjever/mbos-pvs/internal/core"
	"github.com/lzjever/mbos-pvs/internal/observability"
	"github.com/lzjever/mbos-pvs/internal/provisioner"
)

// SessionStore is the durable session record store.
type SessionStore interface {
	CreateSession(ctx context.Context, sess *core.PreviewSession) error
	GetActiveSession(ctx context.Context, workspaceID string) (*core.PreviewSession, error)
	GetOpenSession(ctx context.Context, workspaceID string) (*core.PreviewSession, error)
	GetSession(ctx context.Context, id string) (*core.PreviewSession, error)
	SetVM(ctx context.Context, id, vmID, vmAddress, syncURL, previewURL string) error
	MarkRunning(ctx context.Context, id string, expiresAt time.Time) error
	SetStatus(ctx context.Context, id string, status core.SessionStatus) error
	RecordSync(ctx context.Context, id string, fileCount int) error
	Touch(ctx context.Context, id string) error
	Extend(ctx context.Context, id string, expiresAt time.Time) error
	ListExpired(ctx context.Context, limit int) ([]core.PreviewSession, error)
	RecordEvent(ctx context.Context, workspaceID string, sessionID *string, action string, payload interface{}) error
}

// ContentStore reads the workspace's generated files.
type ContentStore interface {
	WorkspaceSnapshot(ctx context.Context, workspaceID string) (core.FileSnapshot, error)
}

// Provisioner creates, addresses and destroys preview VMs.
type Provisioner interface {
	EnsureVM(ctx context.Context, workspaceID string) (*provisioner.VM, error)
	DestroyVM(ctx context.Context, vmID string) error
}

// AgentClient talks to the sync agent inside a preview VM.
type AgentClient interface {
	Sync(ctx context.Context, syncURL string, files core.FileSnapshot) (int, error)
	Update(ctx context.Context, syncURL, path, content string) error
}

type Config struct {
	SessionTTL       time.Duration `envconfig:"PVS_SESSION_TTL" default:"30m"`
	ExtendBy         time.Duration `envconfig:"PVS_SESSION_EXTEND_BY" default:"30m"`
	StartTimeout     time.Duration `envconfig:"PVS_START_TIMEOUT" default:"120s"`
	SyncTimeout      time.Duration `envconfig:"PVS_SYNC_TIMEOUT" default:"60s"`
	SweepInterval    time.Duration `envconfig:"PVS_SWEEP_INTERVAL" default:"60s"`
	FailureThreshold int           `envconfig:"PVS_SYNC_FAILURE_THRESHOLD" default:"3"`
}

type Service struct {
	store   SessionStore
	content ContentStore
	vms     Provisioner
	agent   AgentClient
	cfg     Config
	log     *zap.Logger

	locks *keyedMutex

	// Consecutive agent failures per session. Guarded by failMu; the
	// counters are advisory and reset on any success.
	failMu   sync.Mutex
	failures map[string]int
}

func New(store SessionStore, content ContentStore, vms Provisioner, agent AgentClient, cfg Config, log *zap.Logger) *Service {
	return &Service{
		store:    store,
		content:  content,
		vms:      vms,
		agent:    agent,
		cfg:      cfg,
		log:      log,
		locks:    newKeyedMutex(),
		failures: map[string]int{},
	}
}

// SyncResult is returned by SyncFiles.
type SyncResult struct {
	SessionID string
	FileCount int
	SyncedAt  time.Time
}

// StartPreview creates a session and VM for the workspace, or returns the
// existing active session unchanged. The whole path runs under the
// workspace lock and a start timeout; a session is never left in starting.
func (s *Service) StartPreview(ctx context.Context, workspaceID string) (*core.PreviewSession, error) {
	if workspaceID == "" {
		return nil, core.NewAppError(core.ErrBadRequest, "workspaceId required")
	}
	unlock := s.locks.Lock(workspaceID)
	defer unlock()

	// A caller that gives up does not cancel the start mid-flight; the
	// operation runs to completion under its own budget and the next
	// status read reconciles.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.StartTimeout)
	defer cancel()

	existing, err := s.store.GetActiveSession(ctx, workspaceID)
	if err != nil {
		return nil, core.NewAppError(core.ErrInternal, err.Error())
	}
	if existing != nil {
		// Idempotent: no new VM, no new record.
		return existing, nil
	}

	// An expired session keeps its one-active slot until the sweep runs.
	// Clear it here so the fresh start neither collides with the unique
	// index nor leaks the old VM.
	open, err := s.store.GetOpenSession(ctx, workspaceID)
	if err != nil {
		return nil, core.NewAppError(core.ErrInternal, err.Error())
	}
	if open != nil && open.Active() && open.Expired(time.Now()) {
		if err := s.stopSession(ctx, open, "expired"); err != nil {
			return nil, err
		}
	}

	started := time.Now()
	now := started.UTC()
	sess := &core.PreviewSession{
		ID:             core.NewID(),
		WorkspaceID:    workspaceID,
		Status:         core.SessionStarting,
		LastActivityAt: now,
		ExpiresAt:      now.Add(s.cfg.SessionTTL),
		CreatedAt:      now,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, core.NewAppError(core.ErrInternal, fmt.Sprintf("create session: %s", err))
	}
	log := observability.SessionLogger(s.log, sess.ID, workspaceID)
	log.Info("preview session starting")

	vm, err := s.vms.EnsureVM(ctx, workspaceID)
	if err != nil {
		return nil, s.failStart(ctx, sess, "provision", core.ErrProvisioner, err, log)
	}
	// Persist the VM identity before anything else can fail: an errored
	// start must still carry enough for the sweep to destroy the VM.
	if err := s.store.SetVM(ctx, sess.ID, vm.ID, vm.Address, vm.SyncURL, vm.PreviewURL); err != nil {
		return nil, s.failStart(ctx, sess, "store", core.ErrInternal, err, log)
	}

	snapshot, err := s.content.WorkspaceSnapshot(ctx, workspaceID)
	if err != nil {
		return nil, s.failStart(ctx, sess, "content", core.ErrInternal, err, log)
	}
	if len(snapshot) == 0 {
		return nil, s.failStart(ctx, sess, "content", core.ErrPreconditionFailed,
			errors.New("workspace has no generated files"), log)
	}

	fileCount, err := s.agent.Sync(ctx, vm.SyncURL, snapshot)
	if err != nil {
		return nil, s.failStart(ctx, sess, "sync", core.ErrAgentError, err, log)
	}

	expiresAt := time.Now().UTC().Add(s.cfg.SessionTTL)
	if err := s.store.MarkRunning(ctx, sess.ID, expiresAt); err != nil {
		return nil, s.failStart(ctx, sess, "store", core.ErrInternal, err, log)
	}
	if err := s.store.RecordSync(ctx, sess.ID, fileCount); err != nil {
		log.Warn("record first sync failed", zap.Error(err))
	}
	_ = s.store.RecordEvent(ctx, workspaceID, &sess.ID, "preview.start",
		map[string]interface{}{"vm_id": vm.ID, "file_count": fileCount})

	observability.SessionsStartedTotal.Inc()
	observability.SessionStartDuration.Observe(time.Since(started).Seconds())
	log.Info("preview session running",
		zap.String("vm_id", vm.ID),
		zap.Int("file_count", fileCount),
		zap.Duration("took", time.Since(started)))

	sess.Status = core.SessionRunning
	sess.VMID = vm.ID
	sess.VMAddress = vm.Address
	sess.SyncURL = vm.SyncURL
	sess.PreviewURL = vm.PreviewURL
	sess.FileCount = fileCount
	syncedAt := time.Now().UTC()
	sess.FilesSyncedAt = &syncedAt
	sess.ExpiresAt = expiresAt
	return sess, nil
}

func (s *Service) failStart(ctx context.Context, sess *core.PreviewSession, stage string, code core.ErrorCode, cause error, log *zap.Logger) error {
	log.Error("preview start failed", zap.String("stage", stage), zap.Error(cause))
	observability.SessionsErroredTotal.WithLabelValues(stage).Inc()
	// Status writes use a fresh context: the start deadline may already
	// be what failed us.
	stCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.SetStatus(stCtx, sess.ID, core.SessionError); err != nil {
		log.Error("mark session error failed", zap.Error(err))
	}
	_ = s.store.RecordEvent(stCtx, sess.WorkspaceID, &sess.ID, "preview.start_failed",
		map[string]string{"stage": stage, "error": cause.Error()})

	var appErr *core.AppError
	if errors.As(cause, &appErr) {
		return appErr
	}
	return core.NewAppError(code, fmt.Sprintf("%s: %s", stage, cause))
}

// ActiveSession returns the workspace's current non-terminal, unexpired
// session, or nil. Pure read; never mutates.
func (s *Service) ActiveSession(ctx context.Context, workspaceID string) (*core.PreviewSession, error) {
	if workspaceID == "" {
		return nil, core.NewAppError(core.ErrBadRequest, "workspaceId required")
	}
	sess, err := s.store.GetActiveSession(ctx, workspaceID)
	if err != nil {
		return nil, core.NewAppError(core.ErrInternal, err.Error())
	}
	return sess, nil
}

// SyncFiles pushes a full snapshot to the workspace's running session.
// A nil snapshot means "fetch the workspace's generated files". A missing
// or non-running session is a caller error; syncing never starts a VM.
func (s *Service) SyncFiles(ctx context.Context, workspaceID string, files core.FileSnapshot) (*SyncResult, error) {
	if workspaceID == "" {
		return nil, core.NewAppError(core.ErrBadRequest, "workspaceId required")
	}
	unlock := s.locks.Lock(workspaceID)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.SyncTimeout)
	defer cancel()

	sess, err := s.requireRunning(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	if files == nil {
		files, err = s.content.WorkspaceSnapshot(ctx, workspaceID)
		if err != nil {
			return nil, core.NewAppError(core.ErrInternal, err.Error())
		}
		if len(files) == 0 {
			return nil, core.NewAppError(core.ErrNotFound, "no generated files available for workspace")
		}
	}
	if err := files.Validate(); err != nil {
		return nil, core.NewAppError(core.ErrBadRequest, err.Error())
	}

	start := time.Now()
	fileCount, err := s.agent.Sync(ctx, sess.SyncURL, files)
	observability.SyncDuration.WithLabelValues("full").Observe(time.Since(start).Seconds())
	if err != nil {
		observability.SyncTotal.WithLabelValues("full", "error").Inc()
		s.noteAgentFailure(ctx, sess, err)
		return nil, err
	}
	observability.SyncTotal.WithLabelValues("full", "ok").Inc()
	s.clearFailures(sess.ID)

	if err := s.store.RecordSync(ctx, sess.ID, fileCount); err != nil {
		return nil, core.NewAppError(core.ErrInternal, err.Error())
	}
	_ = s.store.RecordEvent(ctx, workspaceID, &sess.ID, "preview.sync",
		map[string]int{"file_count": fileCount})

	return &SyncResult{
		SessionID: sess.ID,
		FileCount: fileCount,
		SyncedAt:  time.Now().UTC(),
	}, nil
}

// UpdateFile pushes a single changed file without a full snapshot re-push.
// The dev server hot-reloads it; no install, no restart, fileCount and
// filesSyncedAt stay as the last full sync left them.
func (s *Service) UpdateFile(ctx context.Context, workspaceID, path, content string) (time.Time, error) {
	if workspaceID == "" {
		return time.Time{}, core.NewAppError(core.ErrBadRequest, "workspaceId required")
	}
	if path == "" {
		return time.Time{}, core.NewAppError(core.ErrBadRequest, "path required")
	}
	cleaned, err := core.CleanPath(path)
	if err != nil {
		return time.Time{}, core.NewAppError(core.ErrBadRequest, err.Error())
	}

	unlock := s.locks.Lock(workspaceID)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.SyncTimeout)
	defer cancel()

	sess, err := s.requireRunning(ctx, workspaceID)
	if err != nil {
		return time.Time{}, err
	}

	start := time.Now()
	err = s.agent.Update(ctx, sess.SyncURL, cleaned, content)
	observability.SyncDuration.WithLabelValues("file").Observe(time.Since(start).Seconds())
	if err != nil {
		observability.SyncTotal.WithLabelValues("file", "error").Inc()
		s.noteAgentFailure(ctx, sess, err)
		return time.Time{}, err
	}
	observability.SyncTotal.WithLabelValues("file", "ok").Inc()
	s.clearFailures(sess.ID)

	if err := s.store.Touch(ctx, sess.ID); err != nil {
		return time.Time{}, core.NewAppError(core.ErrInternal, err.Error())
	}
	return time.Now().UTC(), nil
}

// ExtendSession pushes the expiration deadline out by the configured
// increment. No VM interaction, no status change.
func (s *Service) ExtendSession(ctx context.Context, workspaceID string) (time.Time, error) {
	if workspaceID == "" {
		return time.Time{}, core.NewAppError(core.ErrBadRequest, "workspaceId required")
	}
	unlock := s.locks.Lock(workspaceID)
	defer unlock()

	sess, err := s.store.GetActiveSession(ctx, workspaceID)
	if err != nil {
		return time.Time{}, core.NewAppError(core.ErrInternal, err.Error())
	}
	if sess == nil {
		return time.Time{}, core.NewAppError(core.ErrPreconditionFailed,
			"no active preview session for workspace")
	}

	expiresAt := sess.ExpiresAt.Add(s.cfg.ExtendBy)
	if err := s.store.Extend(ctx, sess.ID, expiresAt); err != nil {
		return time.Time{}, core.NewAppError(core.ErrInternal, err.Error())
	}
	_ = s.store.RecordEvent(ctx, workspaceID, &sess.ID, "preview.extend",
		map[string]string{"expires_at": expiresAt.Format(time.RFC3339)})
	return expiresAt, nil
}

// StopPreview tears down the workspace's session. Idempotent: stopping a
// workspace with no session succeeds with no side effects. The session
// reaches stopped even when VM teardown fails.
func (s *Service) StopPreview(ctx context.Context, workspaceID string) error {
	if workspaceID == "" {
		return core.NewAppError(core.ErrBadRequest, "workspaceId required")
	}
	unlock := s.locks.Lock(workspaceID)
	defer unlock()

	sess, err := s.store.GetOpenSession(ctx, workspaceID)
	if err != nil {
		return core.NewAppError(core.ErrInternal, err.Error())
	}
	if sess == nil {
		return nil
	}
	return s.stopSession(ctx, sess, "explicit")
}

// stopSession runs the shared stop path. Callers hold the workspace lock.
func (s *Service) stopSession(ctx context.Context, sess *core.PreviewSession, reason string) error {
	log := observability.SessionLogger(s.log, sess.ID, sess.WorkspaceID)
	log.Info("stopping preview session", zap.String("reason", reason))

	if err := s.store.SetStatus(ctx, sess.ID, core.SessionStopping); err != nil {
		return core.NewAppError(core.ErrInternal, err.Error())
	}

	if sess.VMID != "" {
		// Best effort: a dead VM must not block the terminal state.
		if err := s.vms.DestroyVM(ctx, sess.VMID); err != nil {
			log.Warn("vm teardown failed", zap.String("vm_id", sess.VMID), zap.Error(err))
		}
	}

	if err := s.store.SetStatus(ctx, sess.ID, core.SessionStopped); err != nil {
		return core.NewAppError(core.ErrInternal, err.Error())
	}
	s.clearFailures(sess.ID)
	_ = s.store.RecordEvent(ctx, sess.WorkspaceID, &sess.ID, "preview.stop",
		map[string]string{"reason": reason})
	observability.SessionsStoppedTotal.WithLabelValues(reason).Inc()
	log.Info("preview session stopped")
	return nil
}

func (s *Service) requireRunning(ctx context.Context, workspaceID string) (*core.PreviewSession, error) {
	sess, err := s.store.GetActiveSession(ctx, workspaceID)
	if err != nil {
		return nil, core.NewAppError(core.ErrInternal, err.Error())
	}
	if sess == nil || sess.Status != core.SessionRunning {
		return nil, core.NewAppError(core.ErrPreconditionFailed,
			"no running preview session for workspace; start a preview first")
	}
	return sess, nil
}

// noteAgentFailure counts consecutive agent failures for a running
// session. A single failure leaves the session running; past the threshold
// the session is demoted to error.
func (s *Service) noteAgentFailure(ctx context.Context, sess *core.PreviewSession, cause error) {
	s.failMu.Lock()
	s.failures[sess.ID]++
	n := s.failures[sess.ID]
	s.failMu.Unlock()

	log := observability.SessionLogger(s.log, sess.ID, sess.WorkspaceID)
	log.Warn("agent request failed", zap.Int("consecutive", n), zap.Error(cause))

	if n >= s.cfg.FailureThreshold {
		log.Error("failure threshold reached, demoting session to error")
		if err := s.store.SetStatus(ctx, sess.ID, core.SessionError); err != nil {
			log.Error("demote session failed", zap.Error(err))
		}
		observability.SessionsErroredTotal.WithLabelValues("agent").Inc()
		s.clearFailures(sess.ID)
	}
}

func (s *Service) clearFailures(sessionID string) {
	s.failMu.Lock()
	delete(s.failures, sessionID)
	s.failMu.Unlock()
}
