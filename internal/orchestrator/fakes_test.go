package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lzjever/mbos-pvs/internal/core"
	"github.com/lzjever/mbos-pvs/internal/provisioner"
)

type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]*core.PreviewSession
	events   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: map[string]*core.PreviewSession{}}
}

func (f *fakeStore) CreateSession(_ context.Context, sess *core.PreviewSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.WorkspaceID == sess.WorkspaceID && s.Active() {
			return errors.New("duplicate active session")
		}
	}
	cp := *sess
	f.sessions[sess.ID] = &cp
	return nil
}

func (f *fakeStore) GetActiveSession(_ context.Context, workspaceID string) (*core.PreviewSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.WorkspaceID == workspaceID && s.Active() && !s.Expired(time.Now()) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetOpenSession(_ context.Context, workspaceID string) (*core.PreviewSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.WorkspaceID == workspaceID && !s.Terminal() {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetSession(_ context.Context, id string) (*core.PreviewSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) SetVM(_ context.Context, id, vmID, vmAddress, syncURL, previewURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[id]
	s.VMID = vmID
	s.VMAddress = vmAddress
	s.SyncURL = syncURL
	s.PreviewURL = previewURL
	return nil
}

func (f *fakeStore) MarkRunning(_ context.Context, id string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[id]
	s.Status = core.SessionRunning
	s.ExpiresAt = expiresAt
	s.LastActivityAt = time.Now()
	return nil
}

func (f *fakeStore) SetStatus(_ context.Context, id string, status core.SessionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[id].Status = status
	return nil
}

func (f *fakeStore) RecordSync(_ context.Context, id string, fileCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	s := f.sessions[id]
	s.FileCount = fileCount
	s.FilesSyncedAt = &now
	s.LastActivityAt = now
	return nil
}

func (f *fakeStore) Touch(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[id].LastActivityAt = time.Now()
	return nil
}

func (f *fakeStore) Extend(_ context.Context, id string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[id]
	s.ExpiresAt = expiresAt
	s.LastActivityAt = time.Now()
	return nil
}

func (f *fakeStore) ListExpired(_ context.Context, limit int) ([]core.PreviewSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.PreviewSession
	for _, s := range f.sessions {
		if !s.Terminal() && s.Expired(time.Now()) && len(out) < limit {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeStore) RecordEvent(_ context.Context, _ string, _ *string, action string, _ interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, action)
	return nil
}

func (f *fakeStore) get(id string) *core.PreviewSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.sessions[id]
	return &cp
}

type fakeContent struct {
	snapshot core.FileSnapshot
	err      error
}

func (f *fakeContent) WorkspaceSnapshot(context.Context, string) (core.FileSnapshot, error) {
	return f.snapshot, f.err
}

type fakeProvisioner struct {
	mu         sync.Mutex
	ensures    int
	destroys   []string
	ensureErr  error
	destroyErr error
}

func (f *fakeProvisioner) EnsureVM(_ context.Context, workspaceID string) (*provisioner.VM, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ensureErr != nil {
		return nil, f.ensureErr
	}
	f.ensures++
	return &provisioner.VM{
		ID:         fmt.Sprintf("vm-%s", workspaceID),
		Address:    "10.0.0.1",
		SyncURL:    "http://10.0.0.1:8443",
		PreviewURL: "http://10.0.0.1:5173",
	}, nil
}

func (f *fakeProvisioner) DestroyVM(_ context.Context, vmID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroys = append(f.destroys, vmID)
	return f.destroyErr
}

func (f *fakeProvisioner) ensureCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ensures
}

type fakeAgent struct {
	mu      sync.Mutex
	syncs   int
	updates []string
	syncErr error
	updErr  error
}

func (f *fakeAgent) Sync(_ context.Context, _ string, files core.FileSnapshot) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.syncErr != nil {
		return 0, f.syncErr
	}
	f.syncs++
	return len(files), nil
}

func (f *fakeAgent) Update(_ context.Context, _ string, path, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updErr != nil {
		return f.updErr
	}
	f.updates = append(f.updates, path)
	return nil
}
