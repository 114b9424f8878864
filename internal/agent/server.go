// Package agent implements the VM-resident sync agent: it applies file
// snapshots to the project root, gates dependency installs on manifest
// changes, and supervises the single dev-server process.
package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lzjever/mbos-pvs/internal/core"
	"github.com/lzjever/mbos-pvs/internal/observability"
)

type Server struct {
	cfg       Config
	sup       *Supervisor
	installer *Installer
	log       *zap.Logger

	// syncMu serializes write-install-respawn sequences. Health reads
	// deliberately do not take it.
	syncMu sync.Mutex
}

func NewServer(cfg Config, log *zap.Logger) *Server {
	return &Server{
		cfg:       cfg,
		sup:       NewSupervisor(log),
		installer: NewInstaller(cfg.ProjectRoot, cfg.InstallCmd, cfg.InstallTimeout, log),
		log:       log,
	}
}

// Supervisor exposes the process supervisor for shutdown wiring.
func (s *Server) Supervisor() *Supervisor { return s.sup }

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(cors)

	r.Post("/sync", s.handleSync)
	r.Put("/update", s.handleUpdate)
	r.Get("/health", s.handleHealth)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeAgentJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeAgentJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	return r
}

// cors allows any origin. The VM is per-tenant and only reachable
// through the orchestrator.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type syncRequest struct {
	Files core.FileSnapshot `json:"files"`
}

// handleSync applies a full snapshot: write all files, install dependencies
// if the manifest changed, then replace the dev-server process. An install
// failure aborts before any process churn so the previous dev server keeps
// serving stale-but-working code.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAgentError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Files.Validate(); err != nil {
		writeAgentError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	n, err := writeSnapshot(s.cfg.ProjectRoot, req.Files)
	if err != nil {
		s.log.Error("snapshot write failed", zap.Error(err))
		writeAgentError(w, http.StatusInternalServerError, err.Error())
		return
	}
	observability.AgentFilesWrittenTotal.Add(float64(n))

	// A caller that gives up mid-sync does not cancel the install; the
	// operation completes or fails on its own and the next read reconciles.
	installCtx := context.WithoutCancel(r.Context())
	if _, err := s.installer.MaybeInstall(installCtx, req.Files); err != nil {
		s.log.Error("dependency install failed", zap.Error(err))
		writeAgentError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.sup.Replace(ProcessSpec{
		Command: s.cfg.DevServerCmd,
		Dir:     s.cfg.ProjectRoot,
		Env:     []string{"FORCE_COLOR=1"},
	}); err != nil {
		s.log.Error("dev server spawn failed", zap.Error(err))
		writeAgentError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.log.Info("snapshot applied", zap.Int("files", n))
	writeAgentJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"fileCount": n,
	})
}

type updateRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// handleUpdate is the single-file fast path: write the one file and let
// the dev server's own watcher pick it up. No install, no restart.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAgentError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		writeAgentError(w, http.StatusBadRequest, "path required")
		return
	}
	if _, err := core.CleanPath(req.Path); err != nil {
		writeAgentError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	if err := writeFile(s.cfg.ProjectRoot, req.Path, req.Content); err != nil {
		s.log.Error("file update failed", zap.String("path", req.Path), zap.Error(err))
		writeAgentError(w, http.StatusInternalServerError, err.Error())
		return
	}
	observability.AgentFilesWrittenTotal.Inc()

	writeAgentJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"path":    req.Path,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeAgentJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"viteRunning": s.sup.Running(),
	})
}

func writeAgentJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeAgentError(w http.ResponseWriter, status int, msg string) {
	writeAgentJSON(w, status, map[string]string{"error": msg})
}
