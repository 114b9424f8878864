package api

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/lzjever/mbos-pvs/internal/api/middleware"
	"github.com/lzjever/mbos-pvs/internal/core"
	"github.com/lzjever/mbos-pvs/internal/orchestrator"
)

// PreviewService is the control-plane surface the handlers expose.
type PreviewService interface {
	StartPreview(ctx context.Context, workspaceID string) (*core.PreviewSession, error)
	ActiveSession(ctx context.Context, workspaceID string) (*core.PreviewSession, error)
	SyncFiles(ctx context.Context, workspaceID string, files core.FileSnapshot) (*orchestrator.SyncResult, error)
	UpdateFile(ctx context.Context, workspaceID, path, content string) (time.Time, error)
	ExtendSession(ctx context.Context, workspaceID string) (time.Time, error)
	StopPreview(ctx context.Context, workspaceID string) error
}

// Pinger reports backing-store connectivity for readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

type API struct {
	svc PreviewService
	db  Pinger
	log *zap.Logger
}

func NewAPI(svc PreviewService, db Pinger, log *zap.Logger) *API {
	return &API{svc: svc, db: db, log: log}
}

func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Metrics)
	r.Use(middleware.Recoverer(a.log))
	r.Use(middleware.Logger)
	r.Use(chiMiddleware.AllowContentType("application/json"))

	// Health endpoints
	r.Get("/healthz", a.HealthHandler)
	r.Get("/readyz", a.ReadyHandler)

	// Preview session lifecycle
	r.Post("/preview/start", a.StartPreview)
	r.Get("/preview/start", a.GetActiveSession)
	r.Delete("/preview/start", a.StopPreview)

	// File propagation
	r.Post("/preview/sync", a.SyncFiles)
	r.Put("/preview/update", a.UpdateFile)
	r.Post("/preview/update", a.ExtendSession)

	return r
}
