package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lzjever/mbos-pvs/internal/observability"
)

const sweepBatchSize = 100

// Sweeper periodically reclaims sessions past their deadline. It is the
// only actor that stops a session without an explicit caller request.
type Sweeper struct {
	svc *Service
	log *zap.Logger
}

func NewSweeper(svc *Service, log *zap.Logger) *Sweeper {
	return &Sweeper{svc: svc, log: log}
}

// Run loops until ctx is done. One goroutine; a pass finishes before the
// next tick is considered, so sweeps never overlap themselves.
func (sw *Sweeper) Run(ctx context.Context) {
	sw.log.Info("expiration sweeper started",
		zap.Duration("interval", sw.svc.cfg.SweepInterval))
	ticker := time.NewTicker(sw.svc.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sw.log.Info("expiration sweeper stopping")
			return
		case <-ticker.C:
			sw.sweep(ctx)
		}
	}
}

func (sw *Sweeper) sweep(ctx context.Context) {
	observability.SweepRunsTotal.Inc()

	expired, err := sw.svc.store.ListExpired(ctx, sweepBatchSize)
	if err != nil {
		sw.log.Error("sweep: list expired failed", zap.Error(err))
		return
	}
	for i := range expired {
		sess := &expired[i]
		if ctx.Err() != nil {
			return
		}
		unlock := sw.svc.locks.Lock(sess.WorkspaceID)
		// Re-read under the lock: an extend may have raced the listing.
		current, err := sw.svc.store.GetSession(ctx, sess.ID)
		if err == nil && current != nil && !current.Terminal() && current.Expired(time.Now()) {
			if err := sw.svc.stopSession(ctx, current, "expired"); err != nil {
				sw.log.Error("sweep: stop failed",
					zap.String("session_id", sess.ID), zap.Error(err))
			} else {
				observability.SweepReclaimedTotal.Inc()
			}
		}
		unlock()
	}
}
