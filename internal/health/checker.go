// Package health runs periodic registry self-checks: database liveness and
// audit chain integrity. Results land in the structured log and, optionally,
// in Prometheus via the metrics callback.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/provenant-id/provenant/internal/auditchain"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
}

// MetricsRecordFunc is an optional callback for recording check results.
type MetricsRecordFunc func(success bool)

// Checker periodically probes the registry's own dependencies.
type Checker struct {
	db        *pgxpool.Pool // nil = database check skipped (memory mode)
	chain     auditchain.Chain
	cfg       Config
	onMetrics MetricsRecordFunc
	logger    *zap.Logger
}

// New creates a Checker. db may be nil when running on the in-memory store.
func New(db *pgxpool.Pool, chain auditchain.Chain, cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 5 * time.Minute
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	return &Checker{db: db, chain: chain, cfg: cfg, logger: logger}
}

// SetMetricsRecord configures the metrics callback.
func (h *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	h.onMetrics = fn
}

// Run blocks, probing on every tick until ctx is cancelled.
func (h *Checker) Run(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (h *Checker) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, h.cfg.ProbeTimeout)
	defer cancel()

	err := h.Check(probeCtx)
	if h.onMetrics != nil {
		h.onMetrics(err == nil)
	}
	if err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
	}
}

// Check runs one probe pass and returns the first failure.
func (h *Checker) Check(ctx context.Context) error {
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping: %w", err)
		}
	}
	if h.chain != nil {
		if err := h.chain.Verify(ctx); err != nil {
			return fmt.Errorf("audit chain: %w", err)
		}
	}
	return nil
}
