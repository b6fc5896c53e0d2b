package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Reconciler polls the RPC node so the tracked head keeps moving while the WebSocket
// is down or silently stalled.
type Reconciler struct {
	source   BlockNumberer
	tracker  *Service
	interval time.Duration
}

// NewReconciler creates a new reconciler.
func NewReconciler(source BlockNumberer, tracker *Service, interval time.Duration) *Reconciler {
	return &Reconciler{
		source:   source,
		tracker:  tracker,
		interval: interval,
	}
}

// ReconcileResult describes one poll.
type ReconcileResult struct {
	TrackedBlock uint64
	NodeBlock    uint64
	Advanced     bool
}

// Reconcile reads the node's head once and advances the tracker when it lags. An advance
// is published as a head carrying only its number.
func (r *Reconciler) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	result := &ReconcileResult{TrackedBlock: r.tracker.LastBlockNumber()}

	n, err := r.source.BlockNumber(ctx)
	if err != nil {
		return result, fmt.Errorf("polling block number: %w", err)
	}
	result.NodeBlock = n

	if r.tracker.Advance(n) {
		result.Advanced = true
		r.tracker.publish(&Head{Number: n})
		log.Debug().
			Uint64("from", result.TrackedBlock).
			Uint64("to", n).
			Msg("Advanced head over RPC")
	}
	return result, nil
}

// Run polls every interval until ctx is canceled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", r.interval).Msg("Starting head reconciler")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Reconcile(ctx); err != nil {
				log.Warn().Err(err).Msg("Head reconciliation failed")
			}
		}
	}
}
