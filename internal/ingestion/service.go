package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"swaprouter/internal/metrics"
	"swaprouter/internal/providers"

	"github.com/rs/zerolog/log"
)

const (
	maxReconnectAttempts = 10
	initialBackoff       = 1 * time.Second
	maxBackoff           = 30 * time.Second
)

// BlockNumberer reads the latest block number over RPC.
type BlockNumberer interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// Service follows the chain head over a newHeads subscription.
type Service struct {
	wsURL    string
	fallback BlockNumberer
	metrics  *metrics.Metrics

	heads    chan *Head
	latest   atomic.Uint64
	lastHead atomic.Pointer[Head]
}

// NewService creates a head tracker. fallback resolves the block before the first head
// arrives and may be nil.
func NewService(wsURL string, fallback BlockNumberer, m *metrics.Metrics) *Service {
	return &Service{
		wsURL:    wsURL,
		fallback: fallback,
		metrics:  m,
		heads:    make(chan *Head, 16),
	}
}

// Heads returns new heads as they arrive. Heads are dropped when the reader falls behind.
func (s *Service) Heads() <-chan *Head {
	return s.heads
}

// LastBlockNumber returns the highest block seen, or 0 before the first head.
func (s *Service) LastBlockNumber() uint64 {
	return s.latest.Load()
}

// LastHead returns the most recent decoded head, or nil.
func (s *Service) LastHead() *Head {
	return s.lastHead.Load()
}

// BlockRef pins reads to the latest head. Before any head is seen it defers to the
// fallback, and with no fallback it returns nil so reads use latest state.
func (s *Service) BlockRef() *providers.BlockRef {
	if n := s.latest.Load(); n > 0 {
		return providers.PinnedBlock(n)
	}
	if s.fallback != nil {
		return providers.DeferredBlock(s.fallback.BlockNumber)
	}
	return nil
}

// Advance moves the head forward to n. Lower numbers are ignored.
func (s *Service) Advance(n uint64) bool {
	for {
		cur := s.latest.Load()
		if n <= cur {
			return false
		}
		if s.latest.CompareAndSwap(cur, n) {
			s.metrics.SetLastBlockSeen(n)
			return true
		}
	}
}

// Run starts the tracker with automatic reconnection.
func (s *Service) Run(ctx context.Context) error {
	for attempt := 0; attempt < maxReconnectAttempts; attempt++ {
		if attempt > 0 {
			backoff := calculateBackoff(attempt)
			log.Info().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Reconnecting to WebSocket")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := s.runOnce(ctx)
		if err == nil || ctx.Err() != nil {
			return err
		}

		log.Error().Err(err).Msg("WebSocket connection error")
		s.metrics.SetWebSocketConnected(false)
	}

	return fmt.Errorf("max reconnection attempts reached")
}

// runOnce runs until an error occurs or ctx is canceled.
func (s *Service) runOnce(ctx context.Context) error {
	sub, err := subscribeHeads(ctx, s.wsURL)
	if err != nil {
		return fmt.Errorf("subscribing to new heads: %w", err)
	}
	defer sub.close()

	s.metrics.SetWebSocketConnected(true)
	go sub.keepAlive(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- sub.read()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-errCh:
			if err == nil {
				return fmt.Errorf("websocket closed by server")
			}
			return err

		case msg := <-sub.notifications():
			s.processMessage(msg)
		}
	}
}

// processMessage decodes one notification and advances the head.
func (s *Service) processMessage(raw json.RawMessage) {
	head, err := DecodeHead(raw)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to decode head")
		return
	}

	prev := s.latest.Load()
	if prev > 0 && head.Number > prev+1 {
		log.Warn().
			Uint64("last", prev).
			Uint64("block", head.Number).
			Msg("Missed heads")
	}
	if !s.Advance(head.Number) {
		log.Debug().
			Uint64("last", prev).
			Uint64("block", head.Number).
			Str("hash", head.Hash.Hex()).
			Msg("Stale or reorged head")
		return
	}
	s.lastHead.Store(head)
	s.publish(head)

	log.Trace().
		Uint64("block", head.Number).
		Str("hash", head.Hash.Hex()).
		Msg("New head")
}

// publish hands head to the reader without blocking.
func (s *Service) publish(head *Head) {
	select {
	case s.heads <- head:
	default:
		// Reader is behind, skip
	}
}

func calculateBackoff(attempt int) time.Duration {
	backoff := initialBackoff * (1 << uint(attempt))
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}
