package curator

import (
	"context"
	"fmt"
	"time"

	"swaprouter/internal/subgraph"

	"github.com/rs/zerolog/log"
)

// Run refreshes the universe every RefreshInterval. A failed refresh keeps the previous snapshot.
func (c *Curator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.config.RefreshInterval)
	defer ticker.Stop()

	log.Info().
		Dur("interval", c.config.RefreshInterval).
		Int("pools", c.PoolCount()).
		Msg("Starting pool curator")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.refresh(ctx); err != nil {
				log.Error().Err(err).Msg("Pool refresh failed")
			}
		}
	}
}

// refresh performs a single fetch cycle. The V2 universe is best effort.
func (c *Curator) refresh(ctx context.Context) error {
	startTime := time.Now()
	cfg := c.providerConfig()

	block, _, err := cfg.Block(ctx)
	if err != nil {
		return err
	}

	v3, err := c.v3.GetPools(ctx, cfg)
	if err != nil {
		return fmt.Errorf("fetching v3 pools: %w", err)
	}
	if len(v3) == 0 {
		return fmt.Errorf("fetching v3 pools: %w", ErrEmptyUniverse)
	}

	var v2 []subgraph.V2Pool
	if c.v2 != nil {
		v2, err = c.v2.GetPools(ctx, cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to fetch v2 pools, keeping previous")
			v2 = nil
		}
	}

	c.swap(v3, v2)
	c.persist(ctx, v3, v2, block)
	c.persistTokens(ctx, v3, v2)

	log.Info().
		Int("v3_pools", len(v3)).
		Int("v2_pools", len(v2)).
		Uint64("block", block).
		Dur("duration", time.Since(startTime)).
		Msg("Pool universe refreshed")

	return nil
}
