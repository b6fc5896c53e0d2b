package curator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"swaprouter/internal/metrics"
	"swaprouter/internal/persistence"
	"swaprouter/internal/providers"
	"swaprouter/internal/subgraph"

	"github.com/rs/zerolog/log"
)

// ErrEmptyUniverse means neither the indexer nor the store had any pools.
var ErrEmptyUniverse = errors.New("pool universe is empty")

// V3Source loads the V3 pool universe.
type V3Source interface {
	GetPools(ctx context.Context, cfg *providers.ProviderConfig) ([]subgraph.V3Pool, error)
}

// V2Source loads the V2 pair universe.
type V2Source interface {
	GetPools(ctx context.Context, cfg *providers.ProviderConfig) ([]subgraph.V2Pool, error)
}

// Store is the persistence the curator needs.
type Store interface {
	ReplacePools(ctx context.Context, chainID uint64, protocol string, pools []persistence.PoolRecord) error
	GetPools(ctx context.Context, chainID uint64, protocol string) ([]persistence.PoolRecord, error)
	BulkUpsertTokens(ctx context.Context, tokens []persistence.TokenRecord) error
	SetSystemState(ctx context.Context, key, value string) error
}

// BlockSource supplies the block to pin a refresh to. A nil ref reads the indexer head.
type BlockSource interface {
	BlockRef() *providers.BlockRef
}

// Config holds curator configuration.
type Config struct {
	ChainID         uint64
	RefreshInterval time.Duration
}

// Curator owns the subgraph pool universe: it loads it, persists it and keeps it fresh.
type Curator struct {
	config  Config
	v3      V3Source
	v2      V2Source
	store   Store
	blocks  BlockSource
	tokens  providers.TokenProvider
	metrics *metrics.Metrics

	mu      sync.RWMutex
	v3Pools []subgraph.V3Pool
	v2Pools []subgraph.V2Pool
}

// NewCurator creates a new curator. v2, blocks and tokens are optional.
func NewCurator(
	cfg Config,
	v3 V3Source,
	v2 V2Source,
	store Store,
	blocks BlockSource,
	tokens providers.TokenProvider,
	m *metrics.Metrics,
) *Curator {
	return &Curator{
		config:  cfg,
		v3:      v3,
		v2:      v2,
		store:   store,
		blocks:  blocks,
		tokens:  tokens,
		metrics: m,
	}
}

// Bootstrap performs the initial universe load. When the indexer fails the stored snapshot
// is used instead; an empty universe either way is an error.
func (c *Curator) Bootstrap(ctx context.Context) error {
	startTime := time.Now()
	log.Info().Uint64("chain_id", c.config.ChainID).Msg("Starting bootstrap")

	err := c.refresh(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Subgraph fetch failed, loading pools from store")
		if loadErr := c.loadFromStore(ctx); loadErr != nil {
			return fmt.Errorf("loading stored pools after %v: %w", err, loadErr)
		}
	}

	if len(c.Pools()) == 0 {
		log.Error().Uint64("chain_id", c.config.ChainID).Msg("No pools in universe")
		return ErrEmptyUniverse
	}

	c.metrics.RecordBootstrapLatency(time.Since(startTime))

	log.Info().
		Int("v3_pools", len(c.Pools())).
		Int("v2_pools", len(c.V2Pools())).
		Dur("duration", time.Since(startTime)).
		Msg("Bootstrap complete")

	return nil
}

// Pools returns the current V3 universe. The slice must not be modified.
func (c *Curator) Pools() []subgraph.V3Pool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v3Pools
}

// V2Pools returns the current V2 universe, empty when no V2 source is configured.
func (c *Curator) V2Pools() []subgraph.V2Pool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v2Pools
}

// PoolCount returns the number of pools across protocols.
func (c *Curator) PoolCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.v3Pools) + len(c.v2Pools)
}

func (c *Curator) providerConfig() *providers.ProviderConfig {
	if c.blocks == nil {
		return nil
	}
	ref := c.blocks.BlockRef()
	if ref == nil {
		return nil
	}
	return &providers.ProviderConfig{BlockNumber: ref}
}

func (c *Curator) swap(v3 []subgraph.V3Pool, v2 []subgraph.V2Pool) {
	c.mu.Lock()
	c.v3Pools = v3
	if v2 != nil {
		c.v2Pools = v2
	}
	c.mu.Unlock()
	c.metrics.SetPoolsTracked(c.PoolCount())
}
