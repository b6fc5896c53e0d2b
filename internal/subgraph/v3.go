package subgraph

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"swaprouter/internal/chains"
	"swaprouter/internal/metrics"
	"swaprouter/internal/providers"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog/log"
)

// TokenRef is a pool token as the indexer reports it. IDs are lower-case addresses.
type TokenRef struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
}

// V3Pool is a sanitised V3 pool record.
type V3Pool struct {
	ID        string       `json:"id"`
	Token0    TokenRef     `json:"token0"`
	Token1    TokenRef     `json:"token1"`
	FeeTier   uint32       `json:"feeTier"`
	Liquidity *uint256.Int `json:"liquidity"`
}

// Key prints the pool as token0/token1/fee.
func (p V3Pool) Key() string {
	return fmt.Sprintf("%s/%s/%d", p.Token0.ID, p.Token1.ID, p.FeeTier)
}

type rawV3Pool struct {
	ID                  string   `json:"id"`
	Token0              TokenRef `json:"token0"`
	Token1              TokenRef `json:"token1"`
	FeeTier             string   `json:"feeTier"`
	Liquidity           string   `json:"liquidity"`
	TotalValueLockedUSD string   `json:"totalValueLockedUSD"`
	TotalValueLockedETH string   `json:"totalValueLockedETH"`
}

type v3Page struct {
	Pools []rawV3Pool `json:"pools"`
}

// V3Fetcher loads every V3 pool the chain's indexer knows about.
type V3Fetcher struct {
	chainID uint64
	url     string
	http    Poster
	opts    Options
	metrics *metrics.Metrics
}

// NewV3Fetcher fails with ErrNoSubgraphURL when chainID has no V3 indexer.
func NewV3Fetcher(reg *chains.Registry, chainID uint64, http Poster, opts Options, m *metrics.Metrics) (*V3Fetcher, error) {
	url := reg.V3SubgraphURL(chainID)
	if url == "" {
		return nil, fmt.Errorf("v3 chain %d: %w", chainID, ErrNoSubgraphURL)
	}
	return &V3Fetcher{chainID: chainID, url: url, http: http, opts: opts, metrics: m}, nil
}

func (f *V3Fetcher) query(block *uint64) string {
	return fmt.Sprintf(`query getPools($pageSize: Int!, $id: String) {
  pools(
    first: $pageSize
    %s
    orderBy: id
    orderDirection: asc
    where: { id_gt: $id }
  ) {
    id
    token0 { symbol id }
    token1 { symbol id }
    feeTier
    liquidity
    totalValueLockedUSD
    totalValueLockedETH
  }
}`, blockClause(block))
}

func (f *V3Fetcher) page(ctx context.Context, q, lastID string) ([]rawV3Pool, error) {
	data, err := requestPage[v3Page](ctx, f.http, f.url, q, lastID)
	if err != nil {
		return nil, err
	}
	return data.Pools, nil
}

// GetPools fetches and sanitises the whole pool universe, pinned to cfg's block when set.
func (f *V3Fetcher) GetPools(ctx context.Context, cfg *providers.ProviderConfig) ([]V3Pool, error) {
	start := time.Now()
	raw, err := fetchAll(ctx, "v3", f.opts, f.metrics, cfg, f.query, f.page, func(p rawV3Pool) string { return p.ID })
	if err != nil {
		return nil, err
	}

	pools := make([]V3Pool, 0, len(raw))
	for _, r := range raw {
		pool, ok := sanitizeV3(r)
		if ok {
			pools = append(pools, pool)
		}
	}

	f.metrics.RecordSubgraphFetch("v3", time.Since(start), len(raw), len(pools))
	log.Info().
		Uint64("chain_id", f.chainID).
		Int("fetched", len(raw)).
		Int("kept", len(pools)).
		Dur("elapsed", time.Since(start)).
		Msg("Got V3 pools from the subgraph")
	return pools, nil
}

// sanitizeV3 keeps pools with liquidity or more than dust TVL and lower-cases every id.
func sanitizeV3(r rawV3Pool) (V3Pool, bool) {
	liquidity, err := uint256.FromDecimal(r.Liquidity)
	if err != nil {
		liquidity = new(uint256.Int)
	}
	if liquidity.IsZero() && !parseDecimal(r.TotalValueLockedETH).GreaterThan(dustThreshold) {
		return V3Pool{}, false
	}

	fee, err := strconv.ParseUint(r.FeeTier, 10, 32)
	if err != nil {
		log.Warn().Str("pool", r.ID).Str("fee_tier", r.FeeTier).Msg("Skipping pool with malformed fee tier")
		return V3Pool{}, false
	}

	return V3Pool{
		ID:        strings.ToLower(r.ID),
		Token0:    TokenRef{ID: strings.ToLower(r.Token0.ID), Symbol: r.Token0.Symbol},
		Token1:    TokenRef{ID: strings.ToLower(r.Token1.ID), Symbol: r.Token1.Symbol},
		FeeTier:   uint32(fee),
		Liquidity: liquidity,
	}, true
}
