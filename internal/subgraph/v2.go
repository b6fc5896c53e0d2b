package subgraph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"swaprouter/internal/chains"
	"swaprouter/internal/metrics"
	"swaprouter/internal/providers"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// V2Pool is a sanitised V2 pair record.
type V2Pool struct {
	ID     string
	Token0 TokenRef
	Token1 TokenRef
	Supply decimal.Decimal
	// Reserve is the pair's tracked reserve in native currency.
	Reserve    decimal.Decimal
	ReserveUSD decimal.Decimal
}

func (p V2Pool) Key() string {
	return p.Token0.ID + "/" + p.Token1.ID
}

type rawV2Pool struct {
	ID                string   `json:"id"`
	Token0            TokenRef `json:"token0"`
	Token1            TokenRef `json:"token1"`
	TotalSupply       string   `json:"totalSupply"`
	ReserveETH        string   `json:"reserveETH"`
	TrackedReserveETH string   `json:"trackedReserveETH"`
	ReserveUSD        string   `json:"reserveUSD"`
}

type v2Page struct {
	Pairs []rawV2Pool `json:"pairs"`
}

// V2Fetcher loads every V2 pair the chain's indexer knows about.
type V2Fetcher struct {
	chainID uint64
	url     string
	http    Poster
	opts    Options
	metrics *metrics.Metrics
}

// NewV2Fetcher fails with ErrNoSubgraphURL when chainID has no V2 indexer.
func NewV2Fetcher(reg *chains.Registry, chainID uint64, http Poster, opts Options, m *metrics.Metrics) (*V2Fetcher, error) {
	url := reg.V2SubgraphURL(chainID)
	if url == "" {
		return nil, fmt.Errorf("v2 chain %d: %w", chainID, ErrNoSubgraphURL)
	}
	return &V2Fetcher{chainID: chainID, url: url, http: http, opts: opts, metrics: m}, nil
}

func (f *V2Fetcher) query(block *uint64) string {
	return fmt.Sprintf(`query getPools($pageSize: Int!, $id: String) {
  pairs(
    first: $pageSize
    %s
    orderBy: id
    orderDirection: asc
    where: { id_gt: $id }
  ) {
    id
    token0 { id symbol }
    token1 { id symbol }
    totalSupply
    reserveETH
    trackedReserveETH
    reserveUSD
  }
}`, blockClause(block))
}

func (f *V2Fetcher) page(ctx context.Context, q, lastID string) ([]rawV2Pool, error) {
	data, err := requestPage[v2Page](ctx, f.http, f.url, q, lastID)
	if err != nil {
		return nil, err
	}
	return data.Pairs, nil
}

// GetPools fetches and sanitises every pair, pinned to cfg's block when set.
func (f *V2Fetcher) GetPools(ctx context.Context, cfg *providers.ProviderConfig) ([]V2Pool, error) {
	start := time.Now()
	raw, err := fetchAll(ctx, "v2", f.opts, f.metrics, cfg, f.query, f.page, func(p rawV2Pool) string { return p.ID })
	if err != nil {
		return nil, err
	}

	pools := make([]V2Pool, 0, len(raw))
	for _, r := range raw {
		reserve := parseDecimal(r.TrackedReserveETH)
		reserveUSD := parseDecimal(r.ReserveUSD)
		if !reserve.GreaterThan(dustThreshold) && !reserveUSD.GreaterThan(dustThreshold) {
			continue
		}
		pools = append(pools, V2Pool{
			ID:         strings.ToLower(r.ID),
			Token0:     TokenRef{ID: strings.ToLower(r.Token0.ID), Symbol: r.Token0.Symbol},
			Token1:     TokenRef{ID: strings.ToLower(r.Token1.ID), Symbol: r.Token1.Symbol},
			Supply:     parseDecimal(r.TotalSupply),
			Reserve:    reserve,
			ReserveUSD: reserveUSD,
		})
	}

	f.metrics.RecordSubgraphFetch("v2", time.Since(start), len(raw), len(pools))
	log.Info().
		Uint64("chain_id", f.chainID).
		Int("fetched", len(raw)).
		Int("kept", len(pools)).
		Dur("elapsed", time.Since(start)).
		Msg("Got V2 pools from the subgraph")
	return pools, nil
}
