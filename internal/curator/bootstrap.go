package curator

import (
	"context"
	"fmt"
	"strconv"

	"swaprouter/internal/entities"
	"swaprouter/internal/persistence"
	"swaprouter/internal/subgraph"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	protocolV3 = string(entities.ProtocolV3)
	protocolV2 = string(entities.ProtocolV2)

	stateLastRefresh = "curator_last_refresh_block"
)

func v3Records(chainID uint64, pools []subgraph.V3Pool) []persistence.PoolRecord {
	out := make([]persistence.PoolRecord, len(pools))
	for i, p := range pools {
		out[i] = persistence.PoolRecord{
			ChainID:   chainID,
			Protocol:  protocolV3,
			ID:        p.ID,
			Token0:    p.Token0.ID,
			Token1:    p.Token1.ID,
			Symbol0:   p.Token0.Symbol,
			Symbol1:   p.Token1.Symbol,
			FeeTier:   p.FeeTier,
			Liquidity: p.Liquidity.Dec(),
		}
	}
	return out
}

func v2Records(chainID uint64, pools []subgraph.V2Pool) []persistence.PoolRecord {
	out := make([]persistence.PoolRecord, len(pools))
	for i, p := range pools {
		out[i] = persistence.PoolRecord{
			ChainID:    chainID,
			Protocol:   protocolV2,
			ID:         p.ID,
			Token0:     p.Token0.ID,
			Token1:     p.Token1.ID,
			Symbol0:    p.Token0.Symbol,
			Symbol1:    p.Token1.Symbol,
			ReserveUSD: p.ReserveUSD.String(),
		}
	}
	return out
}

func v3FromRecords(records []persistence.PoolRecord) []subgraph.V3Pool {
	out := make([]subgraph.V3Pool, 0, len(records))
	for _, r := range records {
		liquidity, err := uint256.FromDecimal(r.Liquidity)
		if err != nil {
			log.Warn().Str("pool", r.ID).Str("liquidity", r.Liquidity).Msg("Skipping stored pool with bad liquidity")
			continue
		}
		out = append(out, subgraph.V3Pool{
			ID:        r.ID,
			Token0:    subgraph.TokenRef{ID: r.Token0, Symbol: r.Symbol0},
			Token1:    subgraph.TokenRef{ID: r.Token1, Symbol: r.Symbol1},
			FeeTier:   r.FeeTier,
			Liquidity: liquidity,
		})
	}
	return out
}

func v2FromRecords(records []persistence.PoolRecord) []subgraph.V2Pool {
	out := make([]subgraph.V2Pool, 0, len(records))
	for _, r := range records {
		reserveUSD, err := decimal.NewFromString(r.ReserveUSD)
		if err != nil {
			reserveUSD = decimal.Zero
		}
		out = append(out, subgraph.V2Pool{
			ID:         r.ID,
			Token0:     subgraph.TokenRef{ID: r.Token0, Symbol: r.Symbol0},
			Token1:     subgraph.TokenRef{ID: r.Token1, Symbol: r.Symbol1},
			ReserveUSD: reserveUSD,
		})
	}
	return out
}

// loadFromStore restores the last persisted universe.
func (c *Curator) loadFromStore(ctx context.Context) error {
	v3, err := c.store.GetPools(ctx, c.config.ChainID, protocolV3)
	if err != nil {
		return fmt.Errorf("loading v3 pools: %w", err)
	}
	var v2 []subgraph.V2Pool
	if c.v2 != nil {
		records, err := c.store.GetPools(ctx, c.config.ChainID, protocolV2)
		if err != nil {
			return fmt.Errorf("loading v2 pools: %w", err)
		}
		v2 = v2FromRecords(records)
	}

	c.swap(v3FromRecords(v3), v2)
	log.Info().Int("v3_pools", len(v3)).Int("v2_pools", len(v2)).Msg("Loaded pools from store")
	return nil
}

// persist writes the snapshot and the last refresh block.
func (c *Curator) persist(ctx context.Context, v3 []subgraph.V3Pool, v2 []subgraph.V2Pool, block uint64) {
	if err := c.store.ReplacePools(ctx, c.config.ChainID, protocolV3, v3Records(c.config.ChainID, v3)); err != nil {
		log.Warn().Err(err).Msg("Failed to persist v3 pools")
	}
	if v2 != nil {
		if err := c.store.ReplacePools(ctx, c.config.ChainID, protocolV2, v2Records(c.config.ChainID, v2)); err != nil {
			log.Warn().Err(err).Msg("Failed to persist v2 pools")
		}
	}
	if block > 0 {
		if err := c.store.SetSystemState(ctx, stateLastRefresh, strconv.FormatUint(block, 10)); err != nil {
			log.Warn().Err(err).Msg("Failed to persist refresh block")
		}
	}
}

// persistTokens resolves metadata for every token in the universe and stores it.
func (c *Curator) persistTokens(ctx context.Context, v3 []subgraph.V3Pool, v2 []subgraph.V2Pool) {
	if c.tokens == nil {
		return
	}

	var addrs []common.Address
	for _, p := range v3 {
		addrs = append(addrs, common.HexToAddress(p.Token0.ID), common.HexToAddress(p.Token1.ID))
	}
	for _, p := range v2 {
		addrs = append(addrs, common.HexToAddress(p.Token0.ID), common.HexToAddress(p.Token1.ID))
	}

	tokens, err := c.tokens.GetTokens(ctx, addrs, c.providerConfig())
	if err != nil {
		log.Warn().Err(err).Msg("Failed to fetch token info")
		return
	}

	records := make([]persistence.TokenRecord, 0, len(tokens))
	for _, t := range tokens {
		records = append(records, persistence.TokenRecord{
			ChainID:  c.config.ChainID,
			Address:  t.Key(),
			Symbol:   t.Symbol,
			Name:     t.Name,
			Decimals: int(t.Decimals),
		})
	}
	if err := c.store.BulkUpsertTokens(ctx, records); err != nil {
		log.Warn().Err(err).Msg("Failed to persist tokens")
	}
}
