package gas

import (
	"context"
	"fmt"

	"swaprouter/internal/chains"
	"swaprouter/internal/entities"
	"swaprouter/internal/metrics"
	"swaprouter/internal/providers"

	"github.com/rs/zerolog/log"
)

// PoolSelector picks the pools used to price gas.
type PoolSelector struct {
	chains  *chains.Registry
	metrics *metrics.Metrics
	// tiers is the enumeration order; on equal liquidity the earliest tier wins.
	tiers []entities.FeeAmount
}

// NewPoolSelector searches every fee tier of reg's chains. m may be nil.
func NewPoolSelector(reg *chains.Registry, m *metrics.Metrics) *PoolSelector {
	return &PoolSelector{
		chains:  reg,
		metrics: m,
		tiers:   entities.FeeTiers(),
	}
}

// HighestLiquidityNativePool returns the deepest V3 pool pairing token with the wrapped native
// currency, or nil when none exists in any fee tier. Provider failures are returned as errors.
func (s *PoolSelector) HighestLiquidityNativePool(ctx context.Context, token entities.Token, provider providers.V3PoolProvider, cfg *providers.ProviderConfig) (*entities.V3Pool, error) {
	native, err := s.chains.WrappedNative(token.ChainID)
	if err != nil {
		return nil, err
	}

	keys := make([]providers.V3PoolKey, 0, len(s.tiers))
	for _, fee := range s.tiers {
		keys = append(keys, providers.V3PoolKey{TokenA: native, TokenB: token, Fee: fee})
	}

	acc, err := provider.GetPools(ctx, keys, cfg)
	if err != nil {
		return nil, fmt.Errorf("loading native pools for %s: %w", token, err)
	}

	best := deepest(acc, keys)
	s.metrics.RecordPoolLookup("native", best != nil)
	if best == nil {
		log.Info().
			Str("token", token.String()).
			Str("address", token.Address.Hex()).
			Msg("No native pool found for token")
		return nil, nil
	}
	return best, nil
}

// HighestLiquidityUSDPool returns the deepest V3 pool pairing the wrapped native currency with any
// of the chain's USD tokens. It fails when the chain has no USD tokens or no such pool exists.
func (s *PoolSelector) HighestLiquidityUSDPool(ctx context.Context, chainID uint64, provider providers.V3PoolProvider, cfg *providers.ProviderConfig) (*entities.V3Pool, error) {
	usdTokens := s.chains.USDGasTokens(chainID)
	if len(usdTokens) == 0 {
		return nil, fmt.Errorf("chain %d: %w", chainID, ErrNoUSDToken)
	}
	native, err := s.chains.WrappedNative(chainID)
	if err != nil {
		return nil, err
	}

	keys := make([]providers.V3PoolKey, 0, len(s.tiers)*len(usdTokens))
	for _, fee := range s.tiers {
		for _, usd := range usdTokens {
			keys = append(keys, providers.V3PoolKey{TokenA: native, TokenB: usd, Fee: fee})
		}
	}

	acc, err := provider.GetPools(ctx, keys, cfg)
	if err != nil {
		return nil, fmt.Errorf("loading usd pools: %w", err)
	}

	best := deepest(acc, keys)
	s.metrics.RecordPoolLookup("usd", best != nil)
	if best == nil {
		log.Error().
			Uint64("chain_id", chainID).
			Int("candidates", len(keys)).
			Msg("Could not find a USD/native pool for computing gas costs")
		return nil, fmt.Errorf("chain %d: %w", chainID, ErrNoUSDPool)
	}
	return best, nil
}

// V2NativePool returns the V2 pair of token and the wrapped native currency when it exists and
// both reserves are non-zero. A nil provider yields nil.
func (s *PoolSelector) V2NativePool(ctx context.Context, token entities.Token, provider providers.V2PoolProvider, cfg *providers.ProviderConfig) (*entities.V2Pool, error) {
	if provider == nil {
		return nil, nil
	}
	native, err := s.chains.WrappedNative(token.ChainID)
	if err != nil {
		return nil, err
	}

	acc, err := provider.GetPools(ctx, []providers.TokenPair{{TokenA: native, TokenB: token}}, cfg)
	if err != nil {
		return nil, fmt.Errorf("loading v2 native pair for %s: %w", token, err)
	}

	pool := acc.GetPool(native, token)
	if pool == nil {
		s.metrics.RecordPoolLookup("v2_native", false)
		log.Error().Str("token", token.String()).Msg("Could not find a WETH V2 pool with the token for computing gas costs")
		return nil, nil
	}
	if pool.Reserve0().IsZero() || pool.Reserve1().IsZero() {
		s.metrics.RecordPoolLookup("v2_native", false)
		log.Error().
			Str("token", token.String()).
			Str("reserve0", pool.Reserve0().ToExact()).
			Str("reserve1", pool.Reserve1().ToExact()).
			Msg("Either reserve is zero in the WETH V2 pool for computing gas costs")
		return nil, nil
	}
	s.metrics.RecordPoolLookup("v2_native", true)
	return pool, nil
}

// deepest walks keys in order and keeps a pool only when its liquidity is strictly greater.
func deepest(acc providers.V3PoolAccessor, keys []providers.V3PoolKey) *entities.V3Pool {
	var best *entities.V3Pool
	for _, k := range keys {
		pool := acc.GetPool(k.TokenA, k.TokenB, k.Fee)
		if pool == nil {
			continue
		}
		if best == nil || pool.Liquidity().Gt(best.Liquidity()) {
			best = pool
		}
	}
	return best
}
