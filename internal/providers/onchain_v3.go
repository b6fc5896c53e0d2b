package providers

import (
	"context"
	"fmt"
	"math/big"

	"swaprouter/internal/chains"
	"swaprouter/internal/entities"
	"swaprouter/pkg/chain/evm"
	"swaprouter/pkg/contracts"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog/log"
)

const (
	poolBatchSize   = 100
	v3StateCalls    = 2 // slot0, liquidity
	v3PoolsPerBatch = 50
)

// BatchCaller runs many read-only calls in one round trip.
type BatchCaller interface {
	BatchCallContract(ctx context.Context, calls []evm.ContractCall, blockNumber *uint64) ([]evm.CallResult, error)
}

// OnChainV3PoolProvider resolves pool addresses through the factory and reads their state.
type OnChainV3PoolProvider struct {
	chainID uint64
	factory common.Address
	caller  BatchCaller
}

// NewOnChainV3PoolProvider fails when the chain has no V3 factory.
func NewOnChainV3PoolProvider(reg *chains.Registry, chainID uint64, caller BatchCaller) (*OnChainV3PoolProvider, error) {
	factory, ok := reg.V3Factory(chainID)
	if !ok {
		return nil, fmt.Errorf("no v3 factory for chain %d: %w", chainID, chains.ErrUnknownChain)
	}
	return &OnChainV3PoolProvider{chainID: chainID, factory: factory, caller: caller}, nil
}

type v3Candidate struct {
	key     V3PoolKey
	address common.Address
}

// GetPools loads every requested pool that exists. Missing pools are simply absent from the accessor.
func (p *OnChainV3PoolProvider) GetPools(ctx context.Context, keys []V3PoolKey, cfg *ProviderConfig) (V3PoolAccessor, error) {
	block, err := cfg.BlockPtr(ctx)
	if err != nil {
		return nil, err
	}

	keys = dedupeV3Keys(keys)
	candidates, err := p.fetchPoolAddresses(ctx, keys, block)
	if err != nil {
		return nil, fmt.Errorf("fetching v3 pool addresses: %w", err)
	}

	pools := make([]*entities.V3Pool, 0, len(candidates))
	for i := 0; i < len(candidates); i += v3PoolsPerBatch {
		end := min(i+v3PoolsPerBatch, len(candidates))
		batch, err := p.fetchPoolState(ctx, candidates[i:end], block)
		if err != nil {
			return nil, fmt.Errorf("fetching v3 pool state at offset %d: %w", i, err)
		}
		pools = append(pools, batch...)
	}

	log.Debug().
		Int("requested", len(keys)).
		Int("found", len(pools)).
		Msg("Loaded v3 pools")

	return NewV3PoolAccessor(pools), nil
}

func (p *OnChainV3PoolProvider) fetchPoolAddresses(ctx context.Context, keys []V3PoolKey, block *uint64) ([]v3Candidate, error) {
	out := make([]v3Candidate, 0, len(keys))

	for i := 0; i < len(keys); i += poolBatchSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		end := min(i+poolBatchSize, len(keys))
		calls := make([]evm.ContractCall, 0, end-i)
		for _, k := range keys[i:end] {
			callData, err := contracts.V3FactoryABI.Pack("getPool", k.TokenA.Address, k.TokenB.Address, big.NewInt(int64(k.Fee)))
			if err != nil {
				return nil, fmt.Errorf("packing getPool: %w", err)
			}
			calls = append(calls, evm.ContractCall{Target: p.factory, CallData: callData})
		}

		results, err := p.caller.BatchCallContract(ctx, calls, block)
		if err != nil {
			return nil, err
		}

		for j, result := range results {
			if j >= end-i || !result.Success {
				continue
			}
			var addr common.Address
			if err := contracts.V3FactoryABI.UnpackIntoInterface(&addr, "getPool", result.Data); err != nil {
				log.Warn().Int("index", i+j).Err(err).Msg("Failed to unpack pool address")
				continue
			}
			if addr == (common.Address{}) {
				continue
			}
			out = append(out, v3Candidate{key: keys[i+j], address: addr})
		}
	}

	return out, nil
}

func (p *OnChainV3PoolProvider) fetchPoolState(ctx context.Context, candidates []v3Candidate, block *uint64) ([]*entities.V3Pool, error) {
	slot0Data, _ := contracts.V3PoolABI.Pack("slot0")
	liquidityData, _ := contracts.V3PoolABI.Pack("liquidity")

	calls := make([]evm.ContractCall, 0, len(candidates)*v3StateCalls)
	for _, c := range candidates {
		calls = append(calls,
			evm.ContractCall{Target: c.address, CallData: slot0Data},
			evm.ContractCall{Target: c.address, CallData: liquidityData},
		)
	}

	results, err := p.caller.BatchCallContract(ctx, calls, block)
	if err != nil {
		return nil, err
	}

	pools := make([]*entities.V3Pool, 0, len(candidates))
	for i, c := range candidates {
		baseIdx := i * v3StateCalls
		if baseIdx+v3StateCalls > len(results) {
			break
		}
		slot0Result := results[baseIdx]
		liquidityResult := results[baseIdx+1]
		if !slot0Result.Success || !liquidityResult.Success {
			continue
		}

		slot0, err := contracts.V3PoolABI.Unpack("slot0", slot0Result.Data)
		if err != nil || len(slot0) < 2 {
			log.Warn().Str("pool", c.address.Hex()).Err(err).Msg("Failed to unpack slot0")
			continue
		}
		sqrtPrice, ok := slot0[0].(*big.Int)
		if !ok {
			continue
		}
		tick, ok := slot0[1].(*big.Int)
		if !ok {
			continue
		}

		var liquidity *big.Int
		if err := contracts.V3PoolABI.UnpackIntoInterface(&liquidity, "liquidity", liquidityResult.Data); err != nil {
			log.Warn().Str("pool", c.address.Hex()).Err(err).Msg("Failed to unpack liquidity")
			continue
		}

		// Uninitialised pools report a zero price
		if sqrtPrice.Sign() == 0 {
			continue
		}

		pool, err := entities.NewV3Pool(c.address, c.key.TokenA, c.key.TokenB, c.key.Fee,
			uint256.MustFromBig(sqrtPrice), uint256.MustFromBig(liquidity), int32(tick.Int64()))
		if err != nil {
			log.Warn().Str("pool", c.address.Hex()).Err(err).Msg("Skipping pool")
			continue
		}
		pools = append(pools, pool)
	}

	return pools, nil
}
