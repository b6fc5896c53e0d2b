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
	"github.com/rs/zerolog/log"
)

// OnChainV2PoolProvider resolves pair addresses through the factory and reads reserves.
type OnChainV2PoolProvider struct {
	chainID uint64
	factory common.Address
	caller  BatchCaller
}

// NewOnChainV2PoolProvider fails when the chain has no V2 factory.
func NewOnChainV2PoolProvider(reg *chains.Registry, chainID uint64, caller BatchCaller) (*OnChainV2PoolProvider, error) {
	factory, ok := reg.V2Factory(chainID)
	if !ok {
		return nil, fmt.Errorf("no v2 factory for chain %d: %w", chainID, chains.ErrUnknownChain)
	}
	return &OnChainV2PoolProvider{chainID: chainID, factory: factory, caller: caller}, nil
}

type v2Candidate struct {
	pair    TokenPair
	address common.Address
}

// GetPools loads every requested pair that exists, including pairs with empty reserves.
func (p *OnChainV2PoolProvider) GetPools(ctx context.Context, pairs []TokenPair, cfg *ProviderConfig) (V2PoolAccessor, error) {
	block, err := cfg.BlockPtr(ctx)
	if err != nil {
		return nil, err
	}

	pairs = dedupePairs(pairs)
	var pools []*entities.V2Pool

	for i := 0; i < len(pairs); i += poolBatchSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		end := min(i+poolBatchSize, len(pairs))
		candidates, err := p.fetchPairAddresses(ctx, pairs[i:end], block)
		if err != nil {
			return nil, fmt.Errorf("fetching v2 pair addresses: %w", err)
		}
		batch, err := p.fetchReserves(ctx, candidates, block)
		if err != nil {
			return nil, fmt.Errorf("fetching v2 reserves: %w", err)
		}
		pools = append(pools, batch...)
	}

	log.Debug().
		Int("requested", len(pairs)).
		Int("found", len(pools)).
		Msg("Loaded v2 pairs")

	return NewV2PoolAccessor(pools), nil
}

func (p *OnChainV2PoolProvider) fetchPairAddresses(ctx context.Context, pairs []TokenPair, block *uint64) ([]v2Candidate, error) {
	calls := make([]evm.ContractCall, 0, len(pairs))
	for _, pair := range pairs {
		callData, err := contracts.V2FactoryABI.Pack("getPair", pair.TokenA.Address, pair.TokenB.Address)
		if err != nil {
			return nil, fmt.Errorf("packing getPair: %w", err)
		}
		calls = append(calls, evm.ContractCall{Target: p.factory, CallData: callData})
	}

	results, err := p.caller.BatchCallContract(ctx, calls, block)
	if err != nil {
		return nil, err
	}

	out := make([]v2Candidate, 0, len(pairs))
	for i, result := range results {
		if i >= len(pairs) || !result.Success {
			continue
		}
		var addr common.Address
		if err := contracts.V2FactoryABI.UnpackIntoInterface(&addr, "getPair", result.Data); err != nil {
			log.Warn().Int("index", i).Err(err).Msg("Failed to unpack pair address")
			continue
		}
		if addr == (common.Address{}) {
			continue
		}
		out = append(out, v2Candidate{pair: pairs[i], address: addr})
	}
	return out, nil
}

func (p *OnChainV2PoolProvider) fetchReserves(ctx context.Context, candidates []v2Candidate, block *uint64) ([]*entities.V2Pool, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	reservesData, _ := contracts.V2PairABI.Pack("getReserves")
	calls := make([]evm.ContractCall, len(candidates))
	for i, c := range candidates {
		calls[i] = evm.ContractCall{Target: c.address, CallData: reservesData}
	}

	results, err := p.caller.BatchCallContract(ctx, calls, block)
	if err != nil {
		return nil, err
	}

	pools := make([]*entities.V2Pool, 0, len(candidates))
	for i, c := range candidates {
		if i >= len(results) || !results[i].Success {
			continue
		}

		reserves := struct {
			Reserve0           *big.Int
			Reserve1           *big.Int
			BlockTimestampLast uint32
		}{}
		if err := contracts.V2PairABI.UnpackIntoInterface(&reserves, "getReserves", results[i].Data); err != nil {
			log.Warn().Str("pair", c.address.Hex()).Err(err).Msg("Failed to unpack reserves")
			continue
		}

		t0, t1, err := entities.SortTokens(c.pair.TokenA, c.pair.TokenB)
		if err != nil {
			continue
		}
		pool, err := entities.NewV2Pool(c.address,
			entities.FromBigAmount(t0, reserves.Reserve0),
			entities.FromBigAmount(t1, reserves.Reserve1),
		)
		if err != nil {
			log.Warn().Str("pair", c.address.Hex()).Err(err).Msg("Skipping pair")
			continue
		}
		pools = append(pools, pool)
	}

	return pools, nil
}
