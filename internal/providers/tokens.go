package providers

import (
	"context"
	"fmt"
	"sync"

	"swaprouter/internal/entities"
	"swaprouter/pkg/chain/evm"
	"swaprouter/pkg/contracts"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

const (
	tokenBatchSize  = 50
	tokenInfoCalls  = 3 // symbol, decimals, name
	defaultDecimals = 18
	unknownSymbol   = "UNKNOWN"
)

// TokenProvider returns canonical token metadata for addresses on one chain.
type TokenProvider interface {
	GetTokens(ctx context.Context, addresses []common.Address, cfg *ProviderConfig) (map[common.Address]entities.Token, error)
}

// OnChainTokenProvider reads ERC20 metadata through multicall and caches it for the process lifetime.
type OnChainTokenProvider struct {
	chainID uint64
	caller  BatchCaller

	cache   map[common.Address]entities.Token
	cacheMu sync.RWMutex
}

func NewOnChainTokenProvider(chainID uint64, caller BatchCaller) *OnChainTokenProvider {
	return &OnChainTokenProvider{
		chainID: chainID,
		caller:  caller,
		cache:   make(map[common.Address]entities.Token),
	}
}

// Seed adds known tokens to the cache so they are never fetched.
func (p *OnChainTokenProvider) Seed(tokens ...entities.Token) {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	for _, t := range tokens {
		if t.ChainID == p.chainID {
			p.cache[t.Address] = t
		}
	}
}

// GetTokens returns metadata for every address. Tokens whose getters fail get placeholder metadata.
func (p *OnChainTokenProvider) GetTokens(ctx context.Context, addresses []common.Address, cfg *ProviderConfig) (map[common.Address]entities.Token, error) {
	block, err := cfg.BlockPtr(ctx)
	if err != nil {
		return nil, err
	}

	var toFetch []common.Address
	seen := make(map[common.Address]struct{}, len(addresses))
	p.cacheMu.RLock()
	for _, addr := range addresses {
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		if _, cached := p.cache[addr]; !cached {
			toFetch = append(toFetch, addr)
		}
	}
	p.cacheMu.RUnlock()

	log.Debug().Int("unique", len(seen)).Int("to_fetch", len(toFetch)).Msg("Fetching token info")

	for i := 0; i < len(toFetch); i += tokenBatchSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		end := min(i+tokenBatchSize, len(toFetch))
		if err := p.fetchTokenBatch(ctx, toFetch[i:end], block); err != nil {
			return nil, fmt.Errorf("fetching token batch at offset %d: %w", i, err)
		}
	}

	p.cacheMu.RLock()
	defer p.cacheMu.RUnlock()

	result := make(map[common.Address]entities.Token, len(seen))
	for addr := range seen {
		if t, ok := p.cache[addr]; ok {
			result[addr] = t
		}
	}
	return result, nil
}

func (p *OnChainTokenProvider) fetchTokenBatch(ctx context.Context, addresses []common.Address, block *uint64) error {
	calls := make([]evm.ContractCall, 0, len(addresses)*tokenInfoCalls)

	symbolData, _ := contracts.ERC20ABI.Pack("symbol")
	decimalsData, _ := contracts.ERC20ABI.Pack("decimals")
	nameData, _ := contracts.ERC20ABI.Pack("name")

	for _, addr := range addresses {
		calls = append(calls,
			evm.ContractCall{Target: addr, CallData: symbolData},
			evm.ContractCall{Target: addr, CallData: decimalsData},
			evm.ContractCall{Target: addr, CallData: nameData},
		)
	}

	results, err := p.caller.BatchCallContract(ctx, calls, block)
	if err != nil {
		return err
	}

	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()

	for i, addr := range addresses {
		baseIdx := i * tokenInfoCalls
		if baseIdx+tokenInfoCalls > len(results) {
			break
		}

		token := entities.NewToken(p.chainID, addr, defaultDecimals, unknownSymbol, "")

		if results[baseIdx].Success {
			var symbol string
			if err := contracts.ERC20ABI.UnpackIntoInterface(&symbol, "symbol", results[baseIdx].Data); err == nil {
				token.Symbol = symbol
			}
		}

		if results[baseIdx+1].Success {
			var decimals uint8
			if err := contracts.ERC20ABI.UnpackIntoInterface(&decimals, "decimals", results[baseIdx+1].Data); err == nil {
				token.Decimals = decimals
			}
		} else {
			log.Warn().Str("token", addr.Hex()).Msg("decimals() failed, assuming 18")
		}

		if results[baseIdx+2].Success {
			var name string
			if err := contracts.ERC20ABI.UnpackIntoInterface(&name, "name", results[baseIdx+2].Data); err == nil {
				token.Name = name
			}
		}

		p.cache[addr] = token
	}

	return nil
}
