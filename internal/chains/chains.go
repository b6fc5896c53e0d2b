// Package chains holds the static per-chain tables used across the router.
package chains

import (
	"errors"
	"fmt"

	"swaprouter/internal/entities"

	"github.com/ethereum/go-ethereum/common"
)

// ErrUnknownChain is returned for chain ids missing from the registry.
var ErrUnknownChain = errors.New("unknown chain")

const (
	Mainnet        uint64 = 1
	Goerli         uint64 = 5
	Optimism       uint64 = 10
	OptimismGoerli uint64 = 420
	ArbitrumOne    uint64 = 42161
	ArbitrumGoerli uint64 = 421613
	Polygon        uint64 = 137
	BNB            uint64 = 56
	Avalanche      uint64 = 43114
	Base           uint64 = 8453
	BaseGoerli     uint64 = 84531
	Celo           uint64 = 42220
)

// FeeModel classifies how a chain charges for L1 data posting.
type FeeModel int

const (
	FeeModelNone FeeModel = iota
	FeeModelArbitrum
	FeeModelOptimism
)

func (m FeeModel) String() string {
	switch m {
	case FeeModelArbitrum:
		return "arbitrum"
	case FeeModelOptimism:
		return "optimism"
	default:
		return "none"
	}
}

// DefaultFeeDetectorAddress is the token fee detector deployment.
var DefaultFeeDetectorAddress = common.HexToAddress("0x19C97dc2a25845C7f9d1d519c8C2d4809c58b43f")

type chainInfo struct {
	name          string
	wrappedNative entities.Token
	usdGasTokens  []entities.Token
	feeModel      FeeModel
	v3SubgraphURL string
	v2SubgraphURL string
	v3Factory     common.Address
	v2Factory     common.Address
	feeDetector   common.Address
}

// Registry is an immutable view over the per-chain tables. Overrides return a new Registry.
type Registry struct {
	chains map[uint64]chainInfo
}

// Name returns a human readable chain name.
func (r *Registry) Name(chainID uint64) string {
	if c, ok := r.chains[chainID]; ok {
		return c.name
	}
	return fmt.Sprintf("chain-%d", chainID)
}

// Supported reports whether chainID is in the registry.
func (r *Registry) Supported(chainID uint64) bool {
	_, ok := r.chains[chainID]
	return ok
}

// WrappedNative returns the wrapped form of the chain's gas currency.
func (r *Registry) WrappedNative(chainID uint64) (entities.Token, error) {
	c, ok := r.chains[chainID]
	if !ok {
		return entities.Token{}, fmt.Errorf("wrapped native for chain %d: %w", chainID, ErrUnknownChain)
	}
	return c.wrappedNative, nil
}

// USDGasTokens returns the chain's USD reference tokens, highest decimals first.
// The slice is a copy.
func (r *Registry) USDGasTokens(chainID uint64) []entities.Token {
	c, ok := r.chains[chainID]
	if !ok {
		return nil
	}
	out := make([]entities.Token, len(c.usdGasTokens))
	copy(out, c.usdGasTokens)
	return out
}

// FeeModel returns the L1 data fee family for the chain.
func (r *Registry) FeeModel(chainID uint64) FeeModel {
	return r.chains[chainID].feeModel
}

func (r *Registry) V3SubgraphURL(chainID uint64) string { return r.chains[chainID].v3SubgraphURL }
func (r *Registry) V2SubgraphURL(chainID uint64) string { return r.chains[chainID].v2SubgraphURL }

// V3Factory returns the V3 factory and whether one is deployed.
func (r *Registry) V3Factory(chainID uint64) (common.Address, bool) {
	c, ok := r.chains[chainID]
	if !ok || c.v3Factory == (common.Address{}) {
		return common.Address{}, false
	}
	return c.v3Factory, true
}

// V2Factory returns the V2 factory and whether one is deployed.
func (r *Registry) V2Factory(chainID uint64) (common.Address, bool) {
	c, ok := r.chains[chainID]
	if !ok || c.v2Factory == (common.Address{}) {
		return common.Address{}, false
	}
	return c.v2Factory, true
}

// FeeDetectorAddress returns the fee detector for the chain.
func (r *Registry) FeeDetectorAddress(chainID uint64) common.Address {
	c, ok := r.chains[chainID]
	if !ok || c.feeDetector == (common.Address{}) {
		return DefaultFeeDetectorAddress
	}
	return c.feeDetector
}

// WithV3SubgraphURL returns a copy of the registry using url for chainID.
func (r *Registry) WithV3SubgraphURL(chainID uint64, url string) *Registry {
	return r.with(chainID, func(c *chainInfo) { c.v3SubgraphURL = url })
}

// WithV2SubgraphURL returns a copy of the registry using url for chainID.
func (r *Registry) WithV2SubgraphURL(chainID uint64, url string) *Registry {
	return r.with(chainID, func(c *chainInfo) { c.v2SubgraphURL = url })
}

// WithFeeDetector returns a copy of the registry using addr as the fee detector for chainID.
func (r *Registry) WithFeeDetector(chainID uint64, addr common.Address) *Registry {
	return r.with(chainID, func(c *chainInfo) { c.feeDetector = addr })
}

func (r *Registry) with(chainID uint64, mutate func(*chainInfo)) *Registry {
	next := make(map[uint64]chainInfo, len(r.chains))
	for id, c := range r.chains {
		next[id] = c
	}
	c := next[chainID]
	mutate(&c)
	next[chainID] = c
	return &Registry{chains: next}
}
