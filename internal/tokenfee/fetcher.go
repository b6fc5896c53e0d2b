// Package tokenfee probes fee-on-transfer tokens through the on-chain fee detector.
package tokenfee

import (
	"context"
	"fmt"
	"math/big"

	"swaprouter/internal/chains"
	"swaprouter/internal/metrics"
	"swaprouter/internal/providers"
	"swaprouter/pkg/chain/evm"
	"swaprouter/pkg/contracts"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultGasLimit bounds each validate call so one token cannot stall the batch.
	DefaultGasLimit = 1_000_000
	// DefaultAmountToBorrow is large enough to avoid bps rounding on rebasing tokens.
	DefaultAmountToBorrow = 100_000
)

// Result holds a token's transfer fees in basis points.
type Result struct {
	BuyFeeBps  *uint256.Int
	SellFeeBps *uint256.Int
}

// DefaultTokenFeeResult is assumed for tokens without fee data. Each call returns fresh values.
func DefaultTokenFeeResult() Result {
	return Result{BuyFeeBps: new(uint256.Int), SellFeeBps: new(uint256.Int)}
}

// ResultOrDefault looks token up in fees and falls back to zero fees.
func ResultOrDefault(fees map[common.Address]Result, token common.Address) Result {
	if r, ok := fees[token]; ok {
		return r
	}
	return DefaultTokenFeeResult()
}

// Fetcher returns fees for the tokens it could probe. Tokens that failed are absent.
type Fetcher interface {
	FetchFees(ctx context.Context, tokens []common.Address, cfg *providers.ProviderConfig) (map[common.Address]Result, error)
}

// ContractCaller issues a single read-only call with gas and block overrides.
type ContractCaller interface {
	CallContract(ctx context.Context, to common.Address, data []byte, opts *evm.CallOpts) ([]byte, error)
}

type Options struct {
	// Detector overrides the chain's detector address when set.
	Detector       common.Address
	GasLimit       uint64
	AmountToBorrow *big.Int
}

// DefaultOptions uses the detector configured for the chain.
func DefaultOptions() Options {
	return Options{GasLimit: DefaultGasLimit, AmountToBorrow: big.NewInt(DefaultAmountToBorrow)}
}

// validateResult mirrors the detector's TokenFees tuple.
type validateResult struct {
	BuyFeeBps  *big.Int
	SellFeeBps *big.Int
}

// OnChainFetcher calls validate once per token rather than batching, so a token that reverts
// or burns the gas limit only loses its own result.
type OnChainFetcher struct {
	chainID   uint64
	baseToken common.Address
	detector  common.Address
	caller    ContractCaller
	opts      Options
	metrics   *metrics.Metrics
}

func NewOnChainFetcher(reg *chains.Registry, chainID uint64, caller ContractCaller, opts Options, m *metrics.Metrics) (*OnChainFetcher, error) {
	base, err := reg.WrappedNative(chainID)
	if err != nil {
		return nil, err
	}
	detector := opts.Detector
	if detector == (common.Address{}) {
		detector = reg.FeeDetectorAddress(chainID)
	}
	if opts.GasLimit == 0 {
		opts.GasLimit = DefaultGasLimit
	}
	if opts.AmountToBorrow == nil {
		opts.AmountToBorrow = big.NewInt(DefaultAmountToBorrow)
	}
	return &OnChainFetcher{
		chainID:   chainID,
		baseToken: base.Address,
		detector:  detector,
		caller:    caller,
		opts:      opts,
		metrics:   m,
	}, nil
}

// FetchFees probes every token except the wrapped native one concurrently. Probe failures
// are logged and omitted; only a failure to resolve the block fails the call.
func (f *OnChainFetcher) FetchFees(ctx context.Context, tokens []common.Address, cfg *providers.ProviderConfig) (map[common.Address]Result, error) {
	block, err := cfg.BlockPtr(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving block for token fees: %w", err)
	}

	probe := make([]common.Address, 0, len(tokens))
	seen := make(map[common.Address]struct{}, len(tokens))
	for _, t := range tokens {
		if t == f.baseToken {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		probe = append(probe, t)
	}

	results := make([]*Result, len(probe))
	var g errgroup.Group
	for i, token := range probe {
		i, token := i, token
		g.Go(func() error {
			res, err := f.validate(ctx, token, block)
			if err != nil {
				f.metrics.RecordTokenFeeProbe(false)
				log.Error().Err(err).Str("token", token.Hex()).Msg("Error calling validate on-chain for token")
				return nil
			}
			f.metrics.RecordTokenFeeProbe(true)
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[common.Address]Result, len(probe))
	for i, res := range results {
		if res == nil {
			continue
		}
		out[probe[i]] = *res
	}

	log.Debug().
		Uint64("chain_id", f.chainID).
		Int("requested", len(tokens)).
		Int("probed", len(probe)).
		Int("resolved", len(out)).
		Msg("Fetched token fees")
	return out, nil
}

func (f *OnChainFetcher) validate(ctx context.Context, token common.Address, block *uint64) (*Result, error) {
	callData, err := contracts.TokenFeeDetectorABI.Pack("validate", token, f.baseToken, f.opts.AmountToBorrow)
	if err != nil {
		return nil, fmt.Errorf("packing validate: %w", err)
	}

	out, err := f.caller.CallContract(ctx, f.detector, callData, &evm.CallOpts{GasLimit: f.opts.GasLimit, BlockNumber: block})
	if err != nil {
		return nil, err
	}

	values, err := contracts.TokenFeeDetectorABI.Unpack("validate", out)
	if err != nil {
		return nil, fmt.Errorf("unpacking validate: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("validate returned %d values", len(values))
	}
	fees := *abi.ConvertType(values[0], new(validateResult)).(*validateResult)

	buy, overflow := uint256.FromBig(fees.BuyFeeBps)
	if overflow {
		return nil, fmt.Errorf("buy fee overflows")
	}
	sell, overflow := uint256.FromBig(fees.SellFeeBps)
	if overflow {
		return nil, fmt.Errorf("sell fee overflows")
	}
	return &Result{BuyFeeBps: buy, SellFeeBps: sell}, nil
}
