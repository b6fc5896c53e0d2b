package gas

import (
	"context"
	"fmt"
	"time"

	"swaprouter/internal/chains"
	"swaprouter/internal/entities"
	"swaprouter/internal/metrics"
	"swaprouter/internal/providers"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Route is the part of a candidate route the gas computation needs.
type Route struct {
	Quote     entities.CurrencyAmount
	TradeType entities.TradeType
	// GasPriceWei is the price per unit of L2 execution gas.
	GasPriceWei *uint256.Int
	// MethodParameters must be set on rollup chains so the L1 data fee can be priced.
	MethodParameters *entities.MethodParameters
}

// GasCostResult expresses one route's gas cost in every unit the router compares in.
type GasCostResult struct {
	EstimatedGasUsedUSD        entities.CurrencyAmount
	EstimatedGasUsedQuoteToken entities.CurrencyAmount
	// EstimatedGasUsedGasToken is nil unless a gas token was requested and could be priced.
	EstimatedGasUsedGasToken *entities.CurrencyAmount
	QuoteGasAdjusted         entities.CurrencyAmount
}

// Estimator turns simulated gas into priced costs.
type Estimator struct {
	chains   *chains.Registry
	selector *PoolSelector
	metrics  *metrics.Metrics
}

// NewEstimator prices gas through the pools selector picks. m may be nil.
func NewEstimator(reg *chains.Registry, selector *PoolSelector, m *metrics.Metrics) *Estimator {
	return &Estimator{chains: reg, selector: selector, metrics: m}
}

// CalculateGasUsed prices simulatedGasUsed for route. Only a missing USD price or bad chain
// configuration fail the call; gas token and quote token pools are optional.
func (e *Estimator) CalculateGasUsed(
	ctx context.Context,
	chainID uint64,
	route Route,
	simulatedGasUsed *uint256.Int,
	v2Provider providers.V2PoolProvider,
	v3Provider providers.V3PoolProvider,
	l2GasData *L2GasData,
	cfg *providers.ProviderConfig,
) (*GasCostResult, error) {
	start := time.Now()
	defer func() { e.metrics.RecordGasCalcLatency(time.Since(start)) }()

	native, err := e.chains.WrappedNative(chainID)
	if err != nil {
		return nil, err
	}
	quoteToken := route.Quote.Currency

	l1Fee, err := e.l1Surcharge(chainID, route, l2GasData)
	if err != nil {
		return nil, err
	}

	if route.GasPriceWei == nil || simulatedGasUsed == nil {
		return nil, fmt.Errorf("gas price and simulated gas are required")
	}
	gasCostWei := new(uint256.Int)
	if _, overflow := gasCostWei.MulOverflow(route.GasPriceWei, simulatedGasUsed); overflow {
		return nil, fmt.Errorf("gas cost overflows: %s * %s", route.GasPriceWei, simulatedGasUsed)
	}
	if _, overflow := gasCostWei.AddOverflow(gasCostWei, l1Fee); overflow {
		return nil, fmt.Errorf("gas cost plus l1 fee overflows")
	}
	costNative := entities.FromRawAmount(native, gasCostWei)

	usdPool, err := e.selector.HighestLiquidityUSDPool(ctx, chainID, v3Provider, cfg)
	if err != nil {
		return nil, err
	}
	costUSD, err := QuoteThroughNativePool(native, costNative, usdPool)
	if err != nil {
		return nil, err
	}

	var costGasToken *entities.CurrencyAmount
	if cfg != nil && cfg.GasToken != nil {
		costGasToken, err = e.costInGasToken(ctx, native, costNative, *cfg.GasToken, v3Provider, cfg)
		if err != nil {
			return nil, err
		}
	}

	costQuote, err := e.costInQuoteToken(ctx, native, costNative, quoteToken, v2Provider, v3Provider, cfg)
	if err != nil {
		return nil, err
	}

	var adjusted entities.CurrencyAmount
	if route.TradeType == entities.ExactOutput {
		// more input is needed to net the same output
		adjusted, err = route.Quote.Add(costQuote)
	} else {
		adjusted, err = route.Quote.Subtract(costQuote)
	}
	if err != nil {
		return nil, fmt.Errorf("adjusting quote for gas: %w", err)
	}

	log.Debug().
		Uint64("chain_id", chainID).
		Str("gas_cost_wei", gasCostWei.Dec()).
		Str("l1_fee_wei", l1Fee.Dec()).
		Str("gas_cost_usd", costUSD.ToExact()).
		Str("gas_cost_quote", costQuote.ToExact()).
		Msg("Calculated gas cost")

	return &GasCostResult{
		EstimatedGasUsedUSD:        costUSD,
		EstimatedGasUsedQuoteToken: costQuote,
		EstimatedGasUsedGasToken:   costGasToken,
		QuoteGasAdjusted:           adjusted,
	}, nil
}

// l1Surcharge returns the rollup data fee in wei, or zero on chains without one.
func (e *Estimator) l1Surcharge(chainID uint64, route Route, l2GasData *L2GasData) (*uint256.Int, error) {
	model := e.chains.FeeModel(chainID)
	if model == chains.FeeModelNone {
		return new(uint256.Int), nil
	}
	if route.MethodParameters == nil || route.MethodParameters.Calldata == "" {
		return nil, fmt.Errorf("chain %d (%s): %w", chainID, model, ErrMissingCalldata)
	}

	switch model {
	case chains.FeeModelArbitrum:
		if l2GasData == nil || l2GasData.Arbitrum == nil {
			return nil, fmt.Errorf("chain %d arbitrum: %w", chainID, ErrMissingL2GasData)
		}
		_, fee, err := ArbitrumL1Fee(route.MethodParameters.Calldata, *l2GasData.Arbitrum)
		return fee, err
	case chains.FeeModelOptimism:
		if l2GasData == nil || l2GasData.Optimism == nil {
			return nil, fmt.Errorf("chain %d optimism: %w", chainID, ErrMissingL2GasData)
		}
		_, fee, err := OptimismL1Fee(route.MethodParameters.Calldata, *l2GasData.Optimism)
		return fee, err
	default:
		return nil, fmt.Errorf("unsupported fee model %s", model)
	}
}

func (e *Estimator) costInGasToken(
	ctx context.Context,
	native entities.Token,
	costNative entities.CurrencyAmount,
	gasToken entities.Token,
	v3Provider providers.V3PoolProvider,
	cfg *providers.ProviderConfig,
) (*entities.CurrencyAmount, error) {
	if gasToken.Equals(native) {
		return &costNative, nil
	}

	pool, err := e.selector.HighestLiquidityNativePool(ctx, gasToken, v3Provider, cfg)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		log.Info().Str("gas_token", gasToken.String()).Msg("Could not find a V3 pool for gas token")
		return nil, nil
	}

	cost, err := QuoteThroughNativePool(native, costNative, pool)
	if err != nil {
		return nil, err
	}
	return &cost, nil
}

// costInQuoteToken runs the V3 and V2 native pool lookups concurrently and prefers V3.
// Without either pool the cost is zero.
func (e *Estimator) costInQuoteToken(
	ctx context.Context,
	native entities.Token,
	costNative entities.CurrencyAmount,
	quoteToken entities.Token,
	v2Provider providers.V2PoolProvider,
	v3Provider providers.V3PoolProvider,
	cfg *providers.ProviderConfig,
) (entities.CurrencyAmount, error) {
	if quoteToken.Equals(native) {
		return costNative, nil
	}

	var (
		v3Pool *entities.V3Pool
		v2Pool *entities.V2Pool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		v3Pool, err = e.selector.HighestLiquidityNativePool(gctx, quoteToken, v3Provider, cfg)
		return err
	})
	g.Go(func() error {
		var err error
		v2Pool, err = e.selector.V2NativePool(gctx, quoteToken, v2Provider, cfg)
		return err
	})
	if err := g.Wait(); err != nil {
		return entities.CurrencyAmount{}, err
	}

	var pool entities.Pool
	switch {
	case v3Pool != nil:
		pool = v3Pool
	case v2Pool != nil:
		pool = v2Pool
	default:
		log.Info().
			Str("quote_token", quoteToken.String()).
			Msg("Could not find any V2 or V3 pools to convert the cost into the quote token")
		return entities.Zero(quoteToken), nil
	}

	return QuoteThroughNativePool(native, costNative, pool)
}
