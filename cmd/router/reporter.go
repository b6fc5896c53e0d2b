package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"swaprouter/internal/chains"
	"swaprouter/internal/curator"
	"swaprouter/internal/entities"
	"swaprouter/internal/gas"
	"swaprouter/internal/ingestion"
	"swaprouter/internal/metrics"
	"swaprouter/internal/providers"
	"swaprouter/internal/routing"
	"swaprouter/internal/tokenfee"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// maxFeeProbeTokens caps how many universe tokens are probed for transfer fees at start-up.
const maxFeeProbeTokens = 100

// exactInputSingle(ExactInputSingleParams)
var exactInputSingleSelector = []byte{0x41, 0x4b, 0xf3, 0x89}

// GasPricer suggests the current L2 execution gas price.
type GasPricer interface {
	SuggestGasPrice(ctx context.Context) (*uint256.Int, error)
}

// reporter prices a reference swap from the wrapped native token into a USD token on
// every new head, exports the USD gas cost and caches the priced route. The first head
// after start-up restores the route cached by the previous run.
type reporter struct {
	chainID    uint64
	chains     *chains.Registry
	pricer     GasPricer
	estimator  *gas.Estimator
	selector   *gas.PoolSelector
	l2Data     *gas.L2GasDataProvider
	routes     *routing.RouteCache
	restored   bool
	v2         providers.V2PoolProvider
	v3         providers.V3PoolProvider
	gasToken   *entities.Token
	defaultGas *uint256.Int
	refGasUsed *uint256.Int
	metrics    *metrics.Metrics
}

// run prices the reference swap for each head until ctx is canceled.
func (r *reporter) run(ctx context.Context, heads <-chan *ingestion.Head) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case head := <-heads:
			if err := r.priceHead(ctx, head); err != nil {
				log.Warn().Err(err).Uint64("block", head.Number).Msg("Failed to price reference swap")
			}
		}
	}
}

func (r *reporter) priceHead(ctx context.Context, head *ingestion.Head) error {
	cfg := &providers.ProviderConfig{
		BlockNumber: providers.PinnedBlock(head.Number),
		GasToken:    r.gasToken,
	}

	route, err := r.referenceRoute(ctx)
	if err != nil {
		return err
	}

	var l2 *gas.L2GasData
	if r.chains.FeeModel(r.chainID) != chains.FeeModelNone {
		l2, err = r.l2Data.Fetch(ctx, cfg)
		if err != nil {
			return err
		}
	}

	cost, err := r.estimator.CalculateGasUsed(ctx, r.chainID, route, r.refGasUsed, r.v2, r.v3, l2, cfg)
	if err != nil {
		return err
	}

	usd, err := decimal.NewFromString(cost.EstimatedGasUsedUSD.ToExact())
	if err == nil {
		r.metrics.SetGasCostUSD(usd.InexactFloat64())
	}

	event := log.Info().
		Uint64("block", head.Number).
		Str("gas_price_wei", route.GasPriceWei.Dec()).
		Str("gas_cost_usd", cost.EstimatedGasUsedUSD.ToExact()).
		Str("gas_cost_quote", cost.EstimatedGasUsedQuoteToken.ToExact()).
		Str("quote_gas_adjusted", cost.QuoteGasAdjusted.ToExact())
	if cost.EstimatedGasUsedGasToken != nil {
		event = event.Str("gas_cost_gas_token", cost.EstimatedGasUsedGasToken.ToExact())
	}
	event.Msg("Priced reference swap")

	if r.routes == nil {
		return nil
	}
	if !r.restored {
		r.restored = true
		if prev, err := r.restore(ctx, cost, cfg); err != nil {
			log.Info().Err(err).Msg("Cached reference route not restored")
		} else if prev != nil {
			log.Info().
				Uint64("cached_block", prev.BlockNumber).
				Uint64("block", head.Number).
				Str("cached_quote", prev.Quote.ToExact()).
				Msg("Restored cached reference route")
		}
	}

	swap, err := r.swapRoute(ctx, route, cost, head.Number, cfg)
	if err != nil {
		return err
	}
	if swap == nil {
		return nil
	}
	return r.routes.Put(ctx, swap)
}

// swapRoute turns the priced reference swap into a single-leg route through the deepest
// native/USD pool. It returns nil when no such pool exists at the head.
func (r *reporter) swapRoute(ctx context.Context, route gas.Route, cost *gas.GasCostResult, block uint64, cfg *providers.ProviderConfig) (*routing.SwapRoute, error) {
	native, err := r.chains.WrappedNative(r.chainID)
	if err != nil {
		return nil, err
	}
	usd := route.Quote.Currency
	pool, err := r.selector.HighestLiquidityNativePool(ctx, usd, r.v3, cfg)
	if err != nil || pool == nil {
		return nil, err
	}

	price := pool.Token1Price()
	if pool.Token0().Equals(usd) {
		price = pool.Token0Price()
	}
	amountIn, err := price.Quote(route.Quote)
	if err != nil {
		return nil, fmt.Errorf("pricing reference input: %w", err)
	}

	leg, err := routing.NewV3Route(routing.LegParams{
		Amount:      amountIn,
		RawQuote:    route.Quote.Quotient(),
		QuoteToken:  usd,
		Percent:     100,
		GasEstimate: r.refGasUsed,
		TradeType:   route.TradeType,
		Path: routing.Path{
			Pools:     []entities.Pool{pool},
			TokenPath: []entities.Token{native, usd},
		},
	}, routing.V3Fields{
		SqrtPriceX96AfterList:       []*uint256.Int{pool.SqrtPriceX96()},
		InitializedTicksCrossedList: []uint32{0},
	}, r.v3)
	if err != nil {
		return nil, err
	}
	legs := []routing.RouteWithValidQuote{leg}
	trade, err := routing.AggregateTradeBuilder{}.BuildTrade(native, usd, route.TradeType, legs)
	if err != nil {
		return nil, err
	}

	figures := routing.FiguresFromCost(r.refGasUsed, cost)
	return &routing.SwapRoute{
		Quote:                      route.Quote,
		QuoteGasAdjusted:           figures.QuoteGasAdjusted,
		EstimatedGasUsed:           figures.EstimatedGasUsed,
		EstimatedGasUsedQuoteToken: figures.EstimatedGasUsedQuoteToken,
		EstimatedGasUsedUSD:        figures.EstimatedGasUsedUSD,
		EstimatedGasUsedGasToken:   figures.EstimatedGasUsedGasToken,
		GasPriceWei:                route.GasPriceWei,
		Trade:                      trade,
		Route:                      legs,
		BlockNumber:                block,
		MethodParameters:           route.MethodParameters,
		SimulationStatus:           routing.SimulationNotSupported,
	}, nil
}

// restore rebuilds the cached reference route with current gas figures and checks that
// every pool it hops through still exists at cfg's block. It returns nil when nothing
// is cached.
func (r *reporter) restore(ctx context.Context, cost *gas.GasCostResult, cfg *providers.ProviderConfig) (*routing.SwapRoute, error) {
	native, err := r.chains.WrappedNative(r.chainID)
	if err != nil {
		return nil, err
	}
	usdTokens := r.chains.USDGasTokens(r.chainID)
	if len(usdTokens) == 0 {
		return nil, gas.ErrNoUSDToken
	}

	cached, err := r.routes.Get(ctx, routing.KeyFor(native, usdTokens[0], entities.ExactInput))
	if err != nil || cached == nil {
		return nil, err
	}

	prev, err := routing.NewRehydrator(r.v2, r.v3, nil, nil).Rehydrate(cached, routing.FiguresFromCost(r.refGasUsed, cost), nil)
	if err != nil {
		return nil, err
	}
	for i, leg := range prev.Route {
		if _, err := leg.RefreshPools(ctx, cfg); err != nil {
			if errors.Is(err, routing.ErrPoolGone) {
				return nil, fmt.Errorf("cached route from block %d is stale: %w", prev.BlockNumber, err)
			}
			return nil, fmt.Errorf("refreshing leg %d: %w", i, err)
		}
	}
	return prev, nil
}

// referenceRoute quotes 1000 units of the chain's first USD token as the output of an
// exact-input swap from the wrapped native token.
func (r *reporter) referenceRoute(ctx context.Context) (gas.Route, error) {
	native, err := r.chains.WrappedNative(r.chainID)
	if err != nil {
		return gas.Route{}, err
	}
	usdTokens := r.chains.USDGasTokens(r.chainID)
	if len(usdTokens) == 0 {
		return gas.Route{}, gas.ErrNoUSDToken
	}
	usd := usdTokens[0]

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(usd.Decimals)), nil)
	quote := entities.FromBigAmount(usd, new(big.Int).Mul(big.NewInt(1000), scale))

	price, err := r.pricer.SuggestGasPrice(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Gas price unavailable, using default")
		price = r.defaultGas
	}

	return gas.Route{
		Quote:       quote,
		TradeType:   entities.ExactInput,
		GasPriceWei: price,
		MethodParameters: &entities.MethodParameters{
			Calldata: referenceCalldata(native.Address, usd.Address, 500, quote),
			Value:    "0x00",
		},
	}, nil
}

// referenceCalldata encodes an exactInputSingle call so rollup data fees have realistic input.
func referenceCalldata(tokenIn, tokenOut common.Address, fee uint32, amountOut entities.CurrencyAmount) string {
	raw, err := amountOut.Raw()
	if err != nil {
		raw = new(uint256.Int)
	}
	words := [][]byte{
		common.LeftPadBytes(tokenIn.Bytes(), 32),
		common.LeftPadBytes(tokenOut.Bytes(), 32),
		common.LeftPadBytes(new(big.Int).SetUint64(uint64(fee)).Bytes(), 32),
		common.LeftPadBytes(tokenIn.Bytes(), 32), // recipient
		common.LeftPadBytes(big.NewInt(1<<40).Bytes(), 32),
		common.LeftPadBytes(raw.Bytes(), 32),
		common.LeftPadBytes(raw.Bytes(), 32),
		make([]byte, 32),
	}
	data := append([]byte{}, exactInputSingleSelector...)
	for _, w := range words {
		data = append(data, w...)
	}
	return hexutil.Encode(data)
}

// probeTokenFees warms the fee cache for the tokens of the deepest pools in the universe.
func probeTokenFees(ctx context.Context, c *curator.Curator, fees tokenfee.Fetcher, blocks curator.BlockSource) {
	pools := append(c.Pools()[:0:0], c.Pools()...)
	sort.Slice(pools, func(i, j int) bool {
		if pools[j].Liquidity == nil {
			return pools[i].Liquidity != nil
		}
		return pools[i].Liquidity != nil && pools[i].Liquidity.Gt(pools[j].Liquidity)
	})

	seen := make(map[common.Address]struct{})
	var tokens []common.Address
	for _, p := range pools {
		for _, ref := range []string{p.Token0.ID, p.Token1.ID} {
			addr := common.HexToAddress(ref)
			if _, ok := seen[addr]; ok {
				continue
			}
			seen[addr] = struct{}{}
			tokens = append(tokens, addr)
		}
		if len(tokens) >= maxFeeProbeTokens {
			break
		}
	}

	result, err := fees.FetchFees(ctx, tokens, &providers.ProviderConfig{BlockNumber: blocks.BlockRef()})
	if err != nil {
		log.Warn().Err(err).Msg("Token fee probe failed")
		return
	}

	taxed := 0
	for _, r := range result {
		if !r.BuyFeeBps.IsZero() || !r.SellFeeBps.IsZero() {
			taxed++
		}
	}
	log.Info().
		Int("tokens", len(tokens)).
		Int("probed", len(result)).
		Int("fee_on_transfer", taxed).
		Msg("Token fee cache warmed")
}
