package routing

import (
	"fmt"
	"math/big"

	"swaprouter/internal/entities"
	"swaprouter/internal/gas"
	"swaprouter/internal/providers"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog/log"
)

// SwapRoute is a fully typed route with its quotes and gas figures.
type SwapRoute struct {
	Quote                      entities.CurrencyAmount
	QuoteGasAdjusted           entities.CurrencyAmount
	QuoteGasAndPortionAdjusted *entities.CurrencyAmount
	EstimatedGasUsed           *uint256.Int
	EstimatedGasUsedQuoteToken entities.CurrencyAmount
	EstimatedGasUsedUSD        entities.CurrencyAmount
	EstimatedGasUsedGasToken   *entities.CurrencyAmount
	GasPriceWei                *uint256.Int
	Trade                      *Trade
	Route                      []RouteWithValidQuote
	BlockNumber                uint64
	MethodParameters           *entities.MethodParameters
	SimulationStatus           SimulationStatus
	PortionAmount              *entities.CurrencyAmount
}

// GasFigures are the already computed gas values a rehydrated route carries unchanged.
type GasFigures struct {
	QuoteGasAdjusted           entities.CurrencyAmount
	EstimatedGasUsed           *uint256.Int
	EstimatedGasUsedQuoteToken entities.CurrencyAmount
	EstimatedGasUsedUSD        entities.CurrencyAmount
	EstimatedGasUsedGasToken   *entities.CurrencyAmount
}

// FiguresFromCost packages an estimator result with the simulated gas it was computed from.
func FiguresFromCost(gasUsed *uint256.Int, c *gas.GasCostResult) GasFigures {
	return GasFigures{
		QuoteGasAdjusted:           c.QuoteGasAdjusted,
		EstimatedGasUsed:           gasUsed,
		EstimatedGasUsedQuoteToken: c.EstimatedGasUsedQuoteToken,
		EstimatedGasUsedUSD:        c.EstimatedGasUsedUSD,
		EstimatedGasUsedGasToken:   c.EstimatedGasUsedGasToken,
	}
}

// Rehydrator turns cached routes back into typed ones bound to live pool providers.
type Rehydrator struct {
	v2      providers.V2PoolProvider
	v3      providers.V3PoolProvider
	portion PortionProvider
	trades  TradeBuilder
}

// NewRehydrator falls back to the default portion provider and trade builder when nil.
func NewRehydrator(v2 providers.V2PoolProvider, v3 providers.V3PoolProvider, portion PortionProvider, trades TradeBuilder) *Rehydrator {
	if portion == nil {
		portion = BpsPortionProvider{}
	}
	if trades == nil {
		trades = AggregateTradeBuilder{}
	}
	return &Rehydrator{v2: v2, v3: v3, portion: portion, trades: trades}
}

// Rehydrate rebuilds s. Every token is rebuilt on the input currency's chain.
func (r *Rehydrator) Rehydrate(s *SerializedSwapRoute, figures GasFigures, opts *SwapOptions) (*SwapRoute, error) {
	chainID := s.CurrencyIn.ChainID
	currencyIn, err := decodeToken(s.CurrencyIn, chainID)
	if err != nil {
		return nil, fmt.Errorf("decoding currency in: %w", err)
	}
	currencyOut, err := decodeToken(s.CurrencyOut, chainID)
	if err != nil {
		return nil, fmt.Errorf("decoding currency out: %w", err)
	}
	tradeType := s.TradeType

	routes := make([]RouteWithValidQuote, 0, len(s.Route))
	for i, sr := range s.Route {
		route, err := r.rehydrateRoute(sr, chainID, tradeType)
		if err != nil {
			return nil, fmt.Errorf("rehydrating route %d: %w", i, err)
		}
		routes = append(routes, route)
	}

	trade, err := r.trades.BuildTrade(currencyIn, currencyOut, tradeType, routes)
	if err != nil {
		return nil, fmt.Errorf("building trade: %w", err)
	}

	quote, err := decodeAmount(s.Quote, chainID)
	if err != nil {
		return nil, fmt.Errorf("decoding quote: %w", err)
	}

	out := &SwapRoute{
		Quote:                      quote,
		QuoteGasAdjusted:           figures.QuoteGasAdjusted,
		EstimatedGasUsed:           figures.EstimatedGasUsed,
		EstimatedGasUsedQuoteToken: figures.EstimatedGasUsedQuoteToken,
		EstimatedGasUsedUSD:        figures.EstimatedGasUsedUSD,
		EstimatedGasUsedGasToken:   figures.EstimatedGasUsedGasToken,
		Trade:                      trade,
		BlockNumber:                s.BlockNumber,
		SimulationStatus:           s.SimulationStatus,
	}

	if s.GasPriceWei != "" {
		if out.GasPriceWei, err = decodeUint256(s.GasPriceWei, "gasPriceWei"); err != nil {
			return nil, err
		}
	}

	if s.PortionAmount != nil {
		portion, err := decodeAmount(*s.PortionAmount, chainID)
		if err != nil {
			return nil, fmt.Errorf("decoding portion amount: %w", err)
		}
		out.PortionAmount = &portion
		if out.QuoteGasAndPortionAdjusted, err = r.portion.QuoteGasAndPortionAdjusted(tradeType, figures.QuoteGasAdjusted, &portion); err != nil {
			return nil, fmt.Errorf("adjusting quote for portion: %w", err)
		}
	}

	if out.Route, err = r.portion.RoutesWithQuotePortionAdjusted(tradeType, routes, opts); err != nil {
		return nil, fmt.Errorf("adjusting routes for portion: %w", err)
	}

	if s.MethodParameters != nil {
		mp := entities.MethodParameters{
			Calldata: s.MethodParameters.Calldata,
			Value:    s.MethodParameters.Value,
			To:       s.MethodParameters.To,
		}
		out.MethodParameters = &mp
	}

	log.Debug().
		Uint64("chain_id", chainID).
		Str("trade_type", tradeType.String()).
		Int("routes", len(out.Route)).
		Uint64("block", s.BlockNumber).
		Msg("Rehydrated cached route")

	return out, nil
}

func (r *Rehydrator) rehydrateRoute(s SerializedRoute, chainID uint64, tradeType entities.TradeType) (RouteWithValidQuote, error) {
	amount, err := decodeAmount(s.Amount, chainID)
	if err != nil {
		return nil, fmt.Errorf("decoding amount: %w", err)
	}
	rawQuote, ok := new(big.Int).SetString(s.RawQuote, 10)
	if !ok {
		return nil, fmt.Errorf("invalid raw quote %q", s.RawQuote)
	}
	gasEstimate := new(uint256.Int)
	if s.GasEstimate != "" {
		if gasEstimate, err = decodeUint256(s.GasEstimate, "gasEstimate"); err != nil {
			return nil, err
		}
	}
	quoteToken, err := decodeToken(s.QuoteToken, chainID)
	if err != nil {
		return nil, fmt.Errorf("decoding quote token: %w", err)
	}
	path, err := decodePath(s.Route, s.Protocol, chainID)
	if err != nil {
		return nil, fmt.Errorf("decoding path: %w", err)
	}

	p := LegParams{
		Amount:      amount,
		RawQuote:    rawQuote,
		QuoteToken:  quoteToken,
		Percent:     s.Percent,
		GasEstimate: gasEstimate,
		TradeType:   tradeType,
		Path:        path,
	}

	switch s.Protocol {
	case entities.ProtocolV2:
		return NewV2Route(p, r.v2)
	case entities.ProtocolV3:
		f, err := decodeV3Fields(s)
		if err != nil {
			return nil, err
		}
		return NewV3Route(p, f, r.v3)
	case entities.ProtocolMixed:
		f, err := decodeV3Fields(s)
		if err != nil {
			return nil, err
		}
		return NewMixedRoute(p, f, r.v2, r.v3)
	default:
		return nil, fmt.Errorf("unsupported route protocol %q", s.Protocol)
	}
}
