package routing

import (
	"fmt"
	"math/big"

	"swaprouter/internal/entities"
)

const bpsDenominator = 10_000

// SwapOptions carries the caller's fee portion settings.
type SwapOptions struct {
	// FeeBps is the share of the output taken as a fee, in basis points.
	FeeBps uint32
	// FeeRecipient receives the fee; empty when no fee is taken.
	FeeRecipient string
}

// PortionProvider adjusts quotes for an optional fee portion.
type PortionProvider interface {
	QuoteGasAndPortionAdjusted(tradeType entities.TradeType, quoteGasAdjusted entities.CurrencyAmount, portionAmount *entities.CurrencyAmount) (*entities.CurrencyAmount, error)
	RoutesWithQuotePortionAdjusted(tradeType entities.TradeType, routes []RouteWithValidQuote, opts *SwapOptions) ([]RouteWithValidQuote, error)
}

// BpsPortionProvider takes the portion as a fixed share of exact-input quotes.
type BpsPortionProvider struct{}

// QuoteGasAndPortionAdjusted is nil without a portion. Exact output quotes are already in
// the input currency, so only exact input subtracts the portion.
func (BpsPortionProvider) QuoteGasAndPortionAdjusted(tradeType entities.TradeType, quoteGasAdjusted entities.CurrencyAmount, portionAmount *entities.CurrencyAmount) (*entities.CurrencyAmount, error) {
	if portionAmount == nil {
		return nil, nil
	}
	if tradeType == entities.ExactOutput {
		q := quoteGasAdjusted
		return &q, nil
	}
	adjusted, err := quoteGasAdjusted.Subtract(*portionAmount)
	if err != nil {
		return nil, fmt.Errorf("subtracting portion: %w", err)
	}
	return &adjusted, nil
}

// RoutesWithQuotePortionAdjusted lowers each exact-input leg's quote by floor(quote * bps / 10000).
// Routes are returned unchanged otherwise.
func (BpsPortionProvider) RoutesWithQuotePortionAdjusted(tradeType entities.TradeType, routes []RouteWithValidQuote, opts *SwapOptions) ([]RouteWithValidQuote, error) {
	if opts == nil || opts.FeeBps == 0 || tradeType != entities.ExactInput {
		return routes, nil
	}

	bps := big.NewInt(int64(opts.FeeBps))
	out := make([]RouteWithValidQuote, len(routes))
	for i, r := range routes {
		quote := r.Quote()
		portion := new(big.Int).Mul(quote.Quotient(), bps)
		portion.Quo(portion, big.NewInt(bpsDenominator))

		adjusted, err := quote.Subtract(entities.FromBigAmount(quote.Currency, portion))
		if err != nil {
			return nil, fmt.Errorf("route %d: %w", i, err)
		}
		out[i] = r.withQuote(adjusted)
	}
	return out, nil
}
