package routing

import (
	"errors"
	"fmt"

	"swaprouter/internal/entities"
)

var ErrNoRoutes = errors.New("trade has no routes")

// Swap is one leg of a trade with its input and output amounts.
type Swap struct {
	Route        RouteWithValidQuote
	InputAmount  entities.CurrencyAmount
	OutputAmount entities.CurrencyAmount
}

// Trade is the aggregate of all legs.
type Trade struct {
	TradeType    entities.TradeType
	InputAmount  entities.CurrencyAmount
	OutputAmount entities.CurrencyAmount
	Swaps        []Swap
}

// TradeBuilder assembles a trade from rehydrated legs.
type TradeBuilder interface {
	BuildTrade(currencyIn, currencyOut entities.Token, tradeType entities.TradeType, routes []RouteWithValidQuote) (*Trade, error)
}

// AggregateTradeBuilder sums leg amounts and quotes into the trade totals. Every leg's path
// must run from currencyIn to currencyOut.
type AggregateTradeBuilder struct{}

func (AggregateTradeBuilder) BuildTrade(currencyIn, currencyOut entities.Token, tradeType entities.TradeType, routes []RouteWithValidQuote) (*Trade, error) {
	if len(routes) == 0 {
		return nil, ErrNoRoutes
	}

	// exact input fixes the input side, exact output the output side
	fixed, quoted := currencyIn, currencyOut
	if tradeType == entities.ExactOutput {
		fixed, quoted = currencyOut, currencyIn
	}

	trade := &Trade{
		TradeType: tradeType,
		Swaps:     make([]Swap, 0, len(routes)),
	}
	totalFixed := entities.Zero(fixed)
	totalQuoted := entities.Zero(quoted)

	for i, r := range routes {
		if path := r.Path(); !path.Input().Equals(currencyIn) || !path.Output().Equals(currencyOut) {
			return nil, fmt.Errorf("route %d runs %s to %s: %w", i, path.Input(), path.Output(), entities.ErrCurrencyMismatch)
		}
		var err error
		if totalFixed, err = totalFixed.Add(r.Amount()); err != nil {
			return nil, fmt.Errorf("route %d amount: %w", i, err)
		}
		if totalQuoted, err = totalQuoted.Add(r.Quote()); err != nil {
			return nil, fmt.Errorf("route %d quote: %w", i, err)
		}

		swap := Swap{Route: r, InputAmount: r.Amount(), OutputAmount: r.Quote()}
		if tradeType == entities.ExactOutput {
			swap.InputAmount, swap.OutputAmount = r.Quote(), r.Amount()
		}
		trade.Swaps = append(trade.Swaps, swap)
	}

	trade.InputAmount, trade.OutputAmount = totalFixed, totalQuoted
	if tradeType == entities.ExactOutput {
		trade.InputAmount, trade.OutputAmount = totalQuoted, totalFixed
	}
	return trade, nil
}
