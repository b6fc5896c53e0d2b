// Package gas converts simulated gas usage into costs in native currency, USD, a chosen gas
// token and the trade's quote token.
package gas

import (
	"errors"
	"fmt"

	"swaprouter/internal/entities"
)

var (
	// ErrNoUSDToken means the chain has no USD reference tokens configured.
	ErrNoUSDToken = errors.New("no usd gas tokens configured")
	// ErrNoUSDPool means no native/USD pool exists in any fee tier.
	ErrNoUSDPool = errors.New("no native/usd pool found")
	// ErrMissingCalldata means a rollup chain needs calldata to price the L1 fee and the route has none.
	ErrMissingCalldata = errors.New("route has no calldata for l1 fee")
	// ErrMissingL2GasData means a rollup chain needs fee parameters that were not supplied.
	ErrMissingL2GasData = errors.New("missing l2 gas data")
)

// QuoteThroughNativePool converts nativeAmount into the pool's other token at the pool's spot price.
// The pool must contain native.
func QuoteThroughNativePool(native entities.Token, nativeAmount entities.CurrencyAmount, pool entities.Pool) (entities.CurrencyAmount, error) {
	price := pool.Token1Price()
	if pool.Token0().Equals(native) {
		price = pool.Token0Price()
	}
	out, err := price.Quote(nativeAmount)
	if err != nil {
		return entities.CurrencyAmount{}, fmt.Errorf("quoting through %s/%s pool: %w", pool.Token0(), pool.Token1(), err)
	}
	return out, nil
}
