// Package routing holds split-route quotes and rebuilds them from their cached form.
package routing

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"swaprouter/internal/entities"
	"swaprouter/internal/providers"

	"github.com/holiman/uint256"
)

var (
	// ErrMissingV3Fields means a V3 or mixed leg lacks its per-hop swap results.
	ErrMissingV3Fields = errors.New("v3 route requires sqrtPriceX96AfterList and initializedTicksCrossedList")
	// ErrEmptyPath means a route has no pools.
	ErrEmptyPath = errors.New("route path has no pools")
	// ErrPoolGone means a pool on a cached path no longer exists at the requested block.
	ErrPoolGone = errors.New("route pool no longer exists")
)

// Path is the ordered list of pools a route hops through.
type Path struct {
	Protocol  entities.Protocol
	Pools     []entities.Pool
	TokenPath []entities.Token
}

// Input and Output are the path's endpoints. Constructed routes always have both.
func (p Path) Input() entities.Token  { return p.TokenPath[0] }
func (p Path) Output() entities.Token { return p.TokenPath[len(p.TokenPath)-1] }

func (p Path) validate() error {
	if len(p.Pools) == 0 {
		return ErrEmptyPath
	}
	if len(p.TokenPath) != len(p.Pools)+1 {
		return fmt.Errorf("path has %d pools but %d tokens", len(p.Pools), len(p.TokenPath))
	}
	for i, pool := range p.Pools {
		if !pool.Involves(p.TokenPath[i]) || !pool.Involves(p.TokenPath[i+1]) {
			return fmt.Errorf("pool %d does not connect %s and %s", i, p.TokenPath[i], p.TokenPath[i+1])
		}
		switch pool.(type) {
		case *entities.V2Pool:
			if p.Protocol == entities.ProtocolV3 {
				return fmt.Errorf("v2 pool in v3 path at hop %d", i)
			}
		case *entities.V3Pool:
			if p.Protocol == entities.ProtocolV2 {
				return fmt.Errorf("v3 pool in v2 path at hop %d", i)
			}
		}
	}
	return nil
}

// RouteWithValidQuote is one leg of a split route. Implemented by V2Route, V3Route and MixedRoute.
type RouteWithValidQuote interface {
	Protocol() entities.Protocol
	// Amount is the share of the trade routed through this leg.
	Amount() entities.CurrencyAmount
	// Quote is what this leg returns for Amount.
	Quote() entities.CurrencyAmount
	RawQuote() *big.Int
	QuoteToken() entities.Token
	Percent() int
	GasEstimate() *uint256.Int
	TradeType() entities.TradeType
	Path() Path
	// RefreshPools reloads the path's pools at cfg's block, hop by hop.
	RefreshPools(ctx context.Context, cfg *providers.ProviderConfig) ([]entities.Pool, error)

	withQuote(q entities.CurrencyAmount) RouteWithValidQuote
}

// leg is the state every route kind carries.
type leg struct {
	amount      entities.CurrencyAmount
	rawQuote    *big.Int
	quote       entities.CurrencyAmount
	quoteToken  entities.Token
	percent     int
	gasEstimate *uint256.Int
	tradeType   entities.TradeType
	path        Path
}

// LegParams are the fields shared by every route kind.
type LegParams struct {
	Amount      entities.CurrencyAmount
	RawQuote    *big.Int
	QuoteToken  entities.Token
	Percent     int
	GasEstimate *uint256.Int
	TradeType   entities.TradeType
	Path        Path
}

func newLeg(p LegParams) (leg, error) {
	if p.RawQuote == nil {
		return leg{}, fmt.Errorf("route has no raw quote")
	}
	if p.Percent <= 0 || p.Percent > 100 {
		return leg{}, fmt.Errorf("route percent %d out of range", p.Percent)
	}
	if err := p.Path.validate(); err != nil {
		return leg{}, err
	}
	gas := new(uint256.Int)
	if p.GasEstimate != nil {
		gas.Set(p.GasEstimate)
	}
	return leg{
		amount:      p.Amount,
		rawQuote:    new(big.Int).Set(p.RawQuote),
		quote:       entities.FromBigAmount(p.QuoteToken, p.RawQuote),
		quoteToken:  p.QuoteToken,
		percent:     p.Percent,
		gasEstimate: gas,
		tradeType:   p.TradeType,
		path:        p.Path,
	}, nil
}

func (l *leg) Amount() entities.CurrencyAmount { return l.amount }
func (l *leg) Quote() entities.CurrencyAmount  { return l.quote }
func (l *leg) RawQuote() *big.Int              { return new(big.Int).Set(l.rawQuote) }
func (l *leg) QuoteToken() entities.Token      { return l.quoteToken }
func (l *leg) Percent() int                    { return l.percent }
func (l *leg) GasEstimate() *uint256.Int       { return new(uint256.Int).Set(l.gasEstimate) }
func (l *leg) TradeType() entities.TradeType   { return l.tradeType }
func (l *leg) Path() Path                      { return l.path }

// V2Route is a leg through V2 pairs only.
type V2Route struct {
	leg
	pools providers.V2PoolProvider
}

func NewV2Route(p LegParams, pools providers.V2PoolProvider) (*V2Route, error) {
	p.Path.Protocol = entities.ProtocolV2
	l, err := newLeg(p)
	if err != nil {
		return nil, fmt.Errorf("building v2 route: %w", err)
	}
	return &V2Route{leg: l, pools: pools}, nil
}

func (r *V2Route) Protocol() entities.Protocol { return entities.ProtocolV2 }

func (r *V2Route) withQuote(q entities.CurrencyAmount) RouteWithValidQuote {
	c := *r
	c.quote = q
	return &c
}

func (r *V2Route) RefreshPools(ctx context.Context, cfg *providers.ProviderConfig) ([]entities.Pool, error) {
	return refreshPath(ctx, r.path, r.pools, nil, cfg)
}

// V3Fields are the per-hop results the quoter reports for V3 hops.
type V3Fields struct {
	SqrtPriceX96AfterList       []*uint256.Int
	InitializedTicksCrossedList []uint32
}

func (f V3Fields) validate() error {
	if f.SqrtPriceX96AfterList == nil || f.InitializedTicksCrossedList == nil {
		return ErrMissingV3Fields
	}
	if len(f.SqrtPriceX96AfterList) != len(f.InitializedTicksCrossedList) {
		return fmt.Errorf("%d sqrt prices but %d tick counts", len(f.SqrtPriceX96AfterList), len(f.InitializedTicksCrossedList))
	}
	return nil
}

// V3Route is a leg through V3 pools only.
type V3Route struct {
	leg
	V3Fields
	pools providers.V3PoolProvider
}

func NewV3Route(p LegParams, f V3Fields, pools providers.V3PoolProvider) (*V3Route, error) {
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("building v3 route: %w", err)
	}
	p.Path.Protocol = entities.ProtocolV3
	l, err := newLeg(p)
	if err != nil {
		return nil, fmt.Errorf("building v3 route: %w", err)
	}
	return &V3Route{leg: l, V3Fields: f, pools: pools}, nil
}

func (r *V3Route) Protocol() entities.Protocol { return entities.ProtocolV3 }

func (r *V3Route) withQuote(q entities.CurrencyAmount) RouteWithValidQuote {
	c := *r
	c.quote = q
	return &c
}

func (r *V3Route) RefreshPools(ctx context.Context, cfg *providers.ProviderConfig) ([]entities.Pool, error) {
	return refreshPath(ctx, r.path, nil, r.pools, cfg)
}

// MixedRoute is a leg that hops through both V2 and V3 pools.
type MixedRoute struct {
	leg
	V3Fields
	v2Pools providers.V2PoolProvider
	v3Pools providers.V3PoolProvider
}

func NewMixedRoute(p LegParams, f V3Fields, v2Pools providers.V2PoolProvider, v3Pools providers.V3PoolProvider) (*MixedRoute, error) {
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("building mixed route: %w", err)
	}
	p.Path.Protocol = entities.ProtocolMixed
	l, err := newLeg(p)
	if err != nil {
		return nil, fmt.Errorf("building mixed route: %w", err)
	}
	return &MixedRoute{leg: l, V3Fields: f, v2Pools: v2Pools, v3Pools: v3Pools}, nil
}

func (r *MixedRoute) Protocol() entities.Protocol { return entities.ProtocolMixed }

func (r *MixedRoute) withQuote(q entities.CurrencyAmount) RouteWithValidQuote {
	c := *r
	c.quote = q
	return &c
}

func (r *MixedRoute) RefreshPools(ctx context.Context, cfg *providers.ProviderConfig) ([]entities.Pool, error) {
	return refreshPath(ctx, r.path, r.v2Pools, r.v3Pools, cfg)
}

// refreshPath loads every pool of p in one request per protocol and returns them in hop
// order. A hop whose pool is missing fails with ErrPoolGone.
func refreshPath(ctx context.Context, p Path, v2 providers.V2PoolProvider, v3 providers.V3PoolProvider, cfg *providers.ProviderConfig) ([]entities.Pool, error) {
	var (
		v2Acc providers.V2PoolAccessor
		v3Acc providers.V3PoolAccessor
		err   error
	)
	if pairs := v2Pairs(p); len(pairs) > 0 {
		if v2 == nil {
			return nil, fmt.Errorf("%s route has no v2 pool provider", p.Protocol)
		}
		if v2Acc, err = v2.GetPools(ctx, pairs, cfg); err != nil {
			return nil, fmt.Errorf("refreshing v2 pools: %w", err)
		}
	}
	if keys := v3Keys(p); len(keys) > 0 {
		if v3 == nil {
			return nil, fmt.Errorf("%s route has no v3 pool provider", p.Protocol)
		}
		if v3Acc, err = v3.GetPools(ctx, keys, cfg); err != nil {
			return nil, fmt.Errorf("refreshing v3 pools: %w", err)
		}
	}

	out := make([]entities.Pool, len(p.Pools))
	for i, pool := range p.Pools {
		switch old := pool.(type) {
		case *entities.V2Pool:
			if live := v2Acc.GetPool(old.Token0(), old.Token1()); live != nil {
				out[i] = live
			}
		case *entities.V3Pool:
			if live := v3Acc.GetPool(old.Token0(), old.Token1(), old.Fee()); live != nil {
				out[i] = live
			}
		}
		if out[i] == nil {
			return nil, fmt.Errorf("hop %d %s/%s: %w", i, pool.Token0(), pool.Token1(), ErrPoolGone)
		}
	}
	return out, nil
}

func v2Pairs(p Path) []providers.TokenPair {
	var pairs []providers.TokenPair
	for _, pool := range p.Pools {
		if v2, ok := pool.(*entities.V2Pool); ok {
			pairs = append(pairs, providers.TokenPair{TokenA: v2.Token0(), TokenB: v2.Token1()})
		}
	}
	return pairs
}

func v3Keys(p Path) []providers.V3PoolKey {
	var keys []providers.V3PoolKey
	for _, pool := range p.Pools {
		if v3, ok := pool.(*entities.V3Pool); ok {
			keys = append(keys, providers.V3PoolKey{TokenA: v3.Token0(), TokenB: v3.Token1(), Fee: v3.Fee()})
		}
	}
	return keys
}
