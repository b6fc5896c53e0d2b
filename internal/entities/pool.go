package entities

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// FeeAmount is a V3 fee tier in hundredths of a basis point.
type FeeAmount uint32

const (
	FeeLowest FeeAmount = 100
	FeeLow    FeeAmount = 500
	FeeMedium FeeAmount = 3000
	FeeHigh   FeeAmount = 10000
)

// FeeTiers returns every supported tier, lowest first. Pool selection relies on this order.
func FeeTiers() []FeeAmount {
	return []FeeAmount{FeeLowest, FeeLow, FeeMedium, FeeHigh}
}

func (f FeeAmount) String() string {
	switch f {
	case FeeLowest:
		return "LOWEST"
	case FeeLow:
		return "LOW"
	case FeeMedium:
		return "MEDIUM"
	case FeeHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("FEE_%d", uint32(f))
	}
}

// Pool is the read-only view shared by V2 and V3 pools.
type Pool interface {
	Token0() Token
	Token1() Token
	Token0Price() Price
	Token1Price() Price
	Involves(token Token) bool
}

var q192 = new(big.Int).Lsh(big.NewInt(1), 192)

// V3Pool is a concentrated-liquidity pool snapshot.
type V3Pool struct {
	address      common.Address
	token0       Token
	token1       Token
	fee          FeeAmount
	sqrtPriceX96 *uint256.Int
	liquidity    *uint256.Int
	tickCurrent  int32
}

// NewV3Pool orders the tokens canonically and copies the state values.
func NewV3Pool(address common.Address, tokenA, tokenB Token, fee FeeAmount, sqrtPriceX96, liquidity *uint256.Int, tick int32) (*V3Pool, error) {
	t0, t1, err := SortTokens(tokenA, tokenB)
	if err != nil {
		return nil, fmt.Errorf("creating v3 pool: %w", err)
	}
	if sqrtPriceX96 == nil || sqrtPriceX96.IsZero() {
		return nil, fmt.Errorf("creating v3 pool %s/%s: zero sqrt price", t0, t1)
	}
	liq := new(uint256.Int)
	if liquidity != nil {
		liq.Set(liquidity)
	}
	return &V3Pool{
		address:      address,
		token0:       t0,
		token1:       t1,
		fee:          fee,
		sqrtPriceX96: new(uint256.Int).Set(sqrtPriceX96),
		liquidity:    liq,
		tickCurrent:  tick,
	}, nil
}

func (p *V3Pool) Address() common.Address { return p.address }
func (p *V3Pool) Token0() Token            { return p.token0 }
func (p *V3Pool) Token1() Token            { return p.token1 }
func (p *V3Pool) Fee() FeeAmount           { return p.fee }
func (p *V3Pool) TickCurrent() int32       { return p.tickCurrent }

// SqrtPriceX96 returns a copy of the pool's sqrt price.
func (p *V3Pool) SqrtPriceX96() *uint256.Int { return new(uint256.Int).Set(p.sqrtPriceX96) }

// Liquidity returns a copy of the in-range liquidity.
func (p *V3Pool) Liquidity() *uint256.Int { return new(uint256.Int).Set(p.liquidity) }

// Token0Price is sqrtPriceX96^2 / 2^192.
func (p *V3Pool) Token0Price() Price {
	sqrt := p.sqrtPriceX96.ToBig()
	return NewPrice(p.token0, p.token1, q192, new(big.Int).Mul(sqrt, sqrt))
}

// Token1Price is the inverse of Token0Price.
func (p *V3Pool) Token1Price() Price {
	sqrt := p.sqrtPriceX96.ToBig()
	return NewPrice(p.token1, p.token0, new(big.Int).Mul(sqrt, sqrt), q192)
}

func (p *V3Pool) Involves(token Token) bool {
	return token.Equals(p.token0) || token.Equals(p.token1)
}

// V2Pool is a constant-product pair snapshot.
type V2Pool struct {
	address  common.Address
	reserve0 CurrencyAmount
	reserve1 CurrencyAmount
}

// NewV2Pool orders the reserves by token.
func NewV2Pool(address common.Address, reserveA, reserveB CurrencyAmount) (*V2Pool, error) {
	t0, _, err := SortTokens(reserveA.Currency, reserveB.Currency)
	if err != nil {
		return nil, fmt.Errorf("creating v2 pool: %w", err)
	}
	if !t0.Equals(reserveA.Currency) {
		reserveA, reserveB = reserveB, reserveA
	}
	return &V2Pool{address: address, reserve0: reserveA, reserve1: reserveB}, nil
}

func (p *V2Pool) Address() common.Address  { return p.address }
func (p *V2Pool) Token0() Token            { return p.reserve0.Currency }
func (p *V2Pool) Token1() Token            { return p.reserve1.Currency }
func (p *V2Pool) Reserve0() CurrencyAmount { return p.reserve0 }
func (p *V2Pool) Reserve1() CurrencyAmount { return p.reserve1 }

// Token0Price is reserve1 / reserve0.
func (p *V2Pool) Token0Price() Price {
	return NewPrice(p.Token0(), p.Token1(), p.reserve0.Quotient(), p.reserve1.Quotient())
}

// Token1Price is reserve0 / reserve1.
func (p *V2Pool) Token1Price() Price {
	return NewPrice(p.Token1(), p.Token0(), p.reserve1.Quotient(), p.reserve0.Quotient())
}

func (p *V2Pool) Involves(token Token) bool {
	return token.Equals(p.Token0()) || token.Equals(p.Token1())
}

// ReserveOf returns the reserve for token.
func (p *V2Pool) ReserveOf(token Token) (CurrencyAmount, error) {
	switch {
	case token.Equals(p.Token0()):
		return p.reserve0, nil
	case token.Equals(p.Token1()):
		return p.reserve1, nil
	default:
		return CurrencyAmount{}, fmt.Errorf("token %s not in pair %s/%s", token, p.Token0(), p.Token1())
	}
}
