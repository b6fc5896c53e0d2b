package entities

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// CurrencyAmount is an exact quantity of a token in its smallest unit.
// Values may go negative after subtraction; callers decide whether that is meaningful.
type CurrencyAmount struct {
	Currency Token
	Fraction
}

// FromRawAmount wraps a raw on-chain quantity.
func FromRawAmount(currency Token, raw *uint256.Int) CurrencyAmount {
	n := new(big.Int)
	if raw != nil {
		n = raw.ToBig()
	}
	return CurrencyAmount{Currency: currency, Fraction: NewFraction(n, nil)}
}

// FromBigAmount wraps an arbitrary-precision integer quantity.
func FromBigAmount(currency Token, raw *big.Int) CurrencyAmount {
	return CurrencyAmount{Currency: currency, Fraction: NewFraction(raw, nil)}
}

// FromFractionalAmount keeps the full rational value, e.g. the output of a price quote.
func FromFractionalAmount(currency Token, numerator, denominator *big.Int) CurrencyAmount {
	return CurrencyAmount{Currency: currency, Fraction: NewFraction(numerator, denominator)}
}

// Zero returns an amount of 0 in currency.
func Zero(currency Token) CurrencyAmount {
	return FromBigAmount(currency, big.NewInt(0))
}

// Add returns a + o. Both must be the same currency.
func (a CurrencyAmount) Add(o CurrencyAmount) (CurrencyAmount, error) {
	if !a.Currency.Equals(o.Currency) {
		return CurrencyAmount{}, fmt.Errorf("adding %s to %s: %w", o.Currency, a.Currency, ErrCurrencyMismatch)
	}
	return CurrencyAmount{Currency: a.Currency, Fraction: a.Fraction.Add(o.Fraction)}, nil
}

// Subtract returns a - o. Both must be the same currency.
func (a CurrencyAmount) Subtract(o CurrencyAmount) (CurrencyAmount, error) {
	if !a.Currency.Equals(o.Currency) {
		return CurrencyAmount{}, fmt.Errorf("subtracting %s from %s: %w", o.Currency, a.Currency, ErrCurrencyMismatch)
	}
	return CurrencyAmount{Currency: a.Currency, Fraction: a.Fraction.Sub(o.Fraction)}, nil
}

// MultiplyFraction scales the amount by f, keeping the currency.
func (a CurrencyAmount) MultiplyFraction(f Fraction) CurrencyAmount {
	return CurrencyAmount{Currency: a.Currency, Fraction: a.Fraction.Mul(f)}
}

// IsZero reports whether the exact value is zero.
func (a CurrencyAmount) IsZero() bool {
	return a.Numerator.Sign() == 0
}

// Raw returns the truncated quantity as a 256-bit value. Negative or oversized values fail.
func (a CurrencyAmount) Raw() (*uint256.Int, error) {
	q := a.Quotient()
	if q.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %s %s", q, a.Currency)
	}
	v, overflow := uint256.FromBig(q)
	if overflow {
		return nil, fmt.Errorf("amount %s %s overflows 256 bits", q, a.Currency)
	}
	return v, nil
}

// ToExact renders the truncated quantity in whole-token units.
func (a CurrencyAmount) ToExact() string {
	return decimal.NewFromBigInt(a.Quotient(), -int32(a.Currency.Decimals)).String()
}

func (a CurrencyAmount) String() string {
	return a.ToExact() + " " + a.Currency.String()
}
