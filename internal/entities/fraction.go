package entities

import (
	"math/big"
)

// Fraction is an exact rational number. Denominator is always positive.
type Fraction struct {
	Numerator   *big.Int
	Denominator *big.Int
}

// NewFraction copies num and den into a new fraction. A nil denominator means 1.
func NewFraction(num, den *big.Int) Fraction {
	n := new(big.Int)
	if num != nil {
		n.Set(num)
	}
	d := big.NewInt(1)
	if den != nil {
		d.Set(den)
	}
	if d.Sign() < 0 {
		n.Neg(n)
		d.Neg(d)
	}
	return Fraction{Numerator: n, Denominator: d}
}

// Quotient truncates toward zero.
func (f Fraction) Quotient() *big.Int {
	return new(big.Int).Quo(f.Numerator, f.Denominator)
}

// Add returns f + o.
func (f Fraction) Add(o Fraction) Fraction {
	if f.Denominator.Cmp(o.Denominator) == 0 {
		return NewFraction(new(big.Int).Add(f.Numerator, o.Numerator), f.Denominator)
	}
	num := new(big.Int).Add(
		new(big.Int).Mul(f.Numerator, o.Denominator),
		new(big.Int).Mul(o.Numerator, f.Denominator),
	)
	return NewFraction(num, new(big.Int).Mul(f.Denominator, o.Denominator))
}

// Sub returns f - o.
func (f Fraction) Sub(o Fraction) Fraction {
	neg := Fraction{Numerator: new(big.Int).Neg(o.Numerator), Denominator: o.Denominator}
	return f.Add(neg)
}

// Mul returns f * o.
func (f Fraction) Mul(o Fraction) Fraction {
	return NewFraction(
		new(big.Int).Mul(f.Numerator, o.Numerator),
		new(big.Int).Mul(f.Denominator, o.Denominator),
	)
}

// Invert returns 1/f.
func (f Fraction) Invert() Fraction {
	return NewFraction(f.Denominator, f.Numerator)
}

// Cmp compares f and o as rationals.
func (f Fraction) Cmp(o Fraction) int {
	left := new(big.Int).Mul(f.Numerator, o.Denominator)
	right := new(big.Int).Mul(o.Numerator, f.Denominator)
	return left.Cmp(right)
}

// Sign returns -1, 0 or 1.
func (f Fraction) Sign() int {
	return f.Numerator.Sign()
}
