package entities

import (
	"fmt"
	"math/big"
)

// Price is the exchange rate from BaseCurrency to QuoteCurrency in raw units:
// one raw unit of base is worth Numerator/Denominator raw units of quote.
type Price struct {
	BaseCurrency  Token
	QuoteCurrency Token
	Fraction
}

// NewPrice builds a price where denominator units of base equal numerator units of quote.
func NewPrice(base, quote Token, denominator, numerator *big.Int) Price {
	return Price{
		BaseCurrency:  base,
		QuoteCurrency: quote,
		Fraction:      NewFraction(numerator, denominator),
	}
}

// Invert returns the price from quote to base.
func (p Price) Invert() Price {
	return Price{
		BaseCurrency:  p.QuoteCurrency,
		QuoteCurrency: p.BaseCurrency,
		Fraction:      p.Fraction.Invert(),
	}
}

// Quote converts an amount of the base currency into the quote currency at this spot price.
func (p Price) Quote(amount CurrencyAmount) (CurrencyAmount, error) {
	if !amount.Currency.Equals(p.BaseCurrency) {
		return CurrencyAmount{}, fmt.Errorf("quoting %s with %s/%s price: %w",
			amount.Currency, p.BaseCurrency, p.QuoteCurrency, ErrCurrencyMismatch)
	}
	result := p.Fraction.Mul(amount.Fraction)
	return FromFractionalAmount(p.QuoteCurrency, result.Numerator, result.Denominator), nil
}
