package entities

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrCurrencyMismatch is returned when arithmetic mixes amounts of different tokens.
var ErrCurrencyMismatch = errors.New("currency mismatch")

// Token is an ERC20 token on a specific chain. Identity is (ChainID, Address).
type Token struct {
	ChainID  uint64
	Address  common.Address
	Decimals uint8
	Symbol   string
	Name     string
}

// NewToken creates a token.
func NewToken(chainID uint64, address common.Address, decimals uint8, symbol, name string) Token {
	return Token{
		ChainID:  chainID,
		Address:  address,
		Decimals: decimals,
		Symbol:   symbol,
		Name:     name,
	}
}

// Equals reports whether both tokens refer to the same contract on the same chain.
func (t Token) Equals(other Token) bool {
	return t.ChainID == other.ChainID && t.Address == other.Address
}

// SortsBefore reports whether t is token0 in a pool with other.
func (t Token) SortsBefore(other Token) bool {
	return bytes.Compare(t.Address.Bytes(), other.Address.Bytes()) < 0
}

// Key returns the lowercase hex address, used for map keys and persistence.
func (t Token) Key() string {
	return strings.ToLower(t.Address.Hex())
}

func (t Token) String() string {
	if t.Symbol != "" {
		return t.Symbol
	}
	return t.Address.Hex()
}

// SortTokens returns the pair in canonical pool order.
func SortTokens(a, b Token) (Token, Token, error) {
	if a.ChainID != b.ChainID {
		return Token{}, Token{}, fmt.Errorf("tokens on different chains: %d and %d", a.ChainID, b.ChainID)
	}
	if a.Address == b.Address {
		return Token{}, Token{}, fmt.Errorf("identical token addresses: %s", a.Address.Hex())
	}
	if a.SortsBefore(b) {
		return a, b, nil
	}
	return b, a, nil
}
