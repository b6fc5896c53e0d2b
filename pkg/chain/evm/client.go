package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
	"golang.org/x/time/rate"
)

// backend is the subset of ethclient used here.
type backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BlockNumber(ctx context.Context) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

// CallOpts overrides the defaults for a single eth_call.
type CallOpts struct {
	// GasLimit caps the call. Zero lets the node choose.
	GasLimit uint64
	// BlockNumber pins the call to a historical block. Nil means latest.
	BlockNumber *uint64
}

type Client struct {
	eth     backend
	rpcURL  string
	limiter *rate.Limiter
}

// NewClient dials rpcURL. requestsPerSecond <= 0 disables rate limiting.
func NewClient(rpcURL string, requestsPerSecond float64) (*Client, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	return newClient(client, rpcURL, requestsPerSecond), nil
}

func newClient(b backend, rpcURL string, requestsPerSecond float64) *Client {
	limit := rate.Inf
	burst := 1
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
		burst = int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &Client{
		eth:     b,
		rpcURL:  rpcURL,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (c *Client) Close() {
	c.eth.Close()
}

func (c *Client) rateLimit(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

// CallContract performs a single eth_call with optional gas and block overrides.
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte, opts *CallOpts) ([]byte, error) {
	if err := c.rateLimit(ctx); err != nil {
		return nil, err
	}

	msg := ethereum.CallMsg{
		To:   &to,
		Data: data,
	}
	var block *big.Int
	if opts != nil {
		msg.Gas = opts.GasLimit
		block = blockArg(opts.BlockNumber)
	}

	result, err := c.eth.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("contract call failed: %w", err)
	}

	return result, nil
}

// BlockNumber returns the latest block height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	if err := c.rateLimit(ctx); err != nil {
		return 0, err
	}
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching block number: %w", err)
	}
	return n, nil
}

// SuggestGasPrice returns the node's gas price suggestion in wei.
func (c *Client) SuggestGasPrice(ctx context.Context) (*uint256.Int, error) {
	if err := c.rateLimit(ctx); err != nil {
		return nil, err
	}
	price, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching gas price: %w", err)
	}
	v, overflow := uint256.FromBig(price)
	if overflow {
		return nil, fmt.Errorf("gas price %s overflows 256 bits", price)
	}
	return v, nil
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.eth.ChainID(ctx)
}

func blockArg(n *uint64) *big.Int {
	if n == nil {
		return nil
	}
	return new(big.Int).SetUint64(*n)
}
