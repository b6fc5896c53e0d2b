// Package providers supplies pools and tokens to the router, either from chain state or caches.
package providers

import (
	"context"
	"fmt"
	"sync"

	"swaprouter/internal/entities"
)

// BlockRef is a block number that may not be known yet. It resolves at most once,
// so every fetch sharing it reads the same block.
type BlockRef struct {
	once    sync.Once
	resolve func(ctx context.Context) (uint64, error)
	number  uint64
	err     error
}

// PinnedBlock returns an already resolved reference.
func PinnedBlock(n uint64) *BlockRef {
	return &BlockRef{resolve: func(context.Context) (uint64, error) { return n, nil }}
}

// DeferredBlock returns a reference resolved by fn on first use.
func DeferredBlock(fn func(ctx context.Context) (uint64, error)) *BlockRef {
	return &BlockRef{resolve: fn}
}

// Resolve returns the block number, calling the resolver on first use only.
func (b *BlockRef) Resolve(ctx context.Context) (uint64, error) {
	b.once.Do(func() {
		b.number, b.err = b.resolve(ctx)
		if b.err != nil {
			b.err = fmt.Errorf("resolving block number: %w", b.err)
		}
	})
	return b.number, b.err
}

// ProviderConfig carries per-request options shared by every data source.
type ProviderConfig struct {
	// BlockNumber pins reads to a block. Nil reads latest state.
	BlockNumber *BlockRef
	// GasToken is an optional extra currency to express gas costs in.
	GasToken *entities.Token
}

// Block resolves the pinned block. ok is false when no block is pinned. A nil config is valid.
func (c *ProviderConfig) Block(ctx context.Context) (n uint64, ok bool, err error) {
	if c == nil || c.BlockNumber == nil {
		return 0, false, nil
	}
	n, err = c.BlockNumber.Resolve(ctx)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// BlockPtr is Block in the shape RPC call options expect.
func (c *ProviderConfig) BlockPtr(ctx context.Context) (*uint64, error) {
	n, ok, err := c.Block(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return &n, nil
}
