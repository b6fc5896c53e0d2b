package providers

import (
	"context"
	"fmt"

	"swaprouter/internal/entities"
)

// V3PoolKey identifies a V3 pool by its tokens and fee tier. Token order is irrelevant.
type V3PoolKey struct {
	TokenA entities.Token
	TokenB entities.Token
	Fee    entities.FeeAmount
}

// TokenPair identifies a V2 pair. Token order is irrelevant.
type TokenPair struct {
	TokenA entities.Token
	TokenB entities.Token
}

// V3PoolAccessor looks up pools returned by a single GetPools call.
type V3PoolAccessor interface {
	GetPool(tokenA, tokenB entities.Token, fee entities.FeeAmount) *entities.V3Pool
	AllPools() []*entities.V3Pool
}

// V2PoolAccessor looks up pairs returned by a single GetPools call.
type V2PoolAccessor interface {
	GetPool(tokenA, tokenB entities.Token) *entities.V2Pool
	AllPools() []*entities.V2Pool
}

// V3PoolProvider loads V3 pools in one batched request.
type V3PoolProvider interface {
	GetPools(ctx context.Context, keys []V3PoolKey, cfg *ProviderConfig) (V3PoolAccessor, error)
}

// V2PoolProvider loads V2 pairs in one batched request.
type V2PoolProvider interface {
	GetPools(ctx context.Context, pairs []TokenPair, cfg *ProviderConfig) (V2PoolAccessor, error)
}

func pairKey(a, b entities.Token) string {
	x, y := a.Key(), b.Key()
	if y < x {
		x, y = y, x
	}
	return x + "/" + y
}

func v3Key(a, b entities.Token, fee entities.FeeAmount) string {
	return fmt.Sprintf("%s/%d", pairKey(a, b), fee)
}

type v3Accessor struct {
	byKey map[string]*entities.V3Pool
	pools []*entities.V3Pool
}

// NewV3PoolAccessor indexes pools by token pair and fee. Later duplicates are ignored.
func NewV3PoolAccessor(pools []*entities.V3Pool) V3PoolAccessor {
	acc := &v3Accessor{byKey: make(map[string]*entities.V3Pool, len(pools))}
	for _, p := range pools {
		k := v3Key(p.Token0(), p.Token1(), p.Fee())
		if _, dup := acc.byKey[k]; dup {
			continue
		}
		acc.byKey[k] = p
		acc.pools = append(acc.pools, p)
	}
	return acc
}

func (a *v3Accessor) GetPool(tokenA, tokenB entities.Token, fee entities.FeeAmount) *entities.V3Pool {
	return a.byKey[v3Key(tokenA, tokenB, fee)]
}

func (a *v3Accessor) AllPools() []*entities.V3Pool {
	out := make([]*entities.V3Pool, len(a.pools))
	copy(out, a.pools)
	return out
}

type v2Accessor struct {
	byKey map[string]*entities.V2Pool
	pools []*entities.V2Pool
}

// NewV2PoolAccessor indexes pairs by token pair. Later duplicates are ignored.
func NewV2PoolAccessor(pools []*entities.V2Pool) V2PoolAccessor {
	acc := &v2Accessor{byKey: make(map[string]*entities.V2Pool, len(pools))}
	for _, p := range pools {
		k := pairKey(p.Token0(), p.Token1())
		if _, dup := acc.byKey[k]; dup {
			continue
		}
		acc.byKey[k] = p
		acc.pools = append(acc.pools, p)
	}
	return acc
}

func (a *v2Accessor) GetPool(tokenA, tokenB entities.Token) *entities.V2Pool {
	return a.byKey[pairKey(tokenA, tokenB)]
}

func (a *v2Accessor) AllPools() []*entities.V2Pool {
	out := make([]*entities.V2Pool, len(a.pools))
	copy(out, a.pools)
	return out
}

// dedupeV3Keys drops repeated and degenerate keys, keeping first occurrence order.
func dedupeV3Keys(keys []V3PoolKey) []V3PoolKey {
	seen := make(map[string]struct{}, len(keys))
	out := make([]V3PoolKey, 0, len(keys))
	for _, k := range keys {
		if k.TokenA.Equals(k.TokenB) {
			continue
		}
		id := v3Key(k.TokenA, k.TokenB, k.Fee)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, k)
	}
	return out
}

func dedupePairs(pairs []TokenPair) []TokenPair {
	seen := make(map[string]struct{}, len(pairs))
	out := make([]TokenPair, 0, len(pairs))
	for _, p := range pairs {
		if p.TokenA.Equals(p.TokenB) {
			continue
		}
		id := pairKey(p.TokenA, p.TokenB)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, p)
	}
	return out
}
