package routing

import (
	"context"
	"encoding/json"
	"fmt"

	"swaprouter/internal/entities"
	"swaprouter/internal/persistence"
)

// RouteStore is the persistence the route cache needs.
type RouteStore interface {
	PutCachedRoute(ctx context.Context, r persistence.CachedRouteRecord) error
	GetCachedRoute(ctx context.Context, key persistence.RouteKey) (*persistence.CachedRouteRecord, error)
}

// RouteCache keeps the latest serialized route per pair and trade direction.
type RouteCache struct {
	store RouteStore
}

func NewRouteCache(store RouteStore) *RouteCache {
	return &RouteCache{store: store}
}

// KeyFor is the cache key of routes from in to out. Tokens are keyed on in's chain.
func KeyFor(in, out entities.Token, tradeType entities.TradeType) persistence.RouteKey {
	return persistence.RouteKey{
		ChainID:   in.ChainID,
		TokenIn:   in.Address.Hex(),
		TokenOut:  out.Address.Hex(),
		TradeType: int(tradeType),
	}
}

func keyOf(s *SerializedSwapRoute) persistence.RouteKey {
	return persistence.RouteKey{
		ChainID:   s.CurrencyIn.ChainID,
		TokenIn:   s.CurrencyIn.Address,
		TokenOut:  s.CurrencyOut.Address,
		TradeType: int(s.TradeType),
	}
}

// Put serializes r and replaces any entry under the same key.
func (c *RouteCache) Put(ctx context.Context, r *SwapRoute) error {
	s, err := Serialize(r)
	if err != nil {
		return fmt.Errorf("serializing route: %w", err)
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling route: %w", err)
	}
	rec := persistence.CachedRouteRecord{
		RouteKey:    keyOf(s),
		BlockNumber: s.BlockNumber,
		Payload:     payload,
	}
	if err := c.store.PutCachedRoute(ctx, rec); err != nil {
		return fmt.Errorf("storing route: %w", err)
	}
	return nil
}

// Get returns the cached route for key, or nil when none is stored.
func (c *RouteCache) Get(ctx context.Context, key persistence.RouteKey) (*SerializedSwapRoute, error) {
	rec, err := c.store.GetCachedRoute(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("loading route: %w", err)
	}
	if rec == nil {
		return nil, nil
	}
	var s SerializedSwapRoute
	if err := json.Unmarshal(rec.Payload, &s); err != nil {
		return nil, fmt.Errorf("unmarshaling route: %w", err)
	}
	return &s, nil
}
