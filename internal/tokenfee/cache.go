package tokenfee

import (
	"context"
	"fmt"
	"strings"
	"time"

	"swaprouter/internal/metrics"
	"swaprouter/internal/persistence"
	"swaprouter/internal/providers"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog/log"
)

const DefaultCacheTTL = 10 * time.Minute

// Cache is the slice of the store the caching fetcher needs.
type Cache interface {
	GetTokenFees(ctx context.Context, chainID uint64, tokens []string, since time.Time) (map[string]persistence.TokenFeeRecord, error)
	UpsertTokenFees(ctx context.Context, fees []persistence.TokenFeeRecord) error
}

// CachingFetcher serves fresh cached fees and probes only the misses. Failed probes are
// not written back, so they are retried on the next request.
type CachingFetcher struct {
	chainID uint64
	next    Fetcher
	cache   Cache
	ttl     time.Duration
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewCachingFetcher wraps next. A non-positive ttl uses DefaultCacheTTL.
func NewCachingFetcher(chainID uint64, next Fetcher, cache Cache, ttl time.Duration, m *metrics.Metrics) *CachingFetcher {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachingFetcher{chainID: chainID, next: next, cache: cache, ttl: ttl, metrics: m, now: time.Now}
}

func (c *CachingFetcher) FetchFees(ctx context.Context, tokens []common.Address, cfg *providers.ProviderConfig) (map[common.Address]Result, error) {
	keys := make([]string, len(tokens))
	for i, t := range tokens {
		keys[i] = strings.ToLower(t.Hex())
	}

	cached, err := c.cache.GetTokenFees(ctx, c.chainID, keys, c.now().Add(-c.ttl))
	if err != nil {
		// a broken cache degrades to probing everything
		log.Warn().Err(err).Msg("Failed to read token fee cache")
		cached = nil
	}

	out := make(map[common.Address]Result, len(tokens))
	var misses []common.Address
	for i, t := range tokens {
		rec, ok := cached[keys[i]]
		if !ok {
			misses = append(misses, t)
			continue
		}
		res, err := decodeRecord(rec)
		if err != nil {
			log.Warn().Err(err).Str("token", t.Hex()).Msg("Ignoring malformed cached token fee")
			misses = append(misses, t)
			continue
		}
		out[t] = res
	}
	c.metrics.RecordTokenFeeCacheHits(len(out))

	if len(misses) == 0 {
		return out, nil
	}

	fetched, err := c.next.FetchFees(ctx, misses, cfg)
	if err != nil {
		return nil, err
	}

	now := c.now()
	records := make([]persistence.TokenFeeRecord, 0, len(fetched))
	for token, res := range fetched {
		out[token] = res
		records = append(records, persistence.TokenFeeRecord{
			ChainID:    c.chainID,
			Token:      token.Hex(),
			BuyFeeBps:  res.BuyFeeBps.Dec(),
			SellFeeBps: res.SellFeeBps.Dec(),
			UpdatedAt:  now,
		})
	}
	if len(records) > 0 {
		if err := c.cache.UpsertTokenFees(ctx, records); err != nil {
			log.Warn().Err(err).Int("tokens", len(records)).Msg("Failed to write token fee cache")
		}
	}

	return out, nil
}

func decodeRecord(rec persistence.TokenFeeRecord) (Result, error) {
	buy, err := uint256.FromDecimal(rec.BuyFeeBps)
	if err != nil {
		return Result{}, fmt.Errorf("buy fee %q: %w", rec.BuyFeeBps, err)
	}
	sell, err := uint256.FromDecimal(rec.SellFeeBps)
	if err != nil {
		return Result{}, fmt.Errorf("sell fee %q: %w", rec.SellFeeBps, err)
	}
	return Result{BuyFeeBps: buy, SellFeeBps: sell}, nil
}
