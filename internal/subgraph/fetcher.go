// Package subgraph pages through a GraphQL indexer to load the pool universe.
package subgraph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"swaprouter/internal/metrics"
	"swaprouter/internal/providers"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	// PageSize is the largest page the indexer serves.
	PageSize = 1000

	rollbackBlocks  = 10
	indexingLagText = "indexed up to"
)

var (
	// ErrNoSubgraphURL means the chain has no indexer endpoint configured.
	ErrNoSubgraphURL = errors.New("no subgraph url for chain")
	// ErrTimeout means one paginated fetch outlived its deadline.
	ErrTimeout = errors.New("timed out getting pools from subgraph")

	dustThreshold = decimal.RequireFromString("0.01")
)

// Poster is the JSON transport used to reach the indexer.
type Poster interface {
	Post(ctx context.Context, url string, payload, response interface{}) error
}

type Options struct {
	// Retries is the number of attempts after the first.
	Retries int
	Timeout time.Duration
	// Rollback moves a pinned block back when the indexer reports it is behind.
	Rollback bool
}

// DefaultOptions retries twice with a 30 second timeout and rolls back lagging blocks.
func DefaultOptions() Options {
	return Options{Retries: 2, Timeout: 30 * time.Second, Rollback: true}
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse[T any] struct {
	Data   T              `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// fetchAll runs the retry loop around a timed, paginated fetch. The block is resolved once.
func fetchAll[R any](ctx context.Context, protocol string, opts Options, m *metrics.Metrics,
	cfg *providers.ProviderConfig, query func(block *uint64) string, page func(ctx context.Context, q string, lastID string) ([]R, error), idOf func(R) string,
) ([]R, error) {
	block, err := cfg.BlockPtr(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving block for %s subgraph: %w", protocol, err)
	}

	ev := log.Info().Str("protocol", protocol).Int("page_size", PageSize)
	if block != nil {
		ev = ev.Uint64("block", *block)
	}
	ev.Msg("Getting pools from the subgraph")

	var lastErr error
	for attempt := 0; attempt <= opts.Retries; attempt++ {
		if attempt > 0 {
			rolledBack := false
			if opts.Rollback && block != nil && *block > 0 && strings.Contains(lastErr.Error(), indexingLagText) {
				next := uint64(0)
				if *block > rollbackBlocks {
					next = *block - rollbackBlocks
				}
				block = &next
				rolledBack = true
				log.Info().Str("protocol", protocol).Uint64("block", next).Msg("Detected subgraph indexing error, rolled back block number")
			}
			m.RecordSubgraphRetry(protocol, rolledBack)
			log.Info().Err(lastErr).Str("protocol", protocol).Int("attempt", attempt).Msg("Failed to get pools from subgraph, retrying")
		}

		records, err := fetchWithTimeout(ctx, opts.Timeout, query(block), page, idOf)
		if err == nil {
			return records, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("getting %s pools from subgraph after %d attempts: %w", protocol, opts.Retries+1, lastErr)
}

// fetchWithTimeout races the page loop against a timer. The timer is released on every path.
func fetchWithTimeout[R any](ctx context.Context, timeout time.Duration, q string,
	page func(ctx context.Context, q string, lastID string) ([]R, error), idOf func(R) string,
) ([]R, error) {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		records []R
		err     error
	}
	done := make(chan result, 1)
	go func() {
		records, err := paginate(tctx, q, page, idOf)
		done <- result{records, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, timeout)
		}
		return r.records, r.err
	case <-tctx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s", ErrTimeout, timeout)
	}
}

// paginate walks the id cursor until a short page comes back.
func paginate[R any](ctx context.Context, q string,
	page func(ctx context.Context, q string, lastID string) ([]R, error), idOf func(R) string,
) ([]R, error) {
	var (
		records []R
		lastID  string
	)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		rows, err := page(ctx, q, lastID)
		if err != nil {
			return nil, err
		}
		records = append(records, rows...)
		log.Debug().Int("page_rows", len(rows)).Int("total", len(records)).Str("after", lastID).Msg("Fetched subgraph page")

		if len(rows) < PageSize {
			return records, nil
		}
		lastID = idOf(rows[len(rows)-1])
	}
}

// requestPage posts one page query and returns the decoded payload.
func requestPage[T any](ctx context.Context, poster Poster, url, q, lastID string) (T, error) {
	var resp graphQLResponse[T]
	req := graphQLRequest{
		Query:     q,
		Variables: map[string]interface{}{"pageSize": PageSize, "id": lastID},
	}
	if err := poster.Post(ctx, url, req, &resp); err != nil {
		var zero T
		return zero, err
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, len(resp.Errors))
		for i, e := range resp.Errors {
			msgs[i] = e.Message
		}
		var zero T
		return zero, fmt.Errorf("subgraph error: %s", strings.Join(msgs, "; "))
	}
	return resp.Data, nil
}

func blockClause(block *uint64) string {
	if block == nil {
		return ""
	}
	return fmt.Sprintf("block: { number: %d }", *block)
}

// parseDecimal treats blank or malformed indexer numbers as zero.
func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
