package subgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"swaprouter/internal/chains"
	"swaprouter/internal/metrics"
	"swaprouter/internal/providers"
	"swaprouter/pkg/client"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var blockRe = regexp.MustCompile(`number: (\d+)`)

// fakeIndexer serves pools sorted by id and records every request.
type fakeIndexer struct {
	mu       sync.Mutex
	pools    []map[string]interface{}
	blocks   []uint64
	requests int
	// respond overrides the normal page response when it returns true.
	respond func(w http.ResponseWriter, block uint64) bool
}

func (f *fakeIndexer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req graphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var block uint64
	if m := blockRe.FindStringSubmatch(req.Query); m != nil {
		block, _ = strconv.ParseUint(m[1], 10, 64)
	}

	f.mu.Lock()
	f.requests++
	f.blocks = append(f.blocks, block)
	f.mu.Unlock()

	if f.respond != nil && f.respond(w, block) {
		return
	}

	lastID, _ := req.Variables["id"].(string)
	start := sort.Search(len(f.pools), func(i int) bool { return f.pools[i]["id"].(string) > lastID })
	end := start + PageSize
	if end > len(f.pools) {
		end = len(f.pools)
	}
	page := f.pools[start:end]
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"data": map[string]interface{}{"pools": page, "pairs": page},
	})
}

func v3Record(i int, liquidity, tvlETH string) map[string]interface{} {
	return map[string]interface{}{
		"id":                  fmt.Sprintf("0x%040X", i),
		"token0":              map[string]string{"id": "0xAAAA", "symbol": "AAA"},
		"token1":              map[string]string{"id": "0xBBBB", "symbol": "BBB"},
		"feeTier":             "3000",
		"liquidity":           liquidity,
		"totalValueLockedUSD": "10",
		"totalValueLockedETH": tvlETH,
	}
}

func newV3(t *testing.T, idx *fakeIndexer, opts Options, m *metrics.Metrics) *V3Fetcher {
	t.Helper()
	srv := httptest.NewServer(idx)
	t.Cleanup(srv.Close)
	reg := chains.Default().WithV3SubgraphURL(chains.Mainnet, srv.URL)
	f, err := NewV3Fetcher(reg, chains.Mainnet, client.NewHTTPClientWithTimeout(0), opts, m)
	require.NoError(t, err)
	return f
}

// TestV3Pagination verifies the id cursor walks every page and stops on a short page.
func TestV3Pagination(t *testing.T) {
	idx := &fakeIndexer{}
	for i := 0; i < 2500; i++ {
		idx.pools = append(idx.pools, v3Record(i, "1", "0"))
	}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	f := newV3(t, idx, DefaultOptions(), m)

	pools, err := f.GetPools(context.Background(), &providers.ProviderConfig{BlockNumber: providers.PinnedBlock(500)})
	require.NoError(t, err)
	require.Len(t, pools, 2500)
	require.Equal(t, 3, idx.requests)
	require.Equal(t, []uint64{500, 500, 500}, idx.blocks)
	require.Equal(t, fmt.Sprintf("0x%040x", 2499), pools[2499].ID)
}

// TestV3Sanitize verifies dust pools are dropped and ids are lower-cased.
func TestV3Sanitize(t *testing.T) {
	idx := &fakeIndexer{pools: []map[string]interface{}{
		v3Record(1, "0", "0.005"),
		v3Record(2, "0", "0.02"),
		v3Record(3, "42", "0"),
	}}
	f := newV3(t, idx, DefaultOptions(), nil)

	pools, err := f.GetPools(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, pools, 2)
	require.Equal(t, "0xaaaa", pools[0].Token0.ID)
	require.Equal(t, "0xbbbb", pools[0].Token1.ID)
	require.Equal(t, uint32(3000), pools[1].FeeTier)
	require.Equal(t, uint64(42), pools[1].Liquidity.Uint64())
	require.Equal(t, "0xaaaa/0xbbbb/3000", pools[1].Key())
	require.Equal(t, []uint64{0}, idx.blocks)
}

// TestV3RollbackOnIndexingLag verifies a lagging indexer moves the pinned block back.
func TestV3RollbackOnIndexingLag(t *testing.T) {
	idx := &fakeIndexer{pools: []map[string]interface{}{v3Record(1, "1", "0")}}
	idx.respond = func(w http.ResponseWriter, block uint64) bool {
		if block <= 105 {
			return false
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"errors": []map[string]string{{"message": "subgraph has only indexed up to block number 105"}},
		})
		return true
	}
	f := newV3(t, idx, DefaultOptions(), nil)

	pools, err := f.GetPools(context.Background(), &providers.ProviderConfig{BlockNumber: providers.PinnedBlock(110)})
	require.NoError(t, err)
	require.Len(t, pools, 1)
	require.Equal(t, []uint64{110, 100}, idx.blocks)
}

// TestV3RetriesExhausted verifies other failures retry without touching the block.
func TestV3RetriesExhausted(t *testing.T) {
	idx := &fakeIndexer{}
	idx.respond = func(w http.ResponseWriter, _ uint64) bool {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
		return true
	}
	f := newV3(t, idx, DefaultOptions(), nil)

	_, err := f.GetPools(context.Background(), &providers.ProviderConfig{BlockNumber: providers.PinnedBlock(7)})
	require.ErrorContains(t, err, "after 3 attempts")
	require.Equal(t, []uint64{7, 7, 7}, idx.blocks)
}

// TestV3Timeout verifies a slow indexer fails with ErrTimeout once retries run out.
func TestV3Timeout(t *testing.T) {
	idx := &fakeIndexer{}
	idx.respond = func(w http.ResponseWriter, _ uint64) bool {
		time.Sleep(200 * time.Millisecond)
		return false
	}
	f := newV3(t, idx, Options{Retries: 1, Timeout: 20 * time.Millisecond}, nil)

	_, err := f.GetPools(context.Background(), nil)
	require.ErrorIs(t, err, ErrTimeout)
}

// TestV2SanitizeAndURL verifies pair filtering and the missing endpoint error.
func TestV2SanitizeAndURL(t *testing.T) {
	_, err := NewV2Fetcher(chains.Default(), chains.Optimism, client.NewHTTPClient(), DefaultOptions(), nil)
	require.ErrorIs(t, err, ErrNoSubgraphURL)

	pair := func(i int, tracked, usd string) map[string]interface{} {
		return map[string]interface{}{
			"id":                fmt.Sprintf("0x%040X", i),
			"token0":            map[string]string{"id": "0xAAAA", "symbol": "AAA"},
			"token1":            map[string]string{"id": "0xBBBB", "symbol": "BBB"},
			"totalSupply":       "5",
			"reserveETH":        "1",
			"trackedReserveETH": tracked,
			"reserveUSD":        usd,
		}
	}
	idx := &fakeIndexer{pools: []map[string]interface{}{
		pair(1, "0", "0"),
		pair(2, "0", "25.5"),
		pair(3, "3", "0"),
	}}
	srv := httptest.NewServer(idx)
	defer srv.Close()

	reg := chains.Default().WithV2SubgraphURL(chains.Mainnet, srv.URL)
	f, err := NewV2Fetcher(reg, chains.Mainnet, client.NewHTTPClient(), DefaultOptions(), nil)
	require.NoError(t, err)

	pools, err := f.GetPools(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, pools, 2)
	require.Equal(t, "25.5", pools[0].ReserveUSD.String())
	require.Equal(t, "3", pools[1].Reserve.String())
	require.Equal(t, "0xaaaa/0xbbbb", pools[1].Key())
}
