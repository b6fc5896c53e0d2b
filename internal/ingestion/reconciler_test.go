package ingestion

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type fakeNode struct {
	block uint64
	err   error
}

func (f *fakeNode) BlockNumber(context.Context) (uint64, error) {
	return f.block, f.err
}

// TestReconcileAdvancesLaggingHead verifies the RPC head only moves the tracker forward.
func TestReconcileAdvancesLaggingHead(t *testing.T) {
	node := &fakeNode{block: 100}
	tracker := NewService("", nil, nil)
	r := NewReconciler(node, tracker, time.Second)

	result, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	require.True(t, result.Advanced)
	require.Equal(t, uint64(100), tracker.LastBlockNumber())
	require.Equal(t, uint64(100), (<-tracker.Heads()).Number)

	node.block = 90
	result, err = r.Reconcile(context.Background())
	require.NoError(t, err)
	require.False(t, result.Advanced)
	require.Equal(t, uint64(100), tracker.LastBlockNumber())
	require.Empty(t, tracker.Heads())

	node.err = errors.New("connection refused")
	_, err = r.Reconcile(context.Background())
	require.Error(t, err)
}

// TestBlockRef verifies the fallback is used until a head is seen.
func TestBlockRef(t *testing.T) {
	require.Nil(t, NewService("", nil, nil).BlockRef())

	node := &fakeNode{block: 42}
	tracker := NewService("", node, nil)
	n, err := tracker.BlockRef().Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(42), n)

	tracker.Advance(50)
	n, err = tracker.BlockRef().Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(50), n)
}

// TestServiceFollowsHeads verifies heads streamed over a newHeads subscription reach the tracker.
func TestServiceFollowsHeads(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req map[string]interface{}
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if req["method"] != "eth_subscribe" || req["params"].([]interface{})[0] != "newHeads" {
			return
		}
		conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req["id"], "result": "0x1"})

		for _, n := range []string{"0x10", "0x11", "0xf", "0x14"} {
			msg := `{"jsonrpc":"2.0","method":"eth_subscription","params":{"subscription":"0x1","result":{"number":"` + n +
				`","hash":"0x00000000000000000000000000000000000000000000000000000000000000aa","timestamp":"0x1"}}}`
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		// hold the connection until the client leaves
		conn.ReadMessage()
	}))
	defer srv.Close()

	tracker := NewService("ws"+strings.TrimPrefix(srv.URL, "http"), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tracker.Run(ctx) }()

	var seen []uint64
	timeout := time.After(5 * time.Second)
	for len(seen) < 3 {
		select {
		case h := <-tracker.Heads():
			seen = append(seen, h.Number)
		case <-timeout:
			t.Fatalf("timed out after heads %v", seen)
		}
	}

	// the stale 0xf head is dropped
	require.Equal(t, []uint64{16, 17, 20}, seen)
	require.Equal(t, uint64(20), tracker.LastBlockNumber())
	require.Equal(t, uint64(20), tracker.LastHead().Number)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
