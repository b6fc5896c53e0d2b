package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024 * 1024
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcMessage struct {
	ID     *int64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// headSubscription is one eth_subscribe("newHeads") stream over its own connection.
type headSubscription struct {
	conn  *websocket.Conn
	notes chan json.RawMessage

	mu     sync.Mutex // guards writes, nextID and subID
	nextID int64
	subID  string

	closed    chan struct{}
	closeOnce sync.Once
}

// subscribeHeads dials url and requests a newHeads subscription. The subscription id
// is recorded by read once the node confirms it.
func subscribeHeads(ctx context.Context, url string) (*headSubscription, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing websocket: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	s := &headSubscription{
		conn:   conn,
		notes:  make(chan json.RawMessage, 64),
		closed: make(chan struct{}),
	}
	if err := s.call("eth_subscribe", "newHeads"); err != nil {
		conn.Close()
		return nil, err
	}
	log.Info().Str("url", url).Msg("Requested newHeads subscription")
	return s, nil
}

func (s *headSubscription) call(method string, params ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(rpcRequest{JSONRPC: "2.0", ID: s.nextID, Method: method, Params: params}); err != nil {
		return fmt.Errorf("writing %s: %w", method, err)
	}
	return nil
}

// notifications carries the params of each eth_subscription message.
func (s *headSubscription) notifications() <-chan json.RawMessage {
	return s.notes
}

// read consumes the connection until it fails. It returns nil after close or a clean
// close from the node.
func (s *headSubscription) read() error {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closed:
				return nil
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("reading message: %w", err)
		}

		var msg rpcMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn().Err(err).Str("message", string(data)).Msg("Failed to parse message")
			continue
		}

		switch {
		case msg.Error != nil:
			log.Error().
				Int("code", msg.Error.Code).
				Str("message", msg.Error.Message).
				Msg("WebSocket RPC error")
		case msg.ID != nil:
			var id string
			if err := json.Unmarshal(msg.Result, &id); err == nil && id != "" {
				s.mu.Lock()
				s.subID = id
				s.mu.Unlock()
				log.Info().Str("subscription_id", id).Msg("Subscription confirmed")
			}
		case msg.Method == "eth_subscription" && len(msg.Params) > 0:
			select {
			case s.notes <- msg.Params:
			default:
				log.Warn().Msg("Notification buffer full, dropping head")
			}
		}
	}
}

// keepAlive pings the node until ctx is canceled or the subscription is closed.
func (s *headSubscription) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closed:
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Msg("Ping failed")
			}
		}
	}
}

// close unsubscribes when the node confirmed a subscription, then drops the connection.
// It is safe to call more than once.
func (s *headSubscription) close() {
	s.closeOnce.Do(func() {
		close(s.closed)

		s.mu.Lock()
		id := s.subID
		s.mu.Unlock()
		if id != "" {
			if err := s.call("eth_unsubscribe", id); err != nil {
				log.Debug().Err(err).Msg("Unsubscribe failed")
			}
		}

		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		s.conn.Close()
	})
}
