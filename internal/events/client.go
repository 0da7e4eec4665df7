package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client is one websocket connection.
type Client struct {
	id      string
	conn    *websocket.Conn
	server  *Server
	userID  uuid.UUID
	send    chan []byte
	done    chan struct{}
	limiter *rate.Limiter
	once    sync.Once
}

func newClient(s *Server, conn *websocket.Conn, userID uuid.UUID) *Client {
	return &Client{
		id:      uuid.NewString(),
		conn:    conn,
		server:  s,
		userID:  userID,
		send:    make(chan []byte, s.cfg.SendBuffer),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(s.cfg.MessageRate), s.cfg.MessageBurst),
	}
}

// Enqueue hands a frame to the write pump without blocking. Slow clients
// lose frames instead of stalling the broadcaster.
func (c *Client) Enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		c.server.registry.Unregister(c)
		c.conn.Close()
		c.server.metrics.RecordConnection(-1)
	})
}

// readPump reads client frames until the connection fails or stops
// answering pings.
func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(c.server.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.server.cfg.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.log.Warn("websocket read failed", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}
		c.handle(message)
	}
}

// writePump owns all writes to the connection, including pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.server.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.server.cfg.WriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.server.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.server.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handle(raw []byte) {
	if !c.limiter.Allow() {
		c.Enqueue(errorFrame(CodeRateLimited, "too many messages"))
		return
	}

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Event == "" {
		c.Enqueue(errorFrame(CodeInvalidMessage, "message must be {event, data}"))
		return
	}

	switch msg.Event {
	case EventSubscribePrice:
		symbol, ok := c.symbol(msg.Data)
		if !ok {
			return
		}
		c.server.registry.Subscribe(c, symbol)
		if frame, err := Encode(EventSubscribed, symbolData{Symbol: symbol}); err == nil {
			c.Enqueue(frame)
		}
		c.sendCurrentPrice(symbol)
	case EventUnsubscribePrice:
		symbol, ok := c.symbol(msg.Data)
		if !ok {
			return
		}
		c.server.registry.Unsubscribe(c, symbol)
	case EventPing:
		c.Enqueue(pongFrame(c.server.now()))
	default:
		c.Enqueue(errorFrame(CodeUnknownEvent, msg.Event))
	}
}

func (c *Client) symbol(data json.RawMessage) (string, bool) {
	var d symbolData
	if len(data) == 0 || json.Unmarshal(data, &d) != nil || d.Symbol == "" {
		c.Enqueue(errorFrame(CodeInvalidMessage, "symbol is required"))
		return "", false
	}
	return d.Symbol, true
}

// sendCurrentPrice lets a new subscriber draw immediately instead of
// waiting for the next tick.
func (c *Client) sendCurrentPrice(symbol string) {
	if c.server.prices == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tick, err := c.server.prices.GetTick(ctx, symbol)
	if err != nil {
		c.server.log.Warn("failed to read price for subscriber", zap.String("symbol", symbol), zap.Error(err))
		return
	}
	if tick == nil {
		return
	}
	if frame, err := Encode(EventPriceUpdate, tick); err == nil {
		c.Enqueue(frame)
	}
}
