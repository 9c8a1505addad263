package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sandeepseesa/promptea/internal/app/services"
	"github.com/sandeepseesa/promptea/internal/core/graph"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024

	// Send buffer size
	sendBufferSize = 256
)

// MessageTypeState is the type of the first message on a stream
const MessageTypeState = "state"

// stateMessage carries the full canvas when a stream opens. Change events
// follow; an event may repeat a change the state already contains.
type stateMessage struct {
	Type    string            `json:"type"`
	Canvas  *graph.Canvas     `json:"canvas"`
	Session map[string]string `json:"session"`
	Running bool              `json:"running"`
}

// eventClient streams one canvas's change events to one websocket peer
type eventClient struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger

	// Events published before the state message is queued wait in pending
	mu      sync.Mutex
	live    bool
	pending [][]byte
}

func newEventClient(conn *websocket.Conn, logger *zap.Logger) *eventClient {
	id := uuid.NewString()
	return &eventClient{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		logger: logger.With(zap.String("connection_id", id)),
	}
}

// enqueue queues msg without blocking. A peer that cannot keep up is
// disconnected rather than stalling the store.
func (c *eventClient) enqueue(msg []byte) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		c.logger.Warn("event stream too slow, disconnecting")
		c.close()
	}
}

// deliver queues an encoded event, holding it back until start has run.
// It never waits on the store, so it is safe to call from a subscriber.
func (c *eventClient) deliver(msg []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.live {
		c.pending = append(c.pending, msg)
		return
	}
	c.enqueue(msg)
}

// start queues the state message ahead of any held events and switches
// the client to direct delivery.
func (c *eventClient) start(state []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if state != nil {
		c.enqueue(state)
	}
	for _, msg := range c.pending {
		c.enqueue(msg)
	}
	c.pending = nil
	c.live = true
}

func (c *eventClient) close() {
	c.once.Do(func() { close(c.done) })
}

// handleEvents upgrades to a websocket and streams store change events,
// alerts included, until the peer goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newEventClient(conn, s.logger.With(zap.String("canvas_id", ws.ID())))

	unsubscribe := ws.Store.Subscribe(func(ev services.ChangeEvent) {
		data, err := json.Marshal(ev)
		if err != nil {
			c.logger.Error("failed to encode event", zap.Error(err))
			return
		}
		c.deliver(data)
	})

	// The canvas is read with no client lock held; publishers may be
	// waiting on the store at the same time.
	state, err := json.Marshal(stateMessage{
		Type:    MessageTypeState,
		Canvas:  ws.Store.Canvas(),
		Session: ws.Session.Values(),
		Running: s.controller.Running(ws),
	})
	if err != nil {
		c.logger.Error("failed to encode state", zap.Error(err))
		state = nil
	}
	c.start(state)

	c.logger.Info("event stream opened")
	go c.writePump()
	c.readPump()

	unsubscribe()
	c.close()
	c.logger.Info("event stream closed")
}

// readPump drains the peer until it disconnects. Peers only send pongs
// and close frames.
func (c *eventClient) readPump() {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (c *eventClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("failed to write event", zap.Error(err))
				c.close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("failed to send ping", zap.Error(err))
				c.close()
				return
			}
		}
	}
}
