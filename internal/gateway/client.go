package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AndrewDell/3AI/internal/logging"
)

var (
	// ErrClientClosed is returned when sending to a closed connection.
	ErrClientClosed = errors.New("client connection closed")

	// ErrBufferFull is returned when a client cannot keep up with fan-out.
	ErrBufferFull = errors.New("send buffer full")
)

const (
	// sendBufferSize bounds the per-client queue; a full buffer marks the
	// observer too slow to keep.
	sendBufferSize = 256

	writeTimeout   = 10 * time.Second
	maxMessageSize = 64 * 1024
)

// Client is one connected observer. All writes flow through the buffered
// send queue and a single writePump goroutine, so broadcasts never block on
// a slow socket.
type Client struct {
	ConnID      string
	ConnectedAt time.Time

	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	pingEvery time.Duration
	log       *logging.Logger

	mu       sync.Mutex
	lastPong time.Time
}

// NewClient wraps a freshly upgraded WebSocket connection.
func NewClient(conn *websocket.Conn, pingEvery time.Duration, log *logging.Logger) *Client {
	if pingEvery <= 0 {
		pingEvery = time.Second
	}
	c := &Client{
		ConnID:      uuid.New().String(),
		ConnectedAt: time.Now(),
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		done:        make(chan struct{}),
		pingEvery:   pingEvery,
		log:         log,
		lastPong:    time.Now(),
	}
	conn.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.lastPong = time.Now()
		c.mu.Unlock()
		return nil
	})
	return c
}

// Send queues a message for delivery. Never blocks.
func (c *Client) Send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return c.enqueue(data)
}

func (c *Client) enqueue(data []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// writePump serializes all socket writes for one connection and runs the
// ping ticker. It exits when the client closes or a write fails; the read
// side then unblocks and the server evicts the client.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingEvery)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug().Err(err).Str("connId", c.ConnID).Msg("write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.checkPong()
		}
	}
}

// checkPong logs a stale peer. Pong absence is diagnostics only; eviction
// happens when a write fails.
func (c *Client) checkPong() {
	c.mu.Lock()
	overdue := time.Since(c.lastPong)
	c.mu.Unlock()
	if overdue > 3*c.pingEvery {
		c.log.Debug().
			Str("connId", c.ConnID).
			Dur("overdue", overdue).
			Msg("pong overdue")
	}
}

// Close shuts the connection down. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// ClientRegistry tracks connected observers.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client // connID → Client
	log     *logging.Logger
}

// NewClientRegistry creates an empty client registry.
func NewClientRegistry(log *logging.Logger) *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
		log:     log,
	}
}

// Add registers a connected client.
func (r *ClientRegistry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ConnID] = c
	r.log.Info().Str("connId", c.ConnID).Msg("client connected")
}

// Remove unregisters a client by connection ID.
func (r *ClientRegistry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, connID)
	r.log.Info().Str("connId", connID).Msg("client disconnected")
}

// Count returns the number of connected clients.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Broadcast fans one message out to every connected client. The message is
// encoded once; clients whose buffers are full get closed rather than
// stalling everyone else.
func (r *ClientRegistry) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.log.Error().Err(err).Str("type", msg.Type).Msg("failed to encode broadcast")
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.clients {
		switch err := c.enqueue(data); {
		case err == nil:
		case errors.Is(err, ErrBufferFull):
			r.log.Warn().Str("connId", c.ConnID).Msg("send buffer full, dropping slow client")
			c.Close()
		}
	}
}

// CloseAll closes all connected clients.
func (r *ClientRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		c.Close()
		delete(r.clients, id)
	}
}
