package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"blockworld/mobs/internal/telemetry"
	"blockworld/mobs/logging"
)

const defaultWriteTimeout = 2 * time.Second

// client is one websocket subscriber. Writes are serialized because gorilla
// connections allow a single concurrent writer.
type client struct {
	id         string
	conn       *websocket.Conn
	categories map[string]struct{}
	mu         sync.Mutex
	closed     bool
}

func (c *client) wants(category string) bool {
	if len(c.categories) == 0 {
		return true
	}
	_, ok := c.categories[category]
	return ok
}

func (c *client) write(messageType int, data []byte, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	if timeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	return c.conn.WriteMessage(messageType, data)
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.conn.Close()
}

// Broadcaster is a logging.Sink that fans events out to websocket clients.
type Broadcaster struct {
	mu           sync.RWMutex
	clients      map[*client]struct{}
	writeTimeout time.Duration
	logger       telemetry.Logger
}

// NewBroadcaster constructs an empty broadcaster. A non-positive timeout uses
// the default write deadline.
func NewBroadcaster(writeTimeout time.Duration, logger telemetry.Logger) *Broadcaster {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	return &Broadcaster{
		clients:      make(map[*client]struct{}),
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

func (b *Broadcaster) add(c *client) {
	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()
}

func (b *Broadcaster) drop(c *client) {
	b.mu.Lock()
	delete(b.clients, c)
	b.mu.Unlock()
	c.close()
}

// Clients reports the number of connected subscribers.
func (b *Broadcaster) Clients() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Write marshals the event once and sends it to every interested client.
// Clients that fail to keep up are disconnected.
func (b *Broadcaster) Write(event logging.Event) error {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	targets := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		if c.wants(event.Category) {
			targets = append(targets, c)
		}
	}
	b.mu.RUnlock()
	if len(targets) == 0 {
		return nil
	}

	data, err := json.Marshal(eventMessage{Ver: ProtocolVersion, Type: "event", Event: event})
	if err != nil {
		return err
	}
	for _, c := range targets {
		if err := c.write(websocket.TextMessage, data, b.writeTimeout); err != nil {
			b.logger.Printf("[ws] dropping client %s: %v", c.id, err)
			b.drop(c)
		}
	}
	return nil
}

// Close disconnects every client.
func (b *Broadcaster) Close(context.Context) error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	clients := b.clients
	b.clients = make(map[*client]struct{})
	b.mu.Unlock()
	message := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
	for c := range clients {
		c.write(websocket.CloseMessage, message, b.writeTimeout)
		c.close()
	}
	return nil
}
