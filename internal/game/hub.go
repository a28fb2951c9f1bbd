package game

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog"
)

const (
	HUB_BUFFER_SIZE    = 256
	CLIENT_BUFFER_SIZE = 256
	WRITE_TIMEOUT      = 10 * time.Second
)

var ErrClientQueueFull = errors.New("client send queue full")

// wsConn is the part of *websocket.Conn a client writes through.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client owns one websocket connection. All writes go through its queue and
// a single writer goroutine, so messages arrive in the order they were sent.
type Client struct {
	conn   wsConn
	queue  chan []byte
	done   chan struct{}
	once   sync.Once
	logger zerolog.Logger
}

func newClient(conn wsConn, logger zerolog.Logger) *Client {
	c := &Client{
		conn:   conn,
		queue:  make(chan []byte, CLIENT_BUFFER_SIZE),
		done:   make(chan struct{}),
		logger: logger,
	}
	go c.writeLoop()
	return c
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.queue:
			c.conn.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug().Err(err).Msg("websocket write")
				c.close()
				c.conn.Close()
				return
			}
		}
	}
}

func (c *Client) enqueue(data []byte) error {
	select {
	case <-c.done:
		return nil
	default:
	}
	select {
	case c.queue <- data:
		return nil
	default:
		return ErrClientQueueFull
	}
}

// Send queues v for this client only.
func (c *Client) Send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.enqueue(data)
}

func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

// Hub fans engine events out to websocket clients. It is an EventSink.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan interface{}
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	mu         sync.RWMutex
	logger     zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan interface{}, HUB_BUFFER_SIZE),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		logger:     logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.quit)
			h.mu.Lock()
			for client := range h.clients {
				client.close()
				client.conn.Close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug().Int("clients", total).Msg("client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				client.conn.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug().Int("clients", total).Msg("client disconnected")

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				h.logger.Error().Err(err).Msg("marshal broadcast")
				continue
			}

			h.mu.RLock()
			for client := range h.clients {
				if err := client.enqueue(data); err != nil {
					h.logger.Warn().Err(err).Msg("dropping message for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues a message for every client, dropping it when the buffer
// is full.
func (h *Hub) Broadcast(message interface{}) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn().Msg("broadcast channel full, dropping message")
	}
}

func (h *Hub) Publish(ev Event) {
	h.Broadcast(ev)
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RegisterClient(conn *websocket.Conn) *Client {
	return h.attach(conn)
}

func (h *Hub) attach(conn wsConn) *Client {
	client := newClient(conn, h.logger)
	select {
	case h.register <- client:
	case <-h.quit:
		client.close()
	}
	return client
}

func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
		client.close()
	}
}
