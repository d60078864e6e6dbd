package ws

import (
	"encoding/json"
	"errors"
	"sync"

	websocket "github.com/gofiber/contrib/websocket"

	"github.com/arman-d/ChatterBack/internal/presence"
)

var (
	errConnClosed     = errors.New("connection closed")
	errSendBufferFull = errors.New("send buffer full")
)

type typingRelay interface {
	DispatchTyping(senderID int64, receiverID int64)
}

type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Client is one user's live push connection. Pushes are enqueued into a
// buffered channel and drained by WritePump, so callers never block on
// the socket; a full buffer means the client is too slow and the push
// is dropped.
type Client struct {
	conn     *websocket.Conn
	registry *presence.Registry
	relay    typingRelay
	userID   int64

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

func NewClient(conn *websocket.Conn, registry *presence.Registry, relay typingRelay, userID int64) *Client {
	return &Client{
		conn:     conn,
		registry: registry,
		relay:    relay,
		userID:   userID,
		send:     make(chan []byte, 32),
	}
}

func (c *Client) Push(event string, payload any) error {
	encoded, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}

	select {
	case c.send <- encoded:
		return nil
	default:
		return errSendBufferFull
	}
}

// ReadPump owns the connection lifecycle: it registers the client for
// presence, relays inbound typing frames, and tears everything down
// when the socket dies.
func (c *Client) ReadPump() {
	c.registry.Register(c.userID, c)

	defer func() {
		c.registry.UnregisterConn(c.userID, c)
		c.close()
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var incoming struct {
			Type       string `json:"type"`
			ReceiverID int64  `json:"receiverId"`
		}
		if err := json.Unmarshal(payload, &incoming); err != nil {
			continue
		}

		if incoming.Type == "typing" && incoming.ReceiverID > 0 {
			c.relay.DispatchTyping(c.userID, incoming.ReceiverID)
		}
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func (c *Client) close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
}
