package chatclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// WSStream is the push channel over a websocket. Handlers registered
// via Subscribe run on the read loop goroutine, one event at a time.
type WSStream struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu       sync.Mutex
	next     Handle
	handlers map[string]map[Handle]func(json.RawMessage)
	byHandle map[Handle]string

	done     chan struct{}
	doneOnce sync.Once
}

// DialStream connects to the server's /api/ws endpoint. baseURL is the
// plain http(s) address of the server.
func DialStream(ctx context.Context, baseURL, token string) (*WSStream, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	}
	parsed.Path += "/api/ws"
	parsed.RawQuery = url.Values{"token": {token}}.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, parsed.String(), nil)
	if resp != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", parsed.String(), err)
	}

	s := &WSStream{
		conn:     conn,
		handlers: make(map[string]map[Handle]func(json.RawMessage)),
		byHandle: make(map[Handle]string),
		done:     make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *WSStream) Subscribe(event string, handler func(data json.RawMessage)) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	handle := s.next
	set, ok := s.handlers[event]
	if !ok {
		set = make(map[Handle]func(json.RawMessage))
		s.handlers[event] = set
	}
	set[handle] = handler
	s.byHandle[handle] = event
	return handle
}

func (s *WSStream) Unsubscribe(handle Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.byHandle[handle]
	if !ok {
		return
	}
	delete(s.byHandle, handle)
	if set, ok := s.handlers[event]; ok {
		delete(set, handle)
		if len(set) == 0 {
			delete(s.handlers, event)
		}
	}
}

// SendTyping tells the server the local user is typing at receiverID.
func (s *WSStream) SendTyping(receiverID int64) error {
	payload, err := json.Marshal(struct {
		Type       string `json:"type"`
		ReceiverID int64  `json:"receiverId"`
	}{Type: "typing", ReceiverID: receiverID})
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *WSStream) Close() error {
	s.doneOnce.Do(func() { close(s.done) })
	return s.conn.Close()
}

// Done is closed once the read loop exits, i.e. the connection is gone.
func (s *WSStream) Done() <-chan struct{} {
	return s.done
}

func (s *WSStream) readLoop() {
	defer s.doneOnce.Do(func() { close(s.done) })

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var event struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(payload, &event); err != nil {
			continue
		}

		s.mu.Lock()
		snapshot := make([]func(json.RawMessage), 0, len(s.handlers[event.Event]))
		for _, handler := range s.handlers[event.Event] {
			snapshot = append(snapshot, handler)
		}
		s.mu.Unlock()

		for _, handler := range snapshot {
			handler(event.Data)
		}
	}
}
