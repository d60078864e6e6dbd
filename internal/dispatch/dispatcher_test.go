package dispatch

import (
	"errors"
	"testing"
	"time"

	"github.com/arman-d/ChatterBack/internal/models"
	"github.com/arman-d/ChatterBack/internal/presence"
)

type recordingConn struct {
	events   []string
	payloads []any
	pushErr  error
}

func (c *recordingConn) Push(event string, payload any) error {
	c.events = append(c.events, event)
	c.payloads = append(c.payloads, payload)
	return c.pushErr
}

func TestDispatchPushesToConnectedReceiver(t *testing.T) {
	registry := presence.NewRegistry()
	conn := &recordingConn{}
	registry.Register(8, conn)

	message := &models.Message{
		ID:         3,
		SenderID:   7,
		ReceiverID: 8,
		Text:       "hi",
		CreatedAt:  time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC),
	}

	NewDispatcher(registry).Dispatch(message)

	if len(conn.events) != 1 || conn.events[0] != EventNewMessage {
		t.Fatalf("expected exactly one newMessage push, got %v", conn.events)
	}
	pushed, ok := conn.payloads[0].(*models.Message)
	if !ok || pushed.ID != 3 || pushed.Text != "hi" || pushed.Pinned {
		t.Fatalf("expected pushed payload to equal the stored message, got %+v", conn.payloads[0])
	}
}

func TestDispatchDropsSilentlyWhenReceiverOffline(t *testing.T) {
	registry := presence.NewRegistry()
	conn := &recordingConn{}
	registry.Register(7, conn) // sender is online, receiver is not

	NewDispatcher(registry).Dispatch(&models.Message{ID: 3, SenderID: 7, ReceiverID: 8, Text: "hi"})

	if len(conn.events) != 0 {
		t.Fatalf("expected no push to anyone, got %v", conn.events)
	}
}

func TestDispatchSwallowsPushFailure(t *testing.T) {
	registry := presence.NewRegistry()
	conn := &recordingConn{pushErr: errors.New("connection gone")}
	registry.Register(8, conn)

	NewDispatcher(registry).Dispatch(&models.Message{ID: 3, SenderID: 7, ReceiverID: 8, Text: "hi"})

	if len(conn.events) != 1 {
		t.Fatalf("expected exactly one push attempt, got %d", len(conn.events))
	}
}

func TestDispatchTypingRelaysSenderID(t *testing.T) {
	registry := presence.NewRegistry()
	conn := &recordingConn{}
	registry.Register(8, conn)

	dispatcher := NewDispatcher(registry)
	dispatcher.DispatchTyping(7, 8)
	dispatcher.DispatchTyping(7, 99) // offline receiver, dropped

	if len(conn.events) != 1 || conn.events[0] != EventTyping {
		t.Fatalf("expected one typing push, got %v", conn.events)
	}
	signal, ok := conn.payloads[0].(TypingSignal)
	if !ok || signal.SenderID != 7 {
		t.Fatalf("expected typing signal from user 7, got %+v", conn.payloads[0])
	}
}
