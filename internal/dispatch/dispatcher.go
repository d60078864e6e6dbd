// Package dispatch pushes events at connected receivers after the
// interesting state change has already been persisted. Delivery is
// best-effort and at-most-once: if the receiver is offline, or the
// connection goes stale between lookup and send, the event is dropped
// and the receiver catches up on its next history fetch.
package dispatch

import (
	"log"

	"github.com/arman-d/ChatterBack/internal/models"
	"github.com/arman-d/ChatterBack/internal/presence"
)

const (
	EventNewMessage = "newMessage"
	EventTyping     = "typing"
)

type TypingSignal struct {
	SenderID int64 `json:"senderId"`
}

type Dispatcher struct {
	registry *presence.Registry
}

func NewDispatcher(registry *presence.Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Dispatch pushes the stored message at its receiver's live connection,
// if there is one. Exactly one push attempt; failures are swallowed.
func (d *Dispatcher) Dispatch(message *models.Message) {
	conn, ok := d.registry.Lookup(message.ReceiverID)
	if !ok {
		return
	}
	if err := conn.Push(EventNewMessage, message); err != nil {
		log.Printf("dispatch: drop newMessage for user %d: %v", message.ReceiverID, err)
	}
}

// DispatchTyping relays a typing signal to the receiver, same
// best-effort semantics as Dispatch.
func (d *Dispatcher) DispatchTyping(senderID, receiverID int64) {
	conn, ok := d.registry.Lookup(receiverID)
	if !ok {
		return
	}
	if err := conn.Push(EventTyping, TypingSignal{SenderID: senderID}); err != nil {
		log.Printf("dispatch: drop typing for user %d: %v", receiverID, err)
	}
}
