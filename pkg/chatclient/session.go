// Package chatclient is the client-side counterpart of the messaging
// server: it keeps a local view of one conversation reconciled against
// server-confirmed state and inbound push events.
package chatclient

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

const DefaultTypingTimeout = 3 * time.Second

// Handle identifies one event subscription.
type Handle uint64

// EventStream delivers push events from the server. Implementations
// must be safe for concurrent Subscribe/Unsubscribe against delivery.
type EventStream interface {
	Subscribe(event string, handler func(data json.RawMessage)) Handle
	Unsubscribe(handle Handle)
}

// API is the request/response half of the client.
type API interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetHistory(ctx context.Context, peerID int64) ([]Message, error)
	SendMessage(ctx context.Context, peerID int64, text string, image string) (*Message, error)
	TogglePin(ctx context.Context, messageID int64) (*Message, error)
}

// Session holds the conversation view for the currently selected peer.
// The view only ever contains server-confirmed messages: sends append
// the response, pushes append after a sender filter, and pin toggles
// patch the matching entry in place. There is no optimistic insert and
// therefore nothing to roll back.
type Session struct {
	api       API
	stream    EventStream
	typingTTL time.Duration

	mu           sync.Mutex
	selectedPeer int64
	messages     []Message
	subscribed   bool
	msgSub       Handle
	typingSub    Handle
	typingTimer  *time.Timer
	typingGen    uint64
	peerTyping   bool
}

func NewSession(apiClient API, stream EventStream) *Session {
	return &Session{
		api:       apiClient,
		stream:    stream,
		typingTTL: DefaultTypingTimeout,
	}
}

// SelectPeer switches the conversation: it drops the previous
// subscriptions, replaces the view with the peer's history, and
// subscribes to pushes filtered to the new peer. Exactly one filter is
// active at any time.
func (s *Session) SelectPeer(ctx context.Context, peerID int64) error {
	s.unsubscribe()

	history, err := s.api.GetHistory(ctx, peerID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.selectedPeer = peerID
	s.messages = history
	s.peerTyping = false
	s.typingGen++
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
	s.mu.Unlock()

	msgSub := s.stream.Subscribe("newMessage", s.handleNewMessage)
	typingSub := s.stream.Subscribe("typing", s.handleTyping)

	s.mu.Lock()
	s.msgSub = msgSub
	s.typingSub = typingSub
	s.subscribed = true
	s.mu.Unlock()

	return nil
}

func (s *Session) Users(ctx context.Context) ([]User, error) {
	return s.api.ListUsers(ctx)
}

// Send posts the message and appends the server-confirmed result.
func (s *Session) Send(ctx context.Context, text, image string) (*Message, error) {
	s.mu.Lock()
	peer := s.selectedPeer
	s.mu.Unlock()

	message, err := s.api.SendMessage(ctx, peer, text, image)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.messages = append(s.messages, *message)
	s.mu.Unlock()

	return message, nil
}

// TogglePin flips the pin server-side and patches the matching message
// in place; the rest of the view is untouched.
func (s *Session) TogglePin(ctx context.Context, messageID int64) (*Message, error) {
	updated, err := s.api.TogglePin(ctx, messageID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for i := range s.messages {
		if s.messages[i].ID == messageID {
			s.messages[i].Pinned = updated.Pinned
			break
		}
	}
	s.mu.Unlock()

	return updated, nil
}

// Messages returns a copy of the current view, oldest first.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Pinned is a projection over the view, recomputed on every call. It is
// never stored, so it cannot diverge from the message list.
func (s *Session) Pinned() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	pinned := make([]Message, 0)
	for _, message := range s.messages {
		if message.Pinned {
			pinned = append(pinned, message)
		}
	}
	return pinned
}

func (s *Session) PeerTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerTyping
}

func (s *Session) SelectedPeer() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedPeer
}

// Close drops the active subscriptions and stops the typing timer.
func (s *Session) Close() {
	s.unsubscribe()
	s.mu.Lock()
	s.typingGen++
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
	s.peerTyping = false
	s.mu.Unlock()
}

func (s *Session) unsubscribe() {
	s.mu.Lock()
	subscribed := s.subscribed
	msgSub, typingSub := s.msgSub, s.typingSub
	s.subscribed = false
	s.mu.Unlock()

	if subscribed {
		s.stream.Unsubscribe(msgSub)
		s.stream.Unsubscribe(typingSub)
	}
}

func (s *Session) handleNewMessage(data json.RawMessage) {
	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		log.Printf("chatclient: bad newMessage payload: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Pushes from anyone but the selected peer are dropped; that
	// history is refetched when the peer is selected.
	if message.SenderID != s.selectedPeer {
		return
	}
	s.messages = append(s.messages, message)
}

func (s *Session) handleTyping(data json.RawMessage) {
	var signal struct {
		SenderID int64 `json:"senderId"`
	}
	if err := json.Unmarshal(data, &signal); err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if signal.SenderID != s.selectedPeer {
		return
	}

	s.peerTyping = true
	// Debounce: a fresh signal restarts the clock instead of stacking.
	// The generation counter keeps an already-fired timer callback from
	// clearing an indicator that a newer signal has refreshed; Stop()
	// alone cannot rule that out once the callback has started.
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	s.typingGen++
	gen := s.typingGen
	s.typingTimer = time.AfterFunc(s.typingTTL, func() {
		s.clearTyping(gen)
	})
}

func (s *Session) clearTyping(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.typingGen {
		return
	}
	s.peerTyping = false
}
