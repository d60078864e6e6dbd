package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type stubAPI struct {
	historyByPeer map[int64][]Message
	historyErr    error
	sendResult    *Message
	sendErr       error
	toggleResult  *Message
	toggleErr     error
	lastPeerID    int64
	lastText      string
	lastImage     string
	lastToggledID int64
}

func (a *stubAPI) ListUsers(_ context.Context) ([]User, error) {
	return nil, nil
}

func (a *stubAPI) GetHistory(_ context.Context, peerID int64) ([]Message, error) {
	a.lastPeerID = peerID
	return a.historyByPeer[peerID], a.historyErr
}

func (a *stubAPI) SendMessage(_ context.Context, peerID int64, text, image string) (*Message, error) {
	a.lastPeerID = peerID
	a.lastText = text
	a.lastImage = image
	return a.sendResult, a.sendErr
}

func (a *stubAPI) TogglePin(_ context.Context, messageID int64) (*Message, error) {
	a.lastToggledID = messageID
	return a.toggleResult, a.toggleErr
}

// fakeStream records subscriptions and lets tests fire events by hand.
type fakeStream struct {
	next         Handle
	handlers     map[Handle]func(json.RawMessage)
	events       map[Handle]string
	unsubscribed []Handle
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		handlers: make(map[Handle]func(json.RawMessage)),
		events:   make(map[Handle]string),
	}
}

func (s *fakeStream) Subscribe(event string, handler func(data json.RawMessage)) Handle {
	s.next++
	s.handlers[s.next] = handler
	s.events[s.next] = event
	return s.next
}

func (s *fakeStream) Unsubscribe(handle Handle) {
	s.unsubscribed = append(s.unsubscribed, handle)
	delete(s.handlers, handle)
	delete(s.events, handle)
}

func (s *fakeStream) fire(t *testing.T, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	for handle, handler := range s.handlers {
		if s.events[handle] == event {
			handler(data)
		}
	}
}

func (s *fakeStream) activeSubscriptions() int {
	return len(s.handlers)
}

func TestSelectPeerReplacesViewWithHistory(t *testing.T) {
	api := &stubAPI{historyByPeer: map[int64][]Message{
		8: {
			{ID: 1, SenderID: 7, ReceiverID: 8, Text: "hey"},
			{ID: 2, SenderID: 8, ReceiverID: 7, Text: "hey back", Pinned: true},
		},
	}}
	stream := newFakeStream()
	session := NewSession(api, stream)

	if err := session.SelectPeer(context.Background(), 8); err != nil {
		t.Fatalf("SelectPeer: %v", err)
	}

	messages := session.Messages()
	if len(messages) != 2 || messages[0].ID != 1 || messages[1].ID != 2 {
		t.Fatalf("unexpected view: %+v", messages)
	}
	if stream.activeSubscriptions() != 2 {
		t.Fatalf("expected newMessage+typing subscriptions, got %d", stream.activeSubscriptions())
	}
}

func TestSelectPeerDropsPreviousSubscriptions(t *testing.T) {
	api := &stubAPI{historyByPeer: map[int64][]Message{}}
	stream := newFakeStream()
	session := NewSession(api, stream)

	if err := session.SelectPeer(context.Background(), 8); err != nil {
		t.Fatalf("SelectPeer(8): %v", err)
	}
	if err := session.SelectPeer(context.Background(), 9); err != nil {
		t.Fatalf("SelectPeer(9): %v", err)
	}

	if len(stream.unsubscribed) != 2 {
		t.Fatalf("expected both old subscriptions dropped, got %v", stream.unsubscribed)
	}
	if stream.activeSubscriptions() != 2 {
		t.Fatalf("expected exactly one active filter pair, got %d", stream.activeSubscriptions())
	}
}

func TestSelectPeerFailureLeavesNoSubscription(t *testing.T) {
	api := &stubAPI{historyErr: errors.New("server down")}
	stream := newFakeStream()
	session := NewSession(api, stream)

	if err := session.SelectPeer(context.Background(), 8); err == nil {
		t.Fatal("expected history fetch error")
	}
	if stream.activeSubscriptions() != 0 {
		t.Fatalf("expected no subscription after failed select, got %d", stream.activeSubscriptions())
	}
}

func TestPushFromSelectedPeerIsAppended(t *testing.T) {
	api := &stubAPI{historyByPeer: map[int64][]Message{}}
	stream := newFakeStream()
	session := NewSession(api, stream)

	if err := session.SelectPeer(context.Background(), 8); err != nil {
		t.Fatalf("SelectPeer: %v", err)
	}

	stream.fire(t, "newMessage", Message{ID: 5, SenderID: 8, ReceiverID: 7, Text: "hi"})
	stream.fire(t, "newMessage", Message{ID: 6, SenderID: 99, ReceiverID: 7, Text: "wrong peer"})

	messages := session.Messages()
	if len(messages) != 1 || messages[0].ID != 5 {
		t.Fatalf("expected only the selected peer's push, got %+v", messages)
	}
}

func TestSendAppendsServerConfirmedMessage(t *testing.T) {
	confirmed := &Message{ID: 12, SenderID: 7, ReceiverID: 8, Text: "hello"}
	api := &stubAPI{historyByPeer: map[int64][]Message{}, sendResult: confirmed}
	stream := newFakeStream()
	session := NewSession(api, stream)

	if err := session.SelectPeer(context.Background(), 8); err != nil {
		t.Fatalf("SelectPeer: %v", err)
	}

	if _, err := session.Send(context.Background(), "hello", ""); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if api.lastPeerID != 8 || api.lastText != "hello" {
		t.Fatalf("unexpected send args: peer=%d text=%q", api.lastPeerID, api.lastText)
	}

	messages := session.Messages()
	if len(messages) != 1 || messages[0].ID != 12 {
		t.Fatalf("expected the confirmed message in the view, got %+v", messages)
	}
}

func TestSendFailureLeavesViewUntouched(t *testing.T) {
	api := &stubAPI{historyByPeer: map[int64][]Message{}, sendErr: errors.New("rejected")}
	stream := newFakeStream()
	session := NewSession(api, stream)

	if err := session.SelectPeer(context.Background(), 8); err != nil {
		t.Fatalf("SelectPeer: %v", err)
	}
	if _, err := session.Send(context.Background(), "hello", ""); err == nil {
		t.Fatal("expected send error")
	}
	if len(session.Messages()) != 0 {
		t.Fatal("expected no optimistic insert on failure")
	}
}

func TestTogglePinPatchesMessageInPlace(t *testing.T) {
	api := &stubAPI{
		historyByPeer: map[int64][]Message{
			8: {
				{ID: 1, SenderID: 8, ReceiverID: 7, Text: "first"},
				{ID: 2, SenderID: 7, ReceiverID: 8, Text: "second"},
			},
		},
		toggleResult: &Message{ID: 2, SenderID: 7, ReceiverID: 8, Text: "second", Pinned: true},
	}
	stream := newFakeStream()
	session := NewSession(api, stream)

	if err := session.SelectPeer(context.Background(), 8); err != nil {
		t.Fatalf("SelectPeer: %v", err)
	}
	if _, err := session.TogglePin(context.Background(), 2); err != nil {
		t.Fatalf("TogglePin: %v", err)
	}
	if api.lastToggledID != 2 {
		t.Fatalf("expected toggle of message 2, got %d", api.lastToggledID)
	}

	messages := session.Messages()
	if len(messages) != 2 || !messages[1].Pinned || messages[0].Pinned {
		t.Fatalf("expected only message 2 pinned, got %+v", messages)
	}
}

func TestPinnedIsRecomputedProjection(t *testing.T) {
	api := &stubAPI{
		historyByPeer: map[int64][]Message{
			8: {
				{ID: 1, SenderID: 8, ReceiverID: 7, Text: "a", Pinned: true},
				{ID: 2, SenderID: 7, ReceiverID: 8, Text: "b"},
			},
		},
		toggleResult: &Message{ID: 2, SenderID: 7, ReceiverID: 8, Text: "b", Pinned: true},
	}
	stream := newFakeStream()
	session := NewSession(api, stream)

	if err := session.SelectPeer(context.Background(), 8); err != nil {
		t.Fatalf("SelectPeer: %v", err)
	}

	if pinned := session.Pinned(); len(pinned) != 1 || pinned[0].ID != 1 {
		t.Fatalf("unexpected pinned view: %+v", pinned)
	}

	if _, err := session.TogglePin(context.Background(), 2); err != nil {
		t.Fatalf("TogglePin: %v", err)
	}

	if pinned := session.Pinned(); len(pinned) != 2 {
		t.Fatalf("expected pinned view to follow the message list, got %+v", pinned)
	}
}

func TestTypingIndicatorDebounces(t *testing.T) {
	api := &stubAPI{historyByPeer: map[int64][]Message{}}
	stream := newFakeStream()
	session := NewSession(api, stream)
	session.typingTTL = 40 * time.Millisecond

	if err := session.SelectPeer(context.Background(), 8); err != nil {
		t.Fatalf("SelectPeer: %v", err)
	}

	stream.fire(t, "typing", map[string]int64{"senderId": 8})
	if !session.PeerTyping() {
		t.Fatal("expected typing indicator after signal")
	}

	// A refresh before expiry restarts the clock instead of stacking.
	time.Sleep(25 * time.Millisecond)
	stream.fire(t, "typing", map[string]int64{"senderId": 8})
	time.Sleep(25 * time.Millisecond)
	if !session.PeerTyping() {
		t.Fatal("expected refreshed typing indicator to still be set")
	}

	time.Sleep(40 * time.Millisecond)
	if session.PeerTyping() {
		t.Fatal("expected typing indicator to clear after the timeout")
	}
}

func TestExpiredTypingClockCannotClearRefreshedIndicator(t *testing.T) {
	api := &stubAPI{historyByPeer: map[int64][]Message{}}
	stream := newFakeStream()
	session := NewSession(api, stream)

	if err := session.SelectPeer(context.Background(), 8); err != nil {
		t.Fatalf("SelectPeer: %v", err)
	}

	stream.fire(t, "typing", map[string]int64{"senderId": 8})
	session.mu.Lock()
	stale := session.typingGen
	session.mu.Unlock()

	// A second signal refreshes the clock; the first clock's expiry may
	// still run afterwards and must leave the indicator alone.
	stream.fire(t, "typing", map[string]int64{"senderId": 8})
	session.clearTyping(stale)
	if !session.PeerTyping() {
		t.Fatal("expected the refreshed indicator to survive a stale expiry")
	}

	session.mu.Lock()
	current := session.typingGen
	session.mu.Unlock()
	session.clearTyping(current)
	if session.PeerTyping() {
		t.Fatal("expected the current expiry to clear the indicator")
	}
}

func TestTypingFromOtherPeerIsIgnored(t *testing.T) {
	api := &stubAPI{historyByPeer: map[int64][]Message{}}
	stream := newFakeStream()
	session := NewSession(api, stream)

	if err := session.SelectPeer(context.Background(), 8); err != nil {
		t.Fatalf("SelectPeer: %v", err)
	}

	stream.fire(t, "typing", map[string]int64{"senderId": 99})
	if session.PeerTyping() {
		t.Fatal("expected typing from a non-selected peer to be ignored")
	}
}
