package events

import (
	"encoding/json"
	"testing"
)

func TestHub_TopicsAreIsolated(t *testing.T) {
	h := NewHub()
	a := h.Subscribe(UserTopic(1))
	b := h.Subscribe(UserTopic(2))
	defer h.Unsubscribe(UserTopic(1), a)
	defer h.Unsubscribe(UserTopic(2), b)

	h.Publish(UserTopic(1), "hello")

	select {
	case got := <-a:
		if got != "hello" {
			t.Errorf("got %q", got)
		}
	default:
		t.Fatal("subscriber on user:1 got nothing")
	}
	select {
	case got := <-b:
		t.Fatalf("user:2 received %q", got)
	default:
	}
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe("t")
	for i := 0; i < h.bufSize*3; i++ {
		h.Publish("t", "x") // must not block
	}
	if len(ch) != h.bufSize {
		t.Errorf("buffered = %d, want %d", len(ch), h.bufSize)
	}
	h.Unsubscribe("t", ch)
	h.Unsubscribe("t", ch) // second call is a no-op
	if h.Subscribers("t") != 0 {
		t.Errorf("Subscribers = %d", h.Subscribers("t"))
	}
}

func TestMakeEvent(t *testing.T) {
	raw := MakeEvent("req-9", TypeDispatchProgress, map[string]int{"sent": 2})
	var e Event
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatal(err)
	}
	if e.Type != "dispatch_progress" || e.Version != 1 || e.RequestID != "req-9" || e.At.IsZero() {
		t.Errorf("event = %+v", e)
	}
	if string(e.Data) != `{"sent":2}` {
		t.Errorf("data = %s", e.Data)
	}

	// unmarshalable payloads are dropped, the envelope survives
	raw = MakeEvent("", TypePing, map[string]any{"bad": make(chan int)})
	e = Event{}
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatal(err)
	}
	if e.Type != TypePing || e.Data != nil {
		t.Errorf("event = %+v", e)
	}
}
