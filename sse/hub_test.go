package sse

import (
	"strings"
	"testing"
	"time"
)

func recv(t *testing.T, c *Client) string {
	t.Helper()
	select {
	case data, ok := <-c.Events():
		if !ok {
			t.Fatal("channel closed")
		}
		return string(data)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return ""
	}
}

func TestHub_PublishToMatchingClients(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Stop()

	one := NewClient("c1", "job:abc")
	all := NewClient("c2", "job:*")
	other := NewClient("c3", "job:xyz")
	for _, c := range []*Client{one, all, other} {
		hub.Register(c)
	}

	hub.Publish("job:abc", Event{Type: EventChunk, Data: map[string]int{"chunk_index": 2}})

	for _, c := range []*Client{one, all} {
		got := recv(t, c)
		if !strings.HasPrefix(got, "event: chunk\n") {
			t.Errorf("client %s got %q", c.ID(), got)
		}
		if !strings.Contains(got, `"chunk_index":2`) {
			t.Errorf("client %s payload %q", c.ID(), got)
		}
	}

	select {
	case data := <-other.Events():
		t.Errorf("non-matching client received %q", string(data))
	default:
	}
}

func TestHub_UnregisterClosesChannel(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Stop()

	c := NewClient("c1", "job:*")
	hub.Register(c)
	hub.Unregister(c)

	if _, ok := <-c.Events(); ok {
		t.Error("expected closed channel after unregister")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("client count = %d, want 0", hub.ClientCount())
	}
}

func TestHub_SlowClientDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Stop()

	c := NewClient("c1", "job:*")
	hub.Register(c)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			hub.Publish("job:abc", Event{Type: EventChunk, Data: i})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow client")
	}
}

func TestHub_StopDisconnectsEveryone(t *testing.T) {
	hub := NewHub(nil)
	c := NewClient("c1", "job:*")
	hub.Register(c)

	hub.Stop()
	if _, ok := <-c.Events(); ok {
		t.Error("expected closed channel after stop")
	}

	// Registration after stop must not leave a dangling open channel.
	late := NewClient("c2", "job:*")
	hub.Register(late)
	if _, ok := <-late.Events(); ok {
		t.Error("expected immediate close for post-stop registration")
	}
}

func TestEvent_Encode(t *testing.T) {
	data, err := Event{Type: EventJob, Data: map[string]string{"state": "done"}}.Encode()
	if err != nil {
		t.Fatal(err)
	}
	want := "event: job\ndata: {\"state\":\"done\"}\n\n"
	if string(data) != want {
		t.Errorf("encoded = %q, want %q", string(data), want)
	}
}
