package notify

import (
	"context"
	"testing"
	"time"
)

func newTestClient(h *Hub, userID string) *Client {
	return &Client{
		hub:    h,
		send:   make(chan *Event, sendBufferSize),
		userID: userID,
	}
}

func waitForClients(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for h.TotalClients() != want {
		if time.Now().After(deadline) {
			t.Fatalf("TotalClients() = %d, want %d", h.TotalClients(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func recvEvent(t *testing.T, c *Client) *Event {
	t.Helper()
	select {
	case ev := <-c.send:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestHubRoutesEventsByUser(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	alice := newTestClient(hub, "user-a")
	bob := newTestClient(hub, "user-b")
	hub.register <- alice
	hub.register <- bob
	waitForClients(t, hub, 2)

	hub.Publish(context.Background(), &Event{
		Type:     TypeProgress,
		JobID:    "job-1",
		UserID:   "user-a",
		Status:   "downloading",
		Progress: 0.5,
	})

	ev := recvEvent(t, alice)
	if ev.JobID != "job-1" || ev.Progress != 0.5 {
		t.Errorf("got event %+v", ev)
	}

	select {
	case ev := <-bob.send:
		t.Errorf("bob received event for another user: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubBroadcastsUnscopedEventsToAll(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	alice := newTestClient(hub, "user-a")
	anon := newTestClient(hub, "")
	hub.register <- alice
	hub.register <- anon
	waitForClients(t, hub, 2)

	hub.Publish(context.Background(), &Event{
		Type:   TypeCompleted,
		JobID:  "job-2",
		Status: "completed",
	})

	for _, c := range []*Client{alice, anon} {
		ev := recvEvent(t, c)
		if ev.Type != TypeCompleted {
			t.Errorf("Type = %q, want %q", ev.Type, TypeCompleted)
		}
	}
}

func TestHubUnregisterClosesSend(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	c := newTestClient(hub, "user-a")
	hub.register <- c
	waitForClients(t, hub, 1)

	hub.unregister <- c
	waitForClients(t, hub, 0)

	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("expected send channel to be closed")
		}
	case <-time.After(time.Second):
		t.Error("send channel not closed after unregister")
	}

	if n := hub.ClientCount("user-a"); n != 0 {
		t.Errorf("ClientCount = %d, want 0", n)
	}
}

func TestHubPublishAfterStopDoesNotBlock(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	hub.Stop()

	done := make(chan struct{})
	go func() {
		hub.Publish(context.Background(), &Event{Type: TypeProgress})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked after Stop")
	}
}
