package handler

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/freeeve/botclash/internal/events"
)

func testConn(buf int) *WSConn {
	return &WSConn{send: make(chan []byte, buf)}
}

func recvEvent(t *testing.T, c *WSConn) WSEvent {
	t.Helper()
	select {
	case data := <-c.send:
		var e WSEvent
		if err := json.Unmarshal(data, &e); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return WSEvent{}
	}
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	c1 := testConn(4)
	c2 := testConn(4)
	hub.Register(c1)
	hub.Register(c2)

	hub.Broadcast(WSEvent{Type: "MatchCompleted", At: time.Now()})

	if e := recvEvent(t, c1); e.Type != "MatchCompleted" {
		t.Errorf("c1: expected MatchCompleted, got %s", e.Type)
	}
	if e := recvEvent(t, c2); e.Type != "MatchCompleted" {
		t.Errorf("c2: expected MatchCompleted, got %s", e.Type)
	}
	if n := hub.ConnectionCount(); n != 2 {
		t.Errorf("expected 2 connections, got %d", n)
	}
}

func TestHubTopicFilter(t *testing.T) {
	hub := NewHub()
	c := testConn(4)
	hub.Register(c)
	hub.Subscribe(c, []string{"StandingsUpdated"})

	hub.Broadcast(WSEvent{Type: "MatchCompleted"})
	hub.Broadcast(WSEvent{Type: "StandingsUpdated"})

	if e := recvEvent(t, c); e.Type != "StandingsUpdated" {
		t.Errorf("expected only StandingsUpdated, got %s", e.Type)
	}
	select {
	case data := <-c.send:
		t.Errorf("unexpected extra message: %s", data)
	default:
	}

	// Unsubscribing the last topic leaves a filter that matches nothing.
	hub.Unsubscribe(c, []string{"StandingsUpdated"})
	hub.Broadcast(WSEvent{Type: "StandingsUpdated"})
	select {
	case data := <-c.send:
		t.Errorf("unexpected message after unsubscribe: %s", data)
	default:
	}
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub()
	c := testConn(1)
	hub.Register(c)

	hub.Broadcast(WSEvent{Type: "RoundStarted"})
	hub.Broadcast(WSEvent{Type: "MatchCompleted"}) // dropped, must not block

	if e := recvEvent(t, c); e.Type != "RoundStarted" {
		t.Errorf("expected the first event to survive, got %s", e.Type)
	}
	select {
	case data := <-c.send:
		t.Errorf("second event should have been dropped: %s", data)
	default:
	}
}

func TestHubUnregisterIdempotent(t *testing.T) {
	hub := NewHub()
	c := testConn(1)
	hub.Register(c)
	hub.Unregister(c)
	hub.Unregister(c) // second call must not close the channel again

	if n := hub.ConnectionCount(); n != 0 {
		t.Errorf("expected 0 connections, got %d", n)
	}
}

func TestBridgeForwardsBusEvents(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	hub := NewHub()
	c := testConn(8)
	hub.Register(c)

	bridge := NewBridge(bus, hub)
	defer bridge.Stop()

	bus.Publish(events.Event{
		Type:    events.EventStarted,
		Payload: events.EventStartedPayload{EventID: "ev-1"},
	})

	e := recvEvent(t, c)
	if e.Type != string(events.EventStarted) {
		t.Errorf("expected EventStarted, got %s", e.Type)
	}
	if e.At.IsZero() {
		t.Error("expected the bus timestamp to be forwarded")
	}
}
