package handler

import (
	"github.com/freeeve/botclash/internal/events"
)

// Bridge forwards bus events to the WebSocket hub so dashboard clients see
// the same stream the in-process consumers do.
type Bridge struct {
	sub  *events.Subscription
	done chan struct{}
}

// NewBridge subscribes to every topic and starts forwarding.
func NewBridge(bus *events.Bus, hub *Hub) *Bridge {
	b := &Bridge{
		sub:  bus.Subscribe(0),
		done: make(chan struct{}),
	}
	go func() {
		defer close(b.done)
		for {
			select {
			case <-b.sub.Done():
				return
			case e := <-b.sub.Events():
				hub.Broadcast(WSEvent{
					Type: string(e.Type),
					At:   e.At,
					Data: e.Payload,
				})
			}
		}
	}()
	return b
}

// Stop detaches from the bus and waits for the forwarder to exit.
func (b *Bridge) Stop() {
	b.sub.Close()
	<-b.done
	b.sub.LogDrops("ws-bridge")
}
