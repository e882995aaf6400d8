package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultBuffer is the per-subscription queue depth.
const DefaultBuffer = 64

// Bus fans events out to subscriptions. Publishing a lossless topic blocks
// until every subscriber has queue room (backpressure); lossy topics keep
// only the latest value per topic and coalesce key for subscribers that
// have fallen behind.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a subscription for the given topics; no topics means
// all topics. buffer <= 0 uses DefaultBuffer.
func (b *Bus) Subscribe(buffer int, topics ...Type) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	s := &Subscription{
		bus:    b,
		ch:     make(chan Event, buffer),
		done:   make(chan struct{}),
		kick:   make(chan struct{}, 1),
		latest: make(map[lossyKey]Event),
	}
	if len(topics) > 0 {
		s.topics = make(map[Type]bool, len(topics))
		for _, t := range topics {
			s.topics[t] = true
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.done)
		return s
	}
	b.subs[s] = struct{}{}
	go s.pump()
	return s
}

// Publish delivers an event to every matching subscription, in per-topic
// FIFO order relative to other publishes on the caller's goroutine.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		s.offer(e)
	}
}

// Close shuts down the bus and every subscription. Events published after
// Close are discarded.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[*Subscription]struct{})
	b.closed = true
	b.mu.Unlock()

	for s := range subs {
		s.close()
	}
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, s)
}

// lossyKey scopes coalescing. key is empty for payloads that are not
// Coalescable, so those still collapse per topic.
type lossyKey struct {
	topic Type
	key   string
}

// Subscription is one subscriber's queue. Events returns the delivery
// channel; it is never closed, so consumers must also select on Done.
type Subscription struct {
	bus    *Bus
	topics map[Type]bool // nil = all topics

	ch   chan Event
	done chan struct{}
	once sync.Once

	// Coalescing state for lossy topics: the pump drains latest into ch.
	lossyMu sync.Mutex
	latest  map[lossyKey]Event
	kick    chan struct{}

	coalesced atomic.Uint64
}

// Events returns the subscription's delivery channel.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Coalesced returns how many lossy events were collapsed into a newer
// value instead of being queued.
func (s *Subscription) Coalesced() uint64 { return s.coalesced.Load() }

// Close detaches the subscription from the bus.
func (s *Subscription) Close() {
	s.bus.remove(s)
	s.close()
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Subscription) wants(t Type) bool {
	return s.topics == nil || s.topics[t]
}

func (s *Subscription) offer(e Event) {
	if !s.wants(e.Type) {
		return
	}

	if e.Type.Lossy() {
		k := lossyKey{topic: e.Type}
		if c, ok := e.Payload.(Coalescable); ok {
			k.key = c.CoalesceKey()
		}
		s.lossyMu.Lock()
		if _, pending := s.latest[k]; pending {
			s.coalesced.Add(1)
		}
		s.latest[k] = e
		s.lossyMu.Unlock()
		select {
		case s.kick <- struct{}{}:
		default:
		}
		return
	}

	// Lossless: block the publisher until the subscriber has room.
	select {
	case s.ch <- e:
	case <-s.done:
	}
}

// pump drains coalesced lossy values into the delivery channel.
func (s *Subscription) pump() {
	for {
		select {
		case <-s.done:
			return
		case <-s.kick:
		}

		for {
			s.lossyMu.Lock()
			var next Event
			var found bool
			for k, e := range s.latest {
				next, found = e, true
				delete(s.latest, k)
				break
			}
			s.lossyMu.Unlock()
			if !found {
				break
			}
			select {
			case s.ch <- next:
			case <-s.done:
				return
			}
		}
	}
}

// LogDrops emits a debug line if the subscription coalesced events; used
// by long-lived consumers at shutdown.
func (s *Subscription) LogDrops(name string) {
	if n := s.Coalesced(); n > 0 {
		log.Debug().Str("subscriber", name).Uint64("coalesced", n).Msg("Lossy events coalesced")
	}
}
