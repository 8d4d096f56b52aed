// Package syncbus is the process-wide publish/subscribe bus that carries the
// data-sync signal and state notifications between components.
package syncbus

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/starford/synka/internal/metrics"
)

// Topic names a class of events.
type Topic string

// Topics.
const (
	// TopicDataSync asks every domain to refetch regardless of cache freshness.
	TopicDataSync       Topic = "data-sync"
	TopicNetworkOnline  Topic = "network.online"
	TopicNetworkOffline Topic = "network.offline"
	TopicState          Topic = "state.changed"
	TopicNotice         Topic = "notice"
	TopicInteraction    Topic = "interaction.changed"
	TopicOfflineChanged Topic = "offline.changed"
)

// Event is a single bus message.
type Event struct {
	Topic Topic `json:"topic"`
	Data  any   `json:"data,omitempty"`
}

// Subscription receives events for its topics on C until it is unsubscribed
// or the bus closes, at which point C is closed.
type Subscription struct {
	C      <-chan Event
	ch     chan Event
	topics map[Topic]struct{}
}

func (s *Subscription) wants(t Topic) bool {
	if len(s.topics) == 0 {
		return true
	}
	_, ok := s.topics[t]
	return ok
}

// Bus fans events out to subscribers.
//
// Concurrency model: a single internal event loop (goroutine) owns the
// subscriber set. Public methods communicate with this loop through channels,
// so no mutexes are required.
type Bus struct {
	buffer int

	subscribeCh   chan *Subscription
	unsubscribeCh chan *Subscription
	publishCh     chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// Option configures a Bus.
type Option func(*Bus)

// WithBuffer sets the per-subscriber buffer size.
func WithBuffer(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// New starts a bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		buffer:        64,
		subscribeCh:   make(chan *Subscription),
		unsubscribeCh: make(chan *Subscription),
		publishCh:     make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

func (b *Bus) run() {
	defer close(b.stopped)

	subs := make(map[*Subscription]struct{})

	for {
		select {
		case <-b.stopCh:
			for s := range subs {
				close(s.ch)
			}
			return

		case s := <-b.subscribeCh:
			subs[s] = struct{}{}

		case s := <-b.unsubscribeCh:
			if _, ok := subs[s]; ok {
				delete(subs, s)
				close(s.ch)
			}

		case ev := <-b.publishCh:
			for s := range subs {
				if !s.wants(ev.Topic) {
					continue
				}
				select {
				case s.ch <- ev:
				default:
					// Subscriber buffer full; skip to avoid blocking the loop.
					metrics.BusDropped.Inc()
				}
			}

		case resp := <-b.countReqCh:
			resp <- len(subs)
		}
	}
}

// Close stops the loop and closes every subscription channel.
func (b *Bus) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a subscriber for the given topics, or for all topics
// when none are given.
func (b *Bus) Subscribe(topics ...Topic) *Subscription {
	ch := make(chan Event, b.buffer)
	s := &Subscription{C: ch, ch: ch, topics: make(map[Topic]struct{}, len(topics))}
	for _, t := range topics {
		s.topics[t] = struct{}{}
	}
	if b.closed.Load() {
		close(ch)
		return s
	}

	select {
	case b.subscribeCh <- s:
	case <-b.stopped:
		close(ch)
	}
	return s
}

// Unsubscribe removes s and closes its channel.
func (b *Bus) Unsubscribe(s *Subscription) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- s:
	case <-b.stopped:
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to every subscriber of topic.
func (b *Bus) Publish(topic Topic, data any) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- Event{Topic: topic, Data: data}:
	case <-b.stopped:
	}
}

// SyncNow broadcasts the data-sync signal.
func (b *Bus) SyncNow() {
	b.Publish(TopicDataSync, nil)
}

// ServeHTTP streams every bus event as Server-Sent Events.
func (b *Bus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			_, _ = w.Write(formatSSE(ev))
			flusher.Flush()
		}
	}
}

func formatSSE(ev Event) []byte {
	payload := []byte("{}")
	if ev.Data != nil {
		if p, err := json.Marshal(ev.Data); err == nil {
			payload = p
		}
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", ev.Topic, payload))
}
