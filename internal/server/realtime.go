package server

import (
	"context"
	"sync"
	"time"

	"github.com/fotogalerie/gallerybot/internal/catalog"
)

const (
	RealtimeEventCatalogChanged = "catalog-change"
	realtimeEventHeartbeat      = "heartbeat"
)

// RealtimeMessage is one catalog-change notification delivered to SSE
// subscribers.
type RealtimeMessage struct {
	EventType string
	Kind      string
	SourceURL string
	Timestamp time.Time
}

// RealtimeDispatcher fans catalog change events out to stream subscribers.
// Delivery is best-effort: a subscriber that does not drain its buffer
// misses events rather than blocking the catalog.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeMessage
}

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[int64]*realtimeSubscriber),
		bufferSize:  16,
	}
}

// Subscribe registers a listener that receives change events until the
// context ends or the returned cleanup runs.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context) (<-chan RealtimeMessage, func()) {
	subscriber := &realtimeSubscriber{
		id:     d.nextSequence(),
		stream: make(chan RealtimeMessage, d.bufferSize),
	}
	d.registerSubscriber(subscriber)
	cleanup := func() {
		d.unregisterSubscriber(subscriber.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish implements catalog.Notifier.
func (d *RealtimeDispatcher) Publish(event catalog.ChangeEvent) {
	d.Broadcast(RealtimeMessage{
		EventType: RealtimeEventCatalogChanged,
		Kind:      string(event.Kind),
		SourceURL: event.SourceURL,
		Timestamp: event.At,
	})
}

// Broadcast delivers the message to every subscriber without blocking.
func (d *RealtimeDispatcher) Broadcast(message RealtimeMessage) {
	if message.EventType == "" {
		return
	}
	d.mu.RLock()
	copies := make([]*realtimeSubscriber, 0, len(d.subscribers))
	for _, subscriber := range d.subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- message:
		default:
		}
	}
}

func (d *RealtimeDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *RealtimeDispatcher) registerSubscriber(subscriber *realtimeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers[subscriber.id] = subscriber
}

func (d *RealtimeDispatcher) unregisterSubscriber(subscriberID int64) {
	d.mu.Lock()
	delete(d.subscribers, subscriberID)
	d.mu.Unlock()
}
