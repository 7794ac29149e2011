// Package pubsub provides the in-process notification bus for live price and
// transaction updates. Subscribers register per event id; publishing is
// best-effort and never blocks the caller, so a slow consumer can only lose
// its own notes.
package pubsub

import (
	"sync"
	"time"
)

// NoteType classifies a notification.
type NoteType string

const (
	NotePriceUpdate NoteType = "priceUpdate"
	NoteTransaction NoteType = "transactionUpdate"
)

// Note is one notification delivered to subscribers of an event.
type Note struct {
	Type      NoteType    `json:"type"`
	EventID   string      `json:"event_id"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// subscriberBuffer is the per-subscriber channel depth. Publishers drop notes
// for a subscriber whose buffer is full rather than wait.
const subscriberBuffer = 16

// Broker fans notes out to the subscribers of each event.
type Broker struct {
	mu     sync.RWMutex
	nextID int64
	subs   map[string]map[int64]chan Note
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[int64]chan Note)}
}

// Subscribe registers a subscriber for one event id and returns its channel
// together with a cancel function. The channel is closed on cancel.
func (b *Broker) Subscribe(eventID string) (<-chan Note, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	ch := make(chan Note, subscriberBuffer)
	if b.subs[eventID] == nil {
		b.subs[eventID] = make(map[int64]chan Note)
	}
	b.subs[eventID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if set, ok := b.subs[eventID]; ok {
				delete(set, id)
				if len(set) == 0 {
					delete(b.subs, eventID)
				}
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers a note to every subscriber of the event. Full subscriber
// buffers are skipped.
func (b *Broker) Publish(eventID string, note Note) {
	note.EventID = eventID
	if note.Timestamp.IsZero() {
		note.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[eventID] {
		select {
		case ch <- note:
		default:
		}
	}
}

// SubscriberCount reports the number of subscribers for an event.
func (b *Broker) SubscriberCount(eventID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[eventID])
}
