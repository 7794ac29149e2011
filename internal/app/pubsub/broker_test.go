package pubsub

import (
	"testing"
	"time"
)

func TestBroker_PublishReachesOnlyEventSubscribers(t *testing.T) {
	b := NewBroker()

	chA, cancelA := b.Subscribe("ev-a")
	defer cancelA()
	chB, cancelB := b.Subscribe("ev-b")
	defer cancelB()

	b.Publish("ev-a", Note{Type: NotePriceUpdate})

	select {
	case note := <-chA:
		if note.EventID != "ev-a" || note.Type != NotePriceUpdate {
			t.Fatalf("unexpected note: %#v", note)
		}
		if note.Timestamp.IsZero() {
			t.Fatalf("timestamp not set")
		}
	case <-time.After(time.Second):
		t.Fatalf("subscriber A got nothing")
	}

	select {
	case note := <-chB:
		t.Fatalf("subscriber B should not receive: %#v", note)
	default:
	}
}

func TestBroker_CancelClosesChannel(t *testing.T) {
	b := NewBroker()

	ch, cancel := b.Subscribe("ev")
	if got := b.SubscriberCount("ev"); got != 1 {
		t.Fatalf("subscriber count = %d, want 1", got)
	}

	cancel()
	cancel() // second cancel is a no-op

	if _, open := <-ch; open {
		t.Fatalf("channel should be closed")
	}
	if got := b.SubscriberCount("ev"); got != 0 {
		t.Fatalf("subscriber count = %d, want 0", got)
	}

	// Publishing to an event with no subscribers must not panic or block.
	b.Publish("ev", Note{Type: NoteTransaction})
}

func TestBroker_SlowSubscriberDropsNotes(t *testing.T) {
	b := NewBroker()

	ch, cancel := b.Subscribe("ev")
	defer cancel()

	// Overfill the buffer; Publish must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			b.Publish("ev", Note{Type: NotePriceUpdate})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publish blocked on a slow subscriber")
	}

	if len(ch) != subscriberBuffer {
		t.Fatalf("expected full buffer of %d, got %d", subscriberBuffer, len(ch))
	}
}
