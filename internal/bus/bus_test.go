package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	b.Publish(Event{Kind: "session.status_changed", Timestamp: time.Now(), Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != "session.status_changed" {
			t.Errorf("got kind %q, want session.status_changed", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 10)
	defer unsub()

	b.Publish(Event{Kind: "session.status_changed"})
	b.Publish(Event{Kind: "message.sent"})

	select {
	case evt := <-ch:
		if evt.Kind != "message.sent" {
			t.Errorf("got kind %q, want message.sent", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure session event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestChatScopedSubscription(t *testing.T) {
	b := New()
	ch, unsub := b.SubscribeChat("message.", "c1", 10)
	defer unsub()

	b.Publish(Scoped("message.sent", "c2", nil))
	b.Publish(Scoped("message.sent", "c1", nil))

	select {
	case evt := <-ch:
		if evt.ChatID != "c1" {
			t.Errorf("got chat %q, want c1", evt.ChatID)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for scoped event")
	}

	select {
	case evt := <-ch:
		t.Errorf("event for other chat leaked through: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("session.", 10)
	unsub()

	b.Publish(Event{Kind: "session.status_changed"})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no delivery.
	}
}

func TestNonBlockingPublish(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe("message.", 1)
	defer unsub()

	// Second publish must not block even though the buffer is full.
	done := make(chan struct{})
	go func() {
		b.Publish(Event{Kind: "message.sent"})
		b.Publish(Event{Kind: "message.sent"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on full subscriber")
	}
}
