package events

import "testing"

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, unsubscribe := bus.Subscribe(TopicChatMessage)
	defer unsubscribe()

	bus.Publish(TopicChatMessage, "hello")

	select {
	case got := <-ch:
		if got != "hello" {
			t.Fatalf("payload = %v", got)
		}
	default:
		t.Fatal("message not delivered")
	}
}

func TestPublishOtherTopicNotDelivered(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, unsubscribe := bus.Subscribe(TopicChatMessage)
	defer unsubscribe()

	bus.Publish(TopicSubGoal, "goal")

	select {
	case got := <-ch:
		t.Fatalf("unexpected delivery: %v", got)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, unsubscribe := bus.Subscribe(TopicSubGoal)
	unsubscribe()

	if _, open := <-ch; open {
		t.Fatal("channel still open after unsubscribe")
	}

	// Publishing after unsubscribe must not panic on the closed channel.
	bus.Publish(TopicSubGoal, "late")
}

func TestPublishDuringUnsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	// A publisher racing unsubscribe must never send on a closed channel.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			bus.Publish(TopicChatMessage, i)
		}
	}()

	for i := 0; i < 1000; i++ {
		_, unsubscribe := bus.Subscribe(TopicChatMessage)
		unsubscribe()
	}
	<-done
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, unsubscribe := bus.Subscribe(TopicChatMessage)
	defer unsubscribe()

	// One more than the buffer; the publisher must not block.
	for i := 0; i <= defaultBufferSize; i++ {
		bus.Publish(TopicChatMessage, i)
	}

	if got := len(ch); got != defaultBufferSize {
		t.Fatalf("buffered = %d, want %d", got, defaultBufferSize)
	}
}

func TestCloseStopsDelivery(t *testing.T) {
	bus := NewBus()

	ch, _ := bus.Subscribe(TopicChatMessage)
	bus.Close()

	if _, open := <-ch; open {
		t.Fatal("channel still open after bus close")
	}

	bus.Publish(TopicChatMessage, "after close")
	bus.Close()
}
