package events

import (
	"testing"
	"time"
)

func TestBus_PublishReachesSubscriber(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(TopicImportProgress)
	defer cancel()

	bus.Publish(TopicImportProgress, ImportProgress{SourceID: 1, Stage: "parsing"})

	select {
	case evt := <-ch:
		progress, ok := evt.Payload.(ImportProgress)
		if !ok {
			t.Fatalf("unexpected payload type %T", evt.Payload)
		}
		if progress.SourceID != 1 || progress.Stage != "parsing" {
			t.Errorf("unexpected payload: %+v", progress)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_TopicIsolation(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(TopicPlaybackState)
	defer cancel()

	bus.Publish(TopicImportProgress, ImportProgress{SourceID: 1})

	select {
	case evt := <-ch:
		t.Fatalf("received event from another topic: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_CancelClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(TopicImportDone)
	cancel()

	if _, open := <-ch; open {
		t.Error("expected channel to be closed after cancel")
	}

	// Publishing after cancel must not panic.
	bus.Publish(TopicImportDone, nil)
}

func TestBus_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	bus := NewBus()
	_, cancel := bus.Subscribe(TopicImportProgress)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			bus.Publish(TopicImportProgress, ImportProgress{SourceID: int64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}
