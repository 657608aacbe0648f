package notify

import (
	"testing"
	"time"
)

func TestBroadcasterSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()

	ch1 := b.Subscribe()
	ch2 := b.Subscribe()
	if b.Count() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", b.Count())
	}

	b.Unsubscribe(ch1)
	b.Unsubscribe(ch2)
	if b.Count() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", b.Count())
	}
}

func TestBroadcasterPublish(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	Error(b, "failed to delete %d items", 2)

	select {
	case received := <-ch:
		if received.Level != LevelError {
			t.Errorf("expected level %s, got %s", LevelError, received.Level)
		}
		if received.Message != "failed to delete 2 items" {
			t.Errorf("unexpected message %q", received.Message)
		}
		if received.Timestamp.IsZero() {
			t.Error("expected timestamp")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for toast")
	}
}

func TestBroadcasterSlowConsumer(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill the buffer; further publishes must not block.
	for i := 0; i < 100; i++ {
		Info(b, "toast %d", i)
	}
	if len(ch) != 64 {
		t.Errorf("expected full buffer of 64, got %d", len(ch))
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	if _, ok := r.Last(); ok {
		t.Fatal("expected no toast")
	}

	Success(&r, "folder %q created", "Secrets")
	Error(&r, "boom")

	toasts := r.Toasts()
	if len(toasts) != 2 {
		t.Fatalf("expected 2 toasts, got %d", len(toasts))
	}
	if toasts[0].Message != `folder "Secrets" created` {
		t.Errorf("unexpected message %q", toasts[0].Message)
	}
	last, _ := r.Last()
	if last.Level != LevelError {
		t.Errorf("expected error level, got %s", last.Level)
	}
}
