package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryPublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	if err := q.Publish(ctx, Message{Type: TypeAttendanceMarked, Body: []byte("r1")}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	select {
	case msg := <-messages:
		if msg.Type != TypeAttendanceMarked || string(msg.Body) != "r1" {
			t.Fatalf("unexpected message: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestInMemoryPublishCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := NewInMemory(0)
	if err := q.Publish(ctx, Message{Type: TypeAttendanceMarked}); err == nil {
		t.Fatal("expected context error on full queue")
	}
}
