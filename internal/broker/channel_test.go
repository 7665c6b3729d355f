package broker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestChannelQueue_DeliversInOrderAndDrains(t *testing.T) {
	q := NewChannelQueue(4, nil)
	ctx := context.Background()

	for _, m := range []string{"a", "b", "c"} {
		if err := q.Publish(ctx, []byte(m)); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	q.Close()

	var got []string
	err := q.Consume(ctx, func(data []byte) error {
		got = append(got, string(data))
		if string(data) == "b" {
			return errors.New("handler failure does not stop consumption")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("expected [a b c], got %v", got)
	}
}

func TestChannelQueue_PublishAfterClose(t *testing.T) {
	q := NewChannelQueue(1, nil)
	q.Close()
	q.Close()
	if err := q.Publish(context.Background(), []byte("x")); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed, got %v", err)
	}
}

func TestChannelQueue_ContextCancel(t *testing.T) {
	q := NewChannelQueue(0, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := q.Publish(ctx, []byte("x")); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("publish on a full queue should respect ctx, got %v", err)
	}
	if err := q.Consume(ctx, func([]byte) error { return nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("consume should stop with ctx, got %v", err)
	}
}

func TestChannelQueue_CancelDeliversBuffered(t *testing.T) {
	q := NewChannelQueue(50, nil)
	for i := 0; i < 50; i++ {
		if err := q.Publish(context.Background(), []byte{byte(i)}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n := 0
	err := q.Consume(ctx, func([]byte) error {
		n++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if n != 50 {
		t.Errorf("expected all 50 buffered messages, got %d", n)
	}
}
