package queue

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/okian/vouchbase/internal/domain/model"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	job := model.RefreshJob{Kind: model.RefreshProfile, Address: common.HexToAddress("0x01")}
	if !q.Enqueue(ctx, job) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got != job {
		t.Errorf("expected %v, got %v", job, got)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, model.RefreshJob{Kind: model.RefreshBoard}) {
		t.Error("expected enqueue to succeed")
	}
	if !q.Enqueue(ctx, model.RefreshJob{Kind: model.RefreshStats}) {
		t.Error("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, model.RefreshJob{Kind: model.RefreshBoard}) {
		t.Error("expected enqueue to fail when full")
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	q.Enqueue(ctx, model.RefreshJob{Kind: model.RefreshStats})
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if q.Enqueue(ctx, model.RefreshJob{Kind: model.RefreshBoard}) {
		t.Error("expected enqueue to fail after close")
	}

	// Jobs queued before Close are still delivered, then the channel closes.
	ch := q.Dequeue(ctx)
	if j, ok := <-ch; !ok || j.Kind != model.RefreshStats {
		t.Errorf("expected queued stats job, got %v %v", j, ok)
	}
	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed")
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if q.Enqueue(ctx, model.RefreshJob{Kind: model.RefreshBoard}) {
		t.Error("expected enqueue to fail on cancelled context")
	}
}
