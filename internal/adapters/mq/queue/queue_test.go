package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pulseboard/pulseboard/internal/domain/model"
)

func warmJob(tenant string) model.WarmJob {
	return model.WarmJob{
		TenantID: tenant,
		Range: model.DateRange{
			Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if !q.Enqueue(ctx, warmJob("loc-1")) {
		t.Error("expected enqueue to succeed")
	}

	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	jobChan := q.Dequeue(ctx)
	job := <-jobChan
	if job.TenantID != "loc-1" {
		t.Errorf("expected loc-1, got %v", job.TenantID)
	}

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, warmJob("loc-1")) {
		t.Error("expected enqueue to succeed")
	}
	if !q.Enqueue(ctx, warmJob("loc-2")) {
		t.Error("expected enqueue to succeed")
	}

	// Enqueue when full must fail without blocking.
	if q.Enqueue(ctx, warmJob("loc-3")) {
		t.Error("expected enqueue to fail when full")
	}

	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2000))
	ctx := context.Background()
	numGoroutines := 10
	numJobs := 100

	done := make(chan bool, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			for j := 0; j < numJobs; j++ {
				q.Enqueue(ctx, warmJob(fmt.Sprintf("loc-%d-%d", id, j)))
			}
			done <- true
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		<-done
	}

	if l := q.Len(ctx); l != numGoroutines*numJobs {
		t.Errorf("expected length %d, got %d", numGoroutines*numJobs, l)
	}

	received := 0
	jobChan := q.Dequeue(ctx)
	timeout := time.After(5 * time.Second)
	for received < numGoroutines*numJobs {
		select {
		case <-jobChan:
			received++
		case <-timeout:
			t.Fatalf("timed out after receiving %d jobs", received)
		}
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if !q.Enqueue(ctx, warmJob("loc-1")) {
		t.Error("expected enqueue to succeed")
	}

	if err := q.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to report closed")
	}

	// Closing twice is a no-op.
	if err := q.Close(); err != nil {
		t.Errorf("unexpected second close error: %v", err)
	}

	if q.Enqueue(ctx, warmJob("loc-2")) {
		t.Error("expected enqueue to fail after close")
	}

	// Drain the buffered job, then the channel must close.
	jobChan := q.Dequeue(ctx)
	job, ok := <-jobChan
	if !ok || job.TenantID != "loc-1" {
		t.Errorf("expected buffered job loc-1, got %v (ok=%v)", job.TenantID, ok)
	}
	if _, ok := <-jobChan; ok {
		t.Error("expected dequeue channel to be closed")
	}
}
