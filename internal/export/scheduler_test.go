package export

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// mockDestination records calls to Write.
type mockDestination struct {
	writes atomic.Int64
	last   atomic.Value // []byte
	err    error
}

func (d *mockDestination) Write(_ context.Context, data []byte) error {
	d.writes.Add(1)
	cp := make([]byte, len(data))
	copy(cp, data)
	d.last.Store(cp)
	return d.err
}

func TestDeliver_AllDestinationsTried(t *testing.T) {
	failing := &mockDestination{err: errors.New("bucket gone")}
	ok := &mockDestination{}

	err := Deliver(context.Background(), seededStore(t), "alpha", []Destination{failing, ok}, quiet)
	if err == nil || err.Error() != "bucket gone" {
		t.Fatalf("Deliver error = %v", err)
	}
	if failing.writes.Load() != 1 || ok.writes.Load() != 1 {
		t.Errorf("writes = %d, %d", failing.writes.Load(), ok.writes.Load())
	}
	if data, _ := ok.last.Load().([]byte); len(nonEmptyLines(string(data))) != 4 {
		t.Errorf("payload = %s", data)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	dest := &mockDestination{}
	sched := NewScheduler(seededStore(t), "alpha", []Destination{dest}, 50*time.Millisecond, quiet)
	sched.Start()

	// Initial export plus at least one tick.
	time.Sleep(120 * time.Millisecond)
	sched.Stop()

	if writes := dest.writes.Load(); writes < 2 {
		t.Fatalf("expected at least 2 writes, got %d", writes)
	}
	after := dest.writes.Load()
	time.Sleep(80 * time.Millisecond)
	if dest.writes.Load() != after {
		t.Error("scheduler kept exporting after Stop")
	}
}

func TestSchedulerStop_NoStart(t *testing.T) {
	NewScheduler(seededStore(t), "alpha", nil, time.Second, quiet).Stop()
}
