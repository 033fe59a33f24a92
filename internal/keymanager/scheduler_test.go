package keymanager

import (
	"context"
	"testing"
	"time"
)

func TestSetIntervalLatestWins(t *testing.T) {
	s := NewScheduler(nil, time.Hour, testLogger())

	// Two updates before the loop consumes either: the second must
	// replace the first, not be dropped.
	s.SetInterval(time.Minute)
	s.SetInterval(2 * time.Minute)

	select {
	case got := <-s.intervalCh:
		if got != 2*time.Minute {
			t.Errorf("queued interval = %v, want %v", got, 2*time.Minute)
		}
	default:
		t.Fatal("no interval queued")
	}

	// Non-positive updates are ignored.
	s.SetInterval(0)
	select {
	case got := <-s.intervalCh:
		t.Errorf("unexpected queued interval %v", got)
	default:
	}
}

func TestSchedulerRotatesExpiredKeys(t *testing.T) {
	m := newTestManager(t, Config{AutoGenerate: true, GracePeriod: time.Minute})
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	expireCurrentKeys(m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewScheduler(m, 20*time.Millisecond, testLogger())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.After(3 * time.Second)
	for m.NeedsRotation() {
		select {
		case <-deadline:
			t.Fatal("scheduler never rotated the expired pair")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on context cancellation")
	}

	if v := m.Status().Version; v != 2 {
		t.Errorf("version after scheduled rotation = %d, want 2", v)
	}
}
