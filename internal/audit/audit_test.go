package audit

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestLoggerRingCapacity(t *testing.T) {
	l := NewLogger(3, quietLogger())

	for i := 0; i < 5; i++ {
		l.Log(&Event{EventType: EventTypeEncrypt, RequestID: fmt.Sprintf("req-%d", i), Success: true})
	}

	events := l.Recent(0)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	// Oldest entries evicted, newest last.
	for i, want := range []string{"req-2", "req-3", "req-4"} {
		if events[i].RequestID != want {
			t.Errorf("event %d request ID = %s, want %s", i, events[i].RequestID, want)
		}
	}
}

func TestRecent(t *testing.T) {
	l := NewLogger(10, quietLogger())
	for i := 0; i < 5; i++ {
		l.Log(&Event{EventType: EventTypeDecrypt, RequestID: fmt.Sprintf("req-%d", i), Success: true})
	}

	if got := len(l.Recent(2)); got != 2 {
		t.Errorf("Recent(2) returned %d events", got)
	}
	if got := len(l.Recent(100)); got != 5 {
		t.Errorf("Recent(100) returned %d events, want 5", got)
	}

	last := l.Recent(1)[0]
	if last.RequestID != "req-4" {
		t.Errorf("most recent event = %s, want req-4", last.RequestID)
	}
}

func TestLogCrypto(t *testing.T) {
	l := NewLogger(10, quietLogger())

	l.LogCrypto(EventTypeDecrypt, "NORMAL", "req-1", 2, false, errors.New("authentication failed"), 5*time.Millisecond)

	events := l.Recent(1)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}

	event := events[0]
	if event.EventType != EventTypeDecrypt {
		t.Errorf("event type = %s, want %s", event.EventType, EventTypeDecrypt)
	}
	if event.Preset != "NORMAL" || event.KeysTried != 2 || event.Success {
		t.Errorf("unexpected event: %+v", event)
	}
	if event.Error != "authentication failed" {
		t.Errorf("error = %q, want authentication failed", event.Error)
	}
	if event.Timestamp.IsZero() {
		t.Error("timestamp was not stamped")
	}
}

func TestLogKeyRotation(t *testing.T) {
	l := NewLogger(10, quietLogger())

	l.LogKeyRotation(3, true, nil)
	l.LogKeyRotation(0, false, errors.New("generation failed"))

	events := l.Recent(2)
	if events[0].KeyVersion != 3 || !events[0].Success {
		t.Errorf("unexpected success event: %+v", events[0])
	}
	if events[1].Success || events[1].Error == "" {
		t.Errorf("unexpected failure event: %+v", events[1])
	}
}
