package audit

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// EventType represents the type of audit event.
type EventType string

const (
	// EventTypeEncrypt represents an encryption operation.
	EventTypeEncrypt EventType = "encrypt"
	// EventTypeDecrypt represents a decryption operation.
	EventTypeDecrypt EventType = "decrypt"
	// EventTypeKeyRotation represents a key rotation operation.
	EventTypeKeyRotation EventType = "key_rotation"
)

// Event is a single audit record. It never carries key material or
// plaintext.
type Event struct {
	Timestamp  time.Time     `json:"timestamp"`
	EventType  EventType     `json:"event_type"`
	Preset     string        `json:"preset,omitempty"`
	KeyVersion int           `json:"key_version,omitempty"`
	KeysTried  int           `json:"keys_tried,omitempty"`
	RequestID  string        `json:"request_id,omitempty"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration_ms"`
}

// Logger records operation events in a bounded in-memory ring and mirrors
// them to the structured log.
type Logger struct {
	mu        sync.Mutex
	events    []*Event
	maxEvents int
	log       *logrus.Logger
}

// NewLogger creates an audit logger holding at most maxEvents events.
func NewLogger(maxEvents int, log *logrus.Logger) *Logger {
	if maxEvents <= 0 {
		maxEvents = 1000
	}
	if log == nil {
		log = logrus.New()
	}
	return &Logger{
		events:    make([]*Event, 0, maxEvents),
		maxEvents: maxEvents,
		log:       log,
	}
}

// Log records an event, evicting the oldest entries beyond the cap.
func (l *Logger) Log(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	if len(l.events) > l.maxEvents {
		l.events = l.events[len(l.events)-l.maxEvents:]
	}
	l.mu.Unlock()

	entry := l.log.WithFields(logrus.Fields{
		"audit":       true,
		"event_type":  event.EventType,
		"preset":      event.Preset,
		"key_version": event.KeyVersion,
		"success":     event.Success,
		"duration_ms": event.Duration.Milliseconds(),
	})
	if event.Error != "" {
		entry = entry.WithField("error", event.Error)
	}
	entry.Info("audit event")
}

// LogCrypto records an encryption or decryption operation.
func (l *Logger) LogCrypto(eventType EventType, preset, requestID string, keysTried int, success bool, err error, duration time.Duration) {
	event := &Event{
		EventType: eventType,
		Preset:    preset,
		RequestID: requestID,
		KeysTried: keysTried,
		Success:   success,
		Duration:  duration,
	}
	if err != nil {
		event.Error = err.Error()
	}
	l.Log(event)
}

// LogKeyRotation records a rotation attempt.
func (l *Logger) LogKeyRotation(keyVersion int, success bool, err error) {
	event := &Event{
		EventType:  EventTypeKeyRotation,
		KeyVersion: keyVersion,
		Success:    success,
	}
	if err != nil {
		event.Error = err.Error()
	}
	l.Log(event)
}

// Recent returns up to n most recent events, newest last.
func (l *Logger) Recent(n int) []*Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || n > len(l.events) {
		n = len(l.events)
	}
	out := make([]*Event, n)
	copy(out, l.events[len(l.events)-n:])
	return out
}
