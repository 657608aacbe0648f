// Package notify fans user-facing toasts out to subscribers.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/ramy-dje/madar-dashboard-sub000/internal/metrics"
)

const (
	LevelSuccess = "success"
	LevelInfo    = "info"
	LevelError   = "error"
)

// Toast is a short message shown to the user.
type Toast struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (t Toast) String() string {
	return fmt.Sprintf("[%s] %s", t.Level, t.Message)
}

// Notifier publishes toasts.
type Notifier interface {
	Publish(Toast)
}

// Broadcaster manages toast subscribers.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Toast]struct{}
}

// NewBroadcaster creates a new toast broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Toast]struct{}),
	}
}

// Subscribe adds a new subscriber and returns its channel.
// The caller must call Unsubscribe when done.
func (b *Broadcaster) Subscribe() chan Toast {
	ch := make(chan Toast, 64)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	metrics.SetToastSubscribers(b.Count())
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan Toast) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	close(ch)
	b.mu.Unlock()
	metrics.SetToastSubscribers(b.Count())
}

// Publish sends a toast to all subscribers. Non-blocking: drops toasts
// for slow consumers.
func (b *Broadcaster) Publish(t Toast) {
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- t:
		default:
		}
	}
	metrics.RecordToast(t.Level)
}

// Count returns the current number of subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Success publishes a success toast.
func Success(n Notifier, format string, args ...interface{}) {
	n.Publish(Toast{Level: LevelSuccess, Message: fmt.Sprintf(format, args...)})
}

// Info publishes an informational toast.
func Info(n Notifier, format string, args ...interface{}) {
	n.Publish(Toast{Level: LevelInfo, Message: fmt.Sprintf(format, args...)})
}

// Error publishes an error toast.
func Error(n Notifier, format string, args ...interface{}) {
	n.Publish(Toast{Level: LevelError, Message: fmt.Sprintf(format, args...)})
}

// Recorder keeps every published toast. Useful where nothing subscribes, such as one-shot commands.
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

// Publish records the toast.
func (r *Recorder) Publish(t Toast) {
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, t)
	metrics.RecordToast(t.Level)
}

// Toasts returns the recorded toasts.
func (r *Recorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Toast(nil), r.toasts...)
}

// Last returns the most recent toast.
func (r *Recorder) Last() (Toast, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.toasts) == 0 {
		return Toast{}, false
	}
	return r.toasts[len(r.toasts)-1], true
}
