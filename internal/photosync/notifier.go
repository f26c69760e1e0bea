package photosync

import (
	"slices"
	"sync"
	"time"

	"github.com/openmined/photoframe/internal/manifest"
)

const (
	eventBufferSize = 16
)

type EventType string

const (
	EventPhotosUpdated EventType = "PHOTOS_UPDATED"
	EventPhotosError   EventType = "PHOTOS_ERROR"
)

// Event is what the display receives after every sync or ingest attempt.
type Event struct {
	Type EventType `json:"type"`
	// Task is the id of the scheduler task that produced the event.
	Task   string            `json:"task,omitempty"`
	Photos manifest.Manifest `json:"photos,omitempty"`
	Error  string            `json:"error,omitempty"`
	Time   time.Time         `json:"time"`
}

// Notifier fans events out to subscribers and remembers the last good
// manifest so the display keeps showing it across failures.
type Notifier struct {
	last   manifest.Manifest
	lastMu sync.RWMutex

	subs  []chan *Event
	subMu sync.RWMutex
}

func NewNotifier() *Notifier {
	return &Notifier{
		subs: make([]chan *Event, 0),
	}
}

// Subscribe returns a channel for receiving events
func (n *Notifier) Subscribe() <-chan *Event {
	n.subMu.Lock()
	defer n.subMu.Unlock()

	ch := make(chan *Event, eventBufferSize)
	n.subs = append(n.subs, ch)
	return ch
}

// Unsubscribe removes a subscription channel
func (n *Notifier) Unsubscribe(ch <-chan *Event) {
	n.subMu.Lock()
	defer n.subMu.Unlock()

	for i, sub := range n.subs {
		if sub == ch {
			close(sub)
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}
}

// Photos returns the last manifest that was published.
func (n *Notifier) Photos() manifest.Manifest {
	n.lastMu.RLock()
	defer n.lastMu.RUnlock()
	return slices.Clone(n.last)
}

// Updated publishes a new manifest produced by task.
func (n *Notifier) Updated(task string, m manifest.Manifest) {
	if m == nil {
		m = manifest.Manifest{}
	}

	n.lastMu.Lock()
	n.last = slices.Clone(m)
	n.lastMu.Unlock()

	n.broadcast(&Event{Type: EventPhotosUpdated, Task: task, Photos: m, Time: time.Now()})
}

// Failed publishes an error. A fallback manifest is only adopted when
// nothing has been published yet.
func (n *Notifier) Failed(task string, err error, fallback manifest.Manifest) {
	n.lastMu.Lock()
	if n.last == nil && len(fallback) > 0 {
		n.last = slices.Clone(fallback)
	}
	n.lastMu.Unlock()

	n.broadcast(&Event{Type: EventPhotosError, Task: task, Error: err.Error(), Time: time.Now()})
}

func (n *Notifier) broadcast(event *Event) {
	n.subMu.RLock()
	defer n.subMu.RUnlock()

	for _, sub := range n.subs {
		select {
		case sub <- event:
		default:
			// Channel is full, skip to avoid blocking
		}
	}
}
