package notification

import (
	"time"

	"github.com/osa030/videowall/internal/domain/source"
)

// Type identifies what a notification reports.
type Type string

const (
	TypeStateChanged   Type = "STATE_CHANGED"
	TypeSourceLoaded   Type = "SOURCE_LOADED"
	TypeQueueChanged   Type = "QUEUE_CHANGED"
	TypeBarrierTimeout Type = "BARRIER_TIMEOUT"
	TypeInitialState   Type = "INITIAL_STATE" // First message on every watch stream
)

// Notification is a single event pushed to watchers.
type Notification struct {
	Type       Type      `json:"type"`
	SequenceNo uint64    `json:"sequence_no"`
	Time       time.Time `json:"time"`

	// STATE_CHANGED, INITIAL_STATE
	State string `json:"state,omitempty"`

	// SOURCE_LOADED, INITIAL_STATE
	Source *source.Source `json:"source,omitempty"`

	// QUEUE_CHANGED, INITIAL_STATE
	Queue   []source.QueueItem `json:"queue,omitempty"`
	Current *source.QueueItem  `json:"current,omitempty"`

	// BARRIER_TIMEOUT
	Ready    int `json:"ready,omitempty"`
	Expected int `json:"expected,omitempty"`
}

// StateChanged builds a STATE_CHANGED notification.
func StateChanged(state string) *Notification {
	return &Notification{Type: TypeStateChanged, State: state}
}

// SourceLoaded builds a SOURCE_LOADED notification.
func SourceLoaded(src source.Source) *Notification {
	return &Notification{Type: TypeSourceLoaded, Source: &src}
}

// QueueChanged builds a QUEUE_CHANGED notification from a queue snapshot.
func QueueChanged(items []source.QueueItem, current *source.QueueItem) *Notification {
	return &Notification{Type: TypeQueueChanged, Queue: items, Current: current}
}

// BarrierTimeout builds a BARRIER_TIMEOUT notification.
func BarrierTimeout(ready, expected int) *Notification {
	return &Notification{Type: TypeBarrierTimeout, Ready: ready, Expected: expected}
}

// InitialState builds the snapshot sent when a watcher subscribes.
// A zero loaded source is omitted.
func InitialState(state string, loaded source.Source, items []source.QueueItem, current *source.QueueItem) *Notification {
	n := &Notification{Type: TypeInitialState, State: state, Queue: items, Current: current}
	if !loaded.IsZero() {
		n.Source = &loaded
	}
	return n
}
