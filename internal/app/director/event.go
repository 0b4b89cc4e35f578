package director

import "time"

// EventType represents a director event type.
type EventType int

const (
	EventStateChanged    EventType = iota // State transitioned
	EventTileReady                        // A new tile joined the ready set
	EventBarrierResolved                  // Every tile signalled ready
	EventBarrierTimedOut                  // Failsafe forced playback
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventStateChanged:
		return "state_changed"
	case EventTileReady:
		return "tile_ready"
	case EventBarrierResolved:
		return "barrier_resolved"
	case EventBarrierTimedOut:
		return "barrier_timed_out"
	default:
		return "unknown"
	}
}

// Event represents a director event.
type Event struct {
	Type     EventType
	State    State
	Index    int           // Tile index for EventTileReady, -1 otherwise
	Ready    int           // Ready tiles at the time of the event
	Expected int           // Tile count
	Waited   time.Duration // Buffering duration for barrier events
}
