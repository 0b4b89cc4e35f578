// Package director provides the playback director: global playback intent
// and the start-up readiness barrier across all tiles.
package director

// State represents the global playback state.
type State int

const (
	StateIdle      State = iota // Nothing requested yet
	StateBuffering              // Waiting for every tile to signal readiness
	StatePlaying                // All tiles playing
	StatePaused                 // Paused by request
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateBuffering:
		return "BUFFERING"
	case StatePlaying:
		return "PLAYING"
	case StatePaused:
		return "PAUSED"
	default:
		return "UNKNOWN"
	}
}
