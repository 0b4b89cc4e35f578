// Package source provides the Source descriptor and QueueItem entities.
package source

import (
	"strings"
	"time"
)

// Kind represents how a source is played back.
type Kind string

const (
	KindLocal  Kind = "LOCAL"  // Played by a directly controlled media element
	KindRemote Kind = "REMOTE" // Played by a remote, iframe-controlled player
)

// ParseKind parses a kind name case-insensitively.
// Returns false if the name is not a known kind.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(KindLocal):
		return KindLocal, true
	case string(KindRemote):
		return KindRemote, true
	default:
		return "", false
	}
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// Source describes what to load into every tile.
type Source struct {
	Kind        Kind   `json:"kind"`                   // Playback kind
	DisplayName string `json:"display_name,omitempty"` // Human readable name
	Ref         string `json:"ref"`                    // File path / URL for LOCAL, video id for REMOTE
}

// IsZero reports whether the source is unset.
func (s Source) IsZero() bool {
	return s.Ref == ""
}

// SameAs reports whether both descriptors point at the same media.
func (s Source) SameAs(other Source) bool {
	return s.Kind == other.Kind && s.Ref == other.Ref
}

// QueueItem represents a source waiting in the play queue.
type QueueItem struct {
	ID         string    `json:"id"`          // Unique id, generated on enqueue
	Source     Source    `json:"source"`      // What to play
	EnqueuedAt time.Time `json:"enqueued_at"` // Time when added to queue
}
