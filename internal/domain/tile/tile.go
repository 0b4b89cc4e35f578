// Package tile provides the capability surface over one playback unit of the wall.
package tile

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/osa030/videowall/internal/domain/source"
)

var (
	ErrEmptySet      = errors.New("tile set is empty")
	ErrSlotMismatch  = errors.New("tile handle bound to a different slot")
	ErrMixedKinds    = errors.New("tile set mixes source kinds")
	ErrNoRateControl = errors.New("tile handle has no playback rate control")
)

// Handle is the capability surface every playback unit exposes.
// Control calls are fire-and-forget; results are observed on the next read.
type Handle interface {
	// Index returns the slot the handle is bound to for its whole lifetime.
	Index() int
	// Kind returns the kind of playback unit.
	Kind() source.Kind

	Play()
	Pause()
	Seek(seconds float64)

	// CurrentTime returns the playback position. ok is false while the unit
	// cannot report a numeric time (e.g. not initialised yet).
	CurrentTime() (seconds float64, ok bool)
	Duration() float64
	Paused() bool

	Mute()
	Unmute()

	// OnNaturalEnd registers fn to be called when playback reaches the end.
	OnNaturalEnd(fn func(index int))
}

// RateHandle is a Handle with a continuous playback-rate primitive.
// Only directly controlled units implement it.
type RateHandle interface {
	Handle
	PlaybackRate() float64
	SetPlaybackRate(rate float64)
}

// Initializer is implemented by units that need time before accepting control calls.
type Initializer interface {
	Initialized() bool
}

// Loader is implemented by units that can re-bind their slot to a new source.
type Loader interface {
	Load(ref string)
}

// Primer is implemented by units with a kind-specific buffering protocol.
// Prime must return immediately and call ready once the unit can play without stalling.
// Once ctx is done the unit must neither call ready nor touch its own playback.
type Primer interface {
	Prime(ctx context.Context, ready func())
}

// IsInitialized reports whether h accepts control calls.
// Units without an initialisation phase are always initialised.
func IsInitialized(h Handle) bool {
	if in, ok := h.(Initializer); ok {
		return in.Initialized()
	}
	return true
}

// Set is an ordered, fixed sequence of handles. Index 0 is the master.
type Set struct {
	kind    source.Kind
	handles []Handle
}

// NewSet validates and wraps handles. Every handle must be bound to the slot
// matching its position and all handles must be of the same kind.
func NewSet(handles []Handle) (*Set, error) {
	if len(handles) == 0 {
		return nil, ErrEmptySet
	}

	kind := handles[0].Kind()
	for i, h := range handles {
		if h == nil || h.Index() != i {
			return nil, errors.Wrapf(ErrSlotMismatch, "slot %d", i)
		}
		if h.Kind() != kind {
			return nil, errors.Wrapf(ErrMixedKinds, "slot %d is %s, master is %s", i, h.Kind(), kind)
		}
	}

	cp := make([]Handle, len(handles))
	copy(cp, handles)
	return &Set{kind: kind, handles: cp}, nil
}

// Kind returns the kind shared by every handle.
func (s *Set) Kind() source.Kind {
	return s.kind
}

// Len returns the number of tiles.
func (s *Set) Len() int {
	return len(s.handles)
}

// Master returns the reference clock handle.
func (s *Set) Master() Handle {
	return s.handles[0]
}

// At returns the handle bound to slot i.
func (s *Set) At(i int) Handle {
	return s.handles[i]
}

// All returns a copy of the handles in slot order.
func (s *Set) All() []Handle {
	cp := make([]Handle, len(s.handles))
	copy(cp, s.handles)
	return cp
}

// RateHandles returns the handles as RateHandles.
// Fails if any handle lacks a continuous-rate primitive.
func (s *Set) RateHandles() ([]RateHandle, error) {
	out := make([]RateHandle, len(s.handles))
	for i, h := range s.handles {
		rh, ok := h.(RateHandle)
		if !ok {
			return nil, errors.Wrapf(ErrNoRateControl, "slot %d", i)
		}
		out[i] = rh
	}
	return out, nil
}

// PlayAll issues Play to every initialised handle.
// Returns the number of handles that received the call.
func (s *Set) PlayAll() int {
	return s.each(Handle.Play)
}

// PauseAll issues Pause to every initialised handle.
func (s *Set) PauseAll() int {
	return s.each(Handle.Pause)
}

// SeekAll seeks every initialised handle to seconds.
func (s *Set) SeekAll(seconds float64) int {
	return s.each(func(h Handle) { h.Seek(seconds) })
}

// SetMuted mutes or unmutes every initialised handle.
func (s *Set) SetMuted(muted bool) int {
	if muted {
		return s.each(Handle.Mute)
	}
	return s.each(Handle.Unmute)
}

// LoadAll re-binds every loadable handle to ref.
func (s *Set) LoadAll(ref string) int {
	n := 0
	for _, h := range s.handles {
		if l, ok := h.(Loader); ok {
			l.Load(ref)
			n++
		}
	}
	return n
}

func (s *Set) each(fn func(Handle)) int {
	n := 0
	for _, h := range s.handles {
		// Units still initialising ignore control calls.
		if !IsInitialized(h) {
			continue
		}
		fn(h)
		n++
	}
	return n
}
