// Package tiletest provides in-memory tile handles for tests.
package tiletest

import (
	"context"
	"sync"

	"github.com/osa030/videowall/internal/domain/source"
	"github.com/osa030/videowall/internal/domain/tile"
)

// Fake is a remote-style handle whose clock is set by the test.
// It has no playback rate control.
type Fake struct {
	mu sync.Mutex

	index       int
	kind        source.Kind
	time        float64
	hasTime     bool
	duration    float64
	paused      bool
	muted       bool
	initialized bool
	ref         string
	onEnd       func(int)

	Seeks  []float64
	Plays  int
	Pauses int
	Loads  []string

	// PrimeReady controls what Prime does: when true ready is called
	// synchronously, otherwise the callback is kept for the test to fire.
	PrimeReady bool
	primeFn    func()
	primeCtx   context.Context
}

// NewFake creates an initialised, paused remote fake bound to index.
func NewFake(index int) *Fake {
	return &Fake{
		index:       index,
		kind:        source.KindRemote,
		hasTime:     true,
		duration:    600,
		paused:      true,
		initialized: true,
	}
}

func (f *Fake) Index() int        { return f.index }
func (f *Fake) Kind() source.Kind { return f.kind }

func (f *Fake) Play() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Plays++
	f.paused = false
}

func (f *Fake) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pauses++
	f.paused = true
}

func (f *Fake) Seek(seconds float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Seeks = append(f.Seeks, seconds)
	f.time = seconds
}

func (f *Fake) CurrentTime() (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.time, f.hasTime
}

func (f *Fake) Duration() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duration
}

func (f *Fake) Paused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

func (f *Fake) Mute() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muted = true
}

func (f *Fake) Unmute() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muted = false
}

func (f *Fake) OnNaturalEnd(fn func(int)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onEnd = fn
}

func (f *Fake) Initialized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initialized
}

func (f *Fake) Load(ref string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ref = ref
	f.Loads = append(f.Loads, ref)
	f.time = 0
	f.paused = true
}

func (f *Fake) Prime(ctx context.Context, ready func()) {
	f.mu.Lock()
	immediate := f.PrimeReady
	if !immediate {
		f.primeFn = ready
		f.primeCtx = ctx
	}
	f.mu.Unlock()
	if immediate {
		ready()
	}
}

// FirePrimed calls the pending prime callback, if any. A callback whose
// prime context is done is dropped and reported as not fired.
func (f *Fake) FirePrimed() bool {
	f.mu.Lock()
	fn, ctx := f.primeFn, f.primeCtx
	f.primeFn, f.primeCtx = nil, nil
	f.mu.Unlock()
	if fn == nil || (ctx != nil && ctx.Err() != nil) {
		return false
	}
	fn()
	return true
}

// SetTime sets the reported playback position.
func (f *Fake) SetTime(seconds float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.time = seconds
	f.hasTime = true
}

// ClearTime makes CurrentTime report no numeric value.
func (f *Fake) ClearTime() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hasTime = false
}

// SetPaused sets the paused flag without counting a control call.
func (f *Fake) SetPaused(paused bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = paused
}

// SetInitialized toggles whether the handle accepts control calls.
func (f *Fake) SetInitialized(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initialized = v
}

// Muted reports the mute flag.
func (f *Fake) Muted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.muted
}

// Ref returns the last loaded ref.
func (f *Fake) Ref() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ref
}

// SeekCount returns how many seeks were issued.
func (f *Fake) SeekCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Seeks)
}

// PlayCount returns how many Play calls were issued.
func (f *Fake) PlayCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Plays
}

// PauseCount returns how many Pause calls were issued.
func (f *Fake) PauseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Pauses
}

// End simulates the unit reaching its natural end.
func (f *Fake) End() {
	f.mu.Lock()
	fn := f.onEnd
	f.paused = true
	f.mu.Unlock()
	if fn != nil {
		fn(f.index)
	}
}

// RateFake is a local-style handle with playback rate control.
type RateFake struct {
	*Fake
	rate     float64
	RateSets []float64
}

// NewRateFake creates an initialised, paused local fake bound to index.
func NewRateFake(index int) *RateFake {
	f := NewFake(index)
	f.kind = source.KindLocal
	return &RateFake{Fake: f, rate: 1.0}
}

func (f *RateFake) PlaybackRate() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rate
}

func (f *RateFake) SetPlaybackRate(rate float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rate = rate
	f.RateSets = append(f.RateSets, rate)
}

// RateSetCount returns how many rate changes were issued.
func (f *RateFake) RateSetCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.RateSets)
}

// Fakes builds n remote fakes as handles.
func Fakes(n int) ([]*Fake, []tile.Handle) {
	fakes := make([]*Fake, n)
	handles := make([]tile.Handle, n)
	for i := range fakes {
		fakes[i] = NewFake(i)
		handles[i] = fakes[i]
	}
	return fakes, handles
}

// RateFakes builds n local fakes as handles.
func RateFakes(n int) ([]*RateFake, []tile.Handle) {
	fakes := make([]*RateFake, n)
	handles := make([]tile.Handle, n)
	for i := range fakes {
		fakes[i] = NewRateFake(i)
		handles[i] = fakes[i]
	}
	return fakes, handles
}
