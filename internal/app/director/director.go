package director

import (
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/videowall/internal/app/ticker"
)

// DefaultBufferTimeout is the failsafe window after which buffering is
// resolved to playing regardless of how many tiles are ready.
const DefaultBufferTimeout = 5 * time.Second

// Barrier outcomes reported to the Recorder.
const (
	OutcomeAllReady = "all_ready"
	OutcomeTimeout  = "timeout"
)

// Config holds director configuration.
type Config struct {
	TileCount     int           // Number of tiles that must signal ready; values below 1 count as 1
	BufferTimeout time.Duration // Failsafe window; zero means DefaultBufferTimeout
}

// Hooks are the host callbacks. They run outside the director lock, on the
// goroutine that caused the transition (caller or failsafe timer), so they
// may call back into the Director.
type Hooks struct {
	OnBuffering func(round uint64) // Host must start priming every tile for round
	OnPlayAll   func() // Host must issue Play to every tile
	OnPauseAll  func() // Host must issue Pause to every tile
}

// Recorder receives barrier outcomes.
type Recorder interface {
	ObserveBarrier(outcome string, waited time.Duration)
}

// Director owns the playback state and the readiness barrier.
type Director struct {
	mu sync.Mutex

	state    State
	ready    map[int]struct{}
	expected int

	// Buffering round bookkeeping
	round          uint64
	bufferingSince time.Time
	timerCancel    func()

	config   Config
	hooks    Hooks
	recorder Recorder
	eventCh  chan Event
	closed   bool
	now      func() time.Time
}

// New creates a director in the IDLE state.
func New(cfg Config, hooks Hooks, recorder Recorder) *Director {
	if cfg.TileCount < 1 {
		cfg.TileCount = 1
	}
	if cfg.BufferTimeout <= 0 {
		cfg.BufferTimeout = DefaultBufferTimeout
	}
	return &Director{
		state:    StateIdle,
		ready:    make(map[int]struct{}, cfg.TileCount),
		expected: cfg.TileCount,
		config:   cfg,
		hooks:    hooks,
		recorder: recorder,
		eventCh:  make(chan Event, 32),
		now:      time.Now,
	}
}

// Events returns the event channel. It is closed by Close.
func (d *Director) Events() <-chan Event {
	return d.eventCh
}

// State returns the current playback state.
func (d *Director) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Playing reports whether the state is PLAYING.
func (d *Director) Playing() bool {
	return d.State() == StatePlaying
}

// Progress returns how many tiles are ready out of the expected count.
func (d *Director) Progress() (ready, expected int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ready), d.expected
}

// RequestPlay toggles playback. From PLAYING it pauses; from any other state
// it starts a new buffering round. It never issues Play itself.
func (d *Director) RequestPlay() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}

	if d.state == StatePlaying {
		d.cancelTimerLocked()
		d.resetReadyLocked()
		d.setStateLocked(StatePaused)
		hook := d.hooks.OnPauseAll
		d.mu.Unlock()
		if hook != nil {
			hook()
		}
		return
	}

	d.startBufferingLocked()
	round := d.round
	hook := d.hooks.OnBuffering
	d.mu.Unlock()
	if hook != nil {
		hook(round)
	}
}

// BufferingRound returns the current buffering round. ok is false unless
// the director is BUFFERING.
func (d *Director) BufferingRound() (round uint64, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.state != StateBuffering {
		return 0, false
	}
	return d.round, true
}

// SignalReady marks tile index as ready in the current buffering round.
// Ignored unless BUFFERING. Resolves the barrier exactly once when every
// tile is ready.
func (d *Director) SignalReady(index int) {
	d.mu.Lock()
	d.signalReadyLocked(d.round, index)
}

// SignalReadyInRound is SignalReady for a signal raised by round. Signals
// from an earlier round are dropped.
func (d *Director) SignalReadyInRound(round uint64, index int) {
	d.mu.Lock()
	d.signalReadyLocked(round, index)
}

// signalReadyLocked must be called with lock held and releases it.
func (d *Director) signalReadyLocked(round uint64, index int) {
	if d.closed || d.state != StateBuffering {
		d.mu.Unlock()
		return
	}
	if round != d.round {
		d.mu.Unlock()
		zlog.Debug().Msgf("director: ignoring stale ready signal: index=%d round=%d current=%d", index, round, d.round)
		return
	}
	if index < 0 || index >= d.expected {
		d.mu.Unlock()
		zlog.Debug().Msgf("director: ignoring ready signal for unknown tile: index=%d expected=%d", index, d.expected)
		return
	}
	if _, dup := d.ready[index]; dup {
		d.mu.Unlock()
		return
	}

	d.ready[index] = struct{}{}
	n := len(d.ready)
	zlog.Debug().Msgf("director: tile ready: index=%d ready=%d/%d buffering=%d%%", index, n, d.expected, n*100/d.expected)
	d.sendEventLocked(Event{
		Type:     EventTileReady,
		State:    d.state,
		Index:    index,
		Ready:    n,
		Expected: d.expected,
	})

	if n < d.expected {
		d.mu.Unlock()
		return
	}

	d.cancelTimerLocked()
	waited := d.resolveLocked(EventBarrierResolved)
	hook := d.hooks.OnPlayAll
	d.mu.Unlock()

	zlog.Info().Msgf("director: all tiles ready, playing: tiles=%d waited=%v", d.expected, waited)
	d.record(OutcomeAllReady, waited)
	if hook != nil {
		hook()
	}
}

// Close cancels any pending failsafe timer and closes the event channel.
// A closed director ignores every call.
func (d *Director) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.cancelTimerLocked()
	d.closed = true
	close(d.eventCh)
}

// startBufferingLocked begins a new buffering round.
// Must be called with lock held.
func (d *Director) startBufferingLocked() {
	// Never leave two failsafe timers armed.
	d.cancelTimerLocked()
	d.resetReadyLocked()

	d.round++
	round := d.round
	d.bufferingSince = d.now()
	d.setStateLocked(StateBuffering)

	d.timerCancel = ticker.AfterFunc(d.config.BufferTimeout, func() {
		d.onBufferTimeout(round)
	})
}

// onBufferTimeout forces playback if round is still buffering.
func (d *Director) onBufferTimeout(round uint64) {
	d.mu.Lock()
	if d.closed || d.state != StateBuffering || d.round != round {
		d.mu.Unlock()
		return
	}

	d.timerCancel = nil
	ready := len(d.ready)
	waited := d.resolveLocked(EventBarrierTimedOut)
	hook := d.hooks.OnPlayAll
	d.mu.Unlock()

	zlog.Warn().Msgf("director: buffering timed out, forcing play: ready=%d/%d timeout=%v", ready, d.expected, d.config.BufferTimeout)
	d.record(OutcomeTimeout, waited)
	if hook != nil {
		hook()
	}
}

// resolveLocked transitions BUFFERING to PLAYING and returns the buffering duration.
// Must be called with lock held.
func (d *Director) resolveLocked(eventType EventType) time.Duration {
	waited := d.now().Sub(d.bufferingSince)
	d.sendEventLocked(Event{
		Type:     eventType,
		State:    d.state,
		Index:    -1,
		Ready:    len(d.ready),
		Expected: d.expected,
		Waited:   waited,
	})
	d.setStateLocked(StatePlaying)
	return waited
}

func (d *Director) setStateLocked(s State) {
	if d.state == s {
		return
	}
	prev := d.state
	d.state = s
	zlog.Info().Msgf("director: state changed: from=%s to=%s", prev, s)
	d.sendEventLocked(Event{
		Type:     EventStateChanged,
		State:    s,
		Index:    -1,
		Ready:    len(d.ready),
		Expected: d.expected,
	})
}

func (d *Director) resetReadyLocked() {
	d.ready = make(map[int]struct{}, d.expected)
}

func (d *Director) cancelTimerLocked() {
	if d.timerCancel != nil {
		d.timerCancel()
		d.timerCancel = nil
	}
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (d *Director) sendEventLocked(e Event) {
	if d.closed {
		return
	}
	select {
	case d.eventCh <- e:
	default:
		// Channel full, drop event
	}
}

func (d *Director) record(outcome string, waited time.Duration) {
	if d.recorder != nil {
		d.recorder.ObserveBarrier(outcome, waited)
	}
}
