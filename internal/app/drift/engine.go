package drift

import (
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/videowall/internal/app/ticker"
)

// Action names a corrective action applied to a slave tile.
type Action string

const (
	ActionSnap      Action = "snap"       // Seek to target and reset rate
	ActionNudgeSlow Action = "nudge_slow" // Slave ahead, slow down
	ActionNudgeFast Action = "nudge_fast" // Slave behind, speed up
	ActionResetRate Action = "reset_rate" // Back within tolerance
	ActionSeekSoft  Action = "seek_soft"  // Seek past the soft threshold
	ActionSeekHard  Action = "seek_hard"  // Seek past the hard threshold
)

// Correction describes one action applied during a tick.
type Correction struct {
	Index  int
	Drift  float64 // Slave time minus target time, in seconds
	Target float64
	Action Action
}

// Recorder receives applied corrections.
type Recorder interface {
	ObserveCorrection(engine, action string, drift float64)
}

// Engine is a recurring correction process.
type Engine interface {
	// Start begins the loop if its run condition holds. Idempotent.
	Start()
	// Stop ends the loop and waits for it to exit.
	Stop()
	// Running reports whether the loop is active.
	Running() bool
	// Tick performs a single correction pass.
	Tick() []Correction
}

// runner owns the ticking task shared by both engines.
type runner struct {
	mu   sync.Mutex
	task *ticker.Task

	name     string
	interval time.Duration
	active   func() bool
	tick     func() []Correction
	onExit   func()
}

func (r *runner) start() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.task != nil && r.task.Running() {
		return true
	}
	if !r.active() {
		r.task = nil
		return false
	}

	zlog.Debug().Msgf("drift: starting %s engine: interval=%v", r.name, r.interval)
	r.task = ticker.Start(r.interval, func() bool {
		if !r.active() {
			zlog.Debug().Msgf("drift: %s engine run condition cleared, stopping", r.name)
			return false
		}
		r.tick()
		return true
	}, r.onExit)
	return true
}

func (r *runner) stop() {
	r.mu.Lock()
	task := r.task
	r.task = nil
	r.mu.Unlock()

	if task != nil {
		task.Stop()
	}
}

func (r *runner) running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.task != nil && r.task.Running()
}

func report(engine string, rec Recorder, c Correction) {
	zlog.Debug().Msgf("drift: correction: engine=%s tile=%d action=%s drift=%.3f target=%.3f",
		engine, c.Index, c.Action, c.Drift, c.Target)
	if rec != nil {
		rec.ObserveCorrection(engine, string(c.Action), c.Drift)
	}
}
