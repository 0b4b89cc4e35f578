package drift

import (
	"math"
	"time"

	"github.com/osa030/videowall/internal/domain/tile"
)

// SeekEngineName labels the discrete-seek engine in logs and metrics.
const SeekEngineName = "seek"

// SeekConfig holds discrete-seek engine thresholds.
type SeekConfig struct {
	SoftThreshold float64       // Seconds of drift tolerated before seeking
	HardThreshold float64       // Seconds of drift treated as a discontinuity
	Interval      time.Duration // Poll period
}

// DefaultSeekConfig returns the standard discrete-seek configuration.
func DefaultSeekConfig() SeekConfig {
	return SeekConfig{
		SoftThreshold: 0.25,
		HardThreshold: 1.0,
		Interval:      100 * time.Millisecond,
	}
}

// SeekEngine corrects remote-controlled tiles by seeking only.
// Tiles are plain Handles: no rate primitive is available to it.
// It runs while playing() holds; cycles are skipped while sync is disabled.
type SeekEngine struct {
	runner

	tiles    []tile.Handle
	settings SettingsSource
	playing  func() bool
	config   SeekConfig
	recorder Recorder
}

// NewSeekEngine creates a discrete-seek engine over tiles. tiles[0] is the master.
func NewSeekEngine(tiles []tile.Handle, settings SettingsSource, playing func() bool, cfg SeekConfig, recorder Recorder) *SeekEngine {
	e := &SeekEngine{
		tiles:    tiles,
		settings: settings,
		playing:  playing,
		config:   cfg,
		recorder: recorder,
	}
	e.runner = runner{
		name:     SeekEngineName,
		interval: cfg.Interval,
		active:   playing,
		tick:     e.Tick,
	}
	return e
}

// Start begins the loop if playing.
func (e *SeekEngine) Start() {
	e.start()
}

// Stop ends the loop.
func (e *SeekEngine) Stop() {
	e.stop()
}

// Running reports whether the loop is active.
func (e *SeekEngine) Running() bool {
	return e.running()
}

// Tick performs one correction pass and returns the corrections applied.
// Fewer than two live tiles, or a master that is not live, skips the cycle.
func (e *SeekEngine) Tick() []Correction {
	s := e.settings.Current()
	if !s.SyncEnabled {
		return nil
	}

	type liveTile struct {
		h    tile.Handle
		time float64
	}
	live := make([]liveTile, 0, len(e.tiles))
	for _, h := range e.tiles {
		if !tile.IsInitialized(h) {
			continue
		}
		if t, ok := h.CurrentTime(); ok {
			live = append(live, liveTile{h: h, time: t})
		}
	}
	if len(live) < 2 || live[0].h.Index() != 0 {
		return nil
	}

	masterTime := live[0].time
	var applied []Correction
	for _, lt := range live[1:] {
		i := lt.h.Index()
		target := TargetTime(masterTime, s.GapMillis, i)
		drift := lt.time - target
		c := Correction{Index: i, Drift: drift, Target: target}

		// Both bands seek today; they stay separate so they can be tuned apart.
		switch abs := math.Abs(drift); {
		case abs > e.config.HardThreshold:
			c.Action = ActionSeekHard
		case abs > e.config.SoftThreshold:
			c.Action = ActionSeekSoft
		default:
			continue
		}

		lt.h.Seek(target)
		report(SeekEngineName, e.recorder, c)
		applied = append(applied, c)
	}
	return applied
}
