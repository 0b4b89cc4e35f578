package drift

import (
	"math"
	"time"

	"github.com/osa030/videowall/internal/domain/tile"
)

// RateEngineName labels the continuous-rate engine in logs and metrics.
const RateEngineName = "rate"

// RateConfig holds continuous-rate engine thresholds.
type RateConfig struct {
	SoftThreshold float64       // Seconds of drift before the rate is nudged
	HardThreshold float64       // Seconds of drift before the slave is snapped
	FastRate      float64       // Rate used to catch up
	SlowRate      float64       // Rate used to fall back
	Interval      time.Duration // Tick period, roughly one display refresh
}

// DefaultRateConfig returns the standard continuous-rate configuration.
func DefaultRateConfig() RateConfig {
	return RateConfig{
		SoftThreshold: 0.04,
		HardThreshold: 0.5,
		FastRate:      1.02,
		SlowRate:      0.98,
		Interval:      16 * time.Millisecond,
	}
}

// RateEngine corrects directly controlled tiles by nudging their playback
// rate, snapping them with a seek only for large discontinuities.
// It runs while playing() holds and sync is enabled, and restores every
// tile to rate 1.0 when it stops.
type RateEngine struct {
	runner

	tiles    []tile.RateHandle
	settings SettingsSource
	playing  func() bool
	config   RateConfig
	recorder Recorder
}

// NewRateEngine creates a continuous-rate engine over tiles. tiles[0] is the master.
func NewRateEngine(tiles []tile.RateHandle, settings SettingsSource, playing func() bool, cfg RateConfig, recorder Recorder) *RateEngine {
	e := &RateEngine{
		tiles:    tiles,
		settings: settings,
		playing:  playing,
		config:   cfg,
		recorder: recorder,
	}
	e.runner = runner{
		name:     RateEngineName,
		interval: cfg.Interval,
		active:   e.shouldRun,
		tick:     e.Tick,
		onExit:   e.resetRates,
	}
	return e
}

// Start begins the loop, or restores rates if the run condition does not hold.
func (e *RateEngine) Start() {
	if !e.start() {
		e.resetRates()
	}
}

// Stop ends the loop. Rates are restored by the exiting loop.
func (e *RateEngine) Stop() {
	e.stop()
}

// Running reports whether the loop is active.
func (e *RateEngine) Running() bool {
	return e.running()
}

// Tick performs one correction pass and returns the corrections applied.
func (e *RateEngine) Tick() []Correction {
	if len(e.tiles) < 2 {
		return nil
	}

	s := e.settings.Current()
	if !s.SyncEnabled {
		return nil
	}

	master := e.tiles[0]
	// No correction while the reference clock itself is stalled.
	if master.Paused() {
		return nil
	}
	masterTime, ok := master.CurrentTime()
	if !ok {
		return nil
	}

	var applied []Correction
	for i := 1; i < len(e.tiles); i++ {
		slave := e.tiles[i]
		slaveTime, ok := slave.CurrentTime()
		if !ok {
			continue
		}

		target := TargetTime(masterTime, s.GapMillis, i)
		drift := slaveTime - target
		c := Correction{Index: i, Drift: drift, Target: target}

		switch abs := math.Abs(drift); {
		case abs > e.config.HardThreshold:
			slave.Seek(target)
			slave.SetPlaybackRate(1.0)
			c.Action = ActionSnap
		case abs > e.config.SoftThreshold:
			rate, action := e.config.FastRate, ActionNudgeFast
			if drift > 0 {
				rate, action = e.config.SlowRate, ActionNudgeSlow
			}
			if slave.PlaybackRate() == rate {
				continue
			}
			slave.SetPlaybackRate(rate)
			c.Action = action
		default:
			if slave.PlaybackRate() == 1.0 {
				continue
			}
			slave.SetPlaybackRate(1.0)
			c.Action = ActionResetRate
		}

		report(RateEngineName, e.recorder, c)
		applied = append(applied, c)
	}
	return applied
}

func (e *RateEngine) shouldRun() bool {
	return e.playing() && e.settings.Current().SyncEnabled
}

func (e *RateEngine) resetRates() {
	for _, t := range e.tiles {
		if t.PlaybackRate() != 1.0 {
			t.SetPlaybackRate(1.0)
		}
	}
}
