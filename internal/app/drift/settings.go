// Package drift provides the drift correction engines that keep slave tiles
// aligned with the master tile.
package drift

import (
	"math"
	"sync"
)

// Settings are the live sync values. Engines read them on every tick.
type Settings struct {
	GapMillis   int  // Target stagger between consecutive tile indices; 0 is perfect sync
	SyncEnabled bool // Master switch for corrective action
}

// SettingsSource supplies the current settings.
type SettingsSource interface {
	Current() Settings
}

// LiveSettings is a SettingsSource the host may change at any time.
type LiveSettings struct {
	mu sync.RWMutex
	s  Settings
}

// NewLiveSettings creates live settings with the given initial values.
func NewLiveSettings(s Settings) *LiveSettings {
	return &LiveSettings{s: s}
}

// Current returns the current settings.
func (l *LiveSettings) Current() Settings {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.s
}

// Set replaces the settings.
func (l *LiveSettings) Set(s Settings) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.s = s
}

// SetGap sets the stagger in milliseconds. Negative values are clamped to 0.
func (l *LiveSettings) SetGap(ms int) {
	if ms < 0 {
		ms = 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.s.GapMillis = ms
}

// SetSyncEnabled toggles corrective action.
func (l *LiveSettings) SetSyncEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.s.SyncEnabled = enabled
}

// TargetTime returns where the tile at index should be given the master position.
func TargetTime(masterTime float64, gapMillis, index int) float64 {
	return math.Max(0, masterTime-float64(gapMillis*index)/1000)
}
