package simtile

import (
	"math"
	"sync"
	"time"

	"github.com/osa030/videowall/internal/app/ticker"
)

// unitConfig is the per-unit slice of Settings.
type unitConfig struct {
	bufferDelay time.Duration
	initDelay   time.Duration
	skew        float64 // Clock speed error, 0.001 runs 0.1% fast
	duration    float64
	loop        bool
}

// player is the simulated media clock shared by both unit kinds.
type player struct {
	mu sync.Mutex

	index int
	cfg   unitConfig

	pos    float64   // Position at anchor
	anchor time.Time // Wall time pos was taken
	rate   float64
	paused bool
	muted  bool
	ref    string

	onEnd     func(int)
	endCancel func()
	endGen    uint64

	now func() time.Time
}

func newPlayer(index int, cfg unitConfig) *player {
	return &player{
		index:  index,
		cfg:    cfg,
		rate:   1.0,
		paused: true,
		muted:  true,
		anchor: time.Now(),
		now:    time.Now,
	}
}

func (p *player) Index() int {
	return p.index
}

func (p *player) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playLocked()
}

func (p *player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauseLocked()
}

func (p *player) Seek(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seekLocked(seconds)
}

func (p *player) CurrentTime() (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked(p.now()), true
}

func (p *player) Duration() float64 {
	return p.cfg.duration
}

func (p *player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *player) Mute() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted = true
}

func (p *player) Unmute() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted = false
}

// Muted reports the mute flag.
func (p *player) Muted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}

func (p *player) OnNaturalEnd(fn func(int)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onEnd = fn
}

// Load re-binds the unit to ref, rewinding and pausing it.
func (p *player) Load(ref string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ref = ref
	p.pauseLocked()
	p.pos = 0
	p.rate = 1.0
}

// Ref returns the loaded ref.
func (p *player) Ref() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ref
}

func (p *player) playLocked() {
	if !p.paused {
		return
	}
	if !p.cfg.loop && p.pos >= p.cfg.duration {
		p.pos = 0
	}
	p.anchor = p.now()
	p.paused = false
	p.scheduleEndLocked()
}

func (p *player) pauseLocked() {
	p.rebaseLocked()
	p.paused = true
	p.cancelEndLocked()
}

func (p *player) seekLocked(seconds float64) {
	p.pos = math.Min(math.Max(0, seconds), p.cfg.duration)
	p.anchor = p.now()
	p.scheduleEndLocked()
}

func (p *player) playbackRate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

func (p *player) setPlaybackRate(rate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rate <= 0 {
		return
	}
	p.rebaseLocked()
	p.rate = rate
	p.scheduleEndLocked()
}

func (p *player) speedLocked() float64 {
	return p.rate * (1 + p.cfg.skew)
}

func (p *player) positionLocked(now time.Time) float64 {
	if p.paused {
		return p.pos
	}
	pos := p.pos + now.Sub(p.anchor).Seconds()*p.speedLocked()
	if p.cfg.loop {
		return math.Mod(pos, p.cfg.duration)
	}
	return math.Min(pos, p.cfg.duration)
}

func (p *player) rebaseLocked() {
	now := p.now()
	p.pos = p.positionLocked(now)
	p.anchor = now
}

func (p *player) scheduleEndLocked() {
	p.cancelEndLocked()
	if p.paused || p.cfg.loop {
		return
	}

	remaining := (p.cfg.duration - p.pos) / p.speedLocked()
	gen := p.endGen
	p.endCancel = ticker.AfterFunc(time.Duration(remaining*float64(time.Second)), func() {
		p.naturalEnd(gen)
	})
}

func (p *player) cancelEndLocked() {
	p.endGen++
	if p.endCancel != nil {
		p.endCancel()
		p.endCancel = nil
	}
}

func (p *player) naturalEnd(gen uint64) {
	p.mu.Lock()
	if gen != p.endGen || p.paused {
		p.mu.Unlock()
		return
	}
	p.pos = p.cfg.duration
	p.anchor = p.now()
	p.paused = true
	p.endCancel = nil
	fn := p.onEnd
	p.mu.Unlock()

	if fn != nil {
		fn(p.index)
	}
}
