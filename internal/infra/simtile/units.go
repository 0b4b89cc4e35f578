package simtile

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/videowall/internal/app/ticker"
	"github.com/osa030/videowall/internal/domain/source"
	"github.com/osa030/videowall/internal/domain/tile"
)

// Direct simulates a directly controlled media element.
type Direct struct {
	*player
}

// NewDirect creates a simulated direct-control unit bound to index.
func NewDirect(index int, cfg unitConfig) *Direct {
	return &Direct{player: newPlayer(index, cfg)}
}

func (d *Direct) Kind() source.Kind {
	return source.KindLocal
}

func (d *Direct) PlaybackRate() float64 {
	return d.playbackRate()
}

func (d *Direct) SetPlaybackRate(rate float64) {
	d.setPlaybackRate(rate)
}

// Prime waits for the element to buffer, like a canplaythrough event.
func (d *Direct) Prime(ctx context.Context, ready func()) {
	ticker.AfterFunc(d.cfg.bufferDelay, func() {
		if ctx.Err() == nil {
			ready()
		}
	})
}

// Remote simulates an iframe-controlled player. Control calls made before
// the player finishes initialising are ignored.
type Remote struct {
	*player
	createdAt time.Time

	// ctl orders control calls against the end of a prime, so a prime whose
	// context is cancelled before Play never pauses the unit afterwards.
	ctl sync.Mutex
}

// NewRemote creates a simulated remote-control unit bound to index.
func NewRemote(index int, cfg unitConfig) *Remote {
	return &Remote{player: newPlayer(index, cfg), createdAt: time.Now()}
}

func (r *Remote) Kind() source.Kind {
	return source.KindRemote
}

// Initialized reports whether the player accepts control calls.
func (r *Remote) Initialized() bool {
	return r.now().Sub(r.createdAt) >= r.cfg.initDelay
}

func (r *Remote) Play() {
	r.ctl.Lock()
	defer r.ctl.Unlock()
	if r.Initialized() {
		r.player.Play()
	}
}

func (r *Remote) Pause() {
	r.ctl.Lock()
	defer r.ctl.Unlock()
	if r.Initialized() {
		r.player.Pause()
	}
}

func (r *Remote) Seek(seconds float64) {
	r.ctl.Lock()
	defer r.ctl.Unlock()
	if r.Initialized() {
		r.player.Seek(seconds)
	}
}

func (r *Remote) CurrentTime() (float64, bool) {
	if !r.Initialized() {
		return 0, false
	}
	return r.player.CurrentTime()
}

// Prime plays the player until it has buffered, then pauses it and seeks
// back to where priming began. A cancelled prime leaves the player alone.
func (r *Remote) Prime(ctx context.Context, ready func()) {
	wait := r.cfg.initDelay - r.now().Sub(r.createdAt)
	if wait < 0 {
		wait = 0
	}
	ticker.AfterFunc(wait, func() {
		r.ctl.Lock()
		if ctx.Err() != nil {
			r.ctl.Unlock()
			return
		}
		start, _ := r.player.CurrentTime()
		r.player.Play()
		r.ctl.Unlock()

		ticker.AfterFunc(r.cfg.bufferDelay, func() {
			r.ctl.Lock()
			if ctx.Err() != nil {
				r.ctl.Unlock()
				return
			}
			r.player.Pause()
			r.player.Seek(start)
			r.ctl.Unlock()
			ready()
		})
	})
}

// Factory builds simulated tile sets.
type Factory struct {
	settings Settings
	rng      *rand.Rand
}

// NewFactory creates a factory from settings.
func NewFactory(settings Settings) *Factory {
	return &Factory{
		settings: settings,
		rng:      rand.New(rand.NewSource(settings.Seed)),
	}
}

// Build creates count units of the given kind, bound to slots 0..count-1.
func (f *Factory) Build(kind source.Kind, count int) ([]tile.Handle, error) {
	if count < 1 {
		return nil, errors.Newf("tile count must be positive, got %d", count)
	}

	handles := make([]tile.Handle, count)
	for i := 0; i < count; i++ {
		cfg := f.unitConfig(kind, i)
		switch kind {
		case source.KindLocal:
			handles[i] = NewDirect(i, cfg)
		case source.KindRemote:
			handles[i] = NewRemote(i, cfg)
		default:
			return nil, errors.Newf("unsupported source kind: %q", kind)
		}
	}
	return handles, nil
}

func (f *Factory) unitConfig(kind source.Kind, index int) unitConfig {
	s := f.settings
	cfg := unitConfig{
		bufferDelay: s.bufferDelay(),
		initDelay:   s.initDelay(),
		duration:    s.DurationSec,
		loop:        kind == source.KindLocal && s.LoopLocal,
	}
	if s.BufferJitterMs > 0 {
		cfg.bufferDelay += time.Duration(f.rng.Intn(s.BufferJitterMs+1)) * time.Millisecond
	}
	// The master keeps a true clock; slaves drift either way.
	if index > 0 && s.MaxSkewPPM > 0 {
		ppm := f.rng.Intn(2*s.MaxSkewPPM+1) - s.MaxSkewPPM
		cfg.skew = float64(ppm) / 1e6
	}
	return cfg
}
