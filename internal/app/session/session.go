package session

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/videowall/internal/app/director"
	"github.com/osa030/videowall/internal/app/drift"
	"github.com/osa030/videowall/internal/domain/source"
	"github.com/osa030/videowall/internal/domain/tile"
)

// Recorder receives barrier outcomes and drift corrections.
type Recorder interface {
	director.Recorder
	drift.Recorder
}

// SessionConfig holds the per-session timing and engine tuning.
type SessionConfig struct {
	BufferTimeout time.Duration
	Rate          drift.RateConfig
	Seek          drift.SeekConfig
}

// Session is one activation of a source kind: a tile set with its director
// and the drift engine matching the kind.
type Session struct {
	mu     sync.Mutex
	closed bool

	set      *tile.Set
	director *director.Director
	engine   drift.Engine
	onEnd    func(*Session)

	// Priming of the current buffering round
	primeRound  uint64
	primeCancel context.CancelFunc
}

// New creates a session over set. LOCAL sets get the continuous-rate engine,
// REMOTE sets the discrete-seek engine. onEnd is called when the master tile
// reaches its natural end.
func New(set *tile.Set, settings drift.SettingsSource, cfg SessionConfig, recorder Recorder, onEnd func(*Session)) (*Session, error) {
	if cfg.Rate == (drift.RateConfig{}) {
		cfg.Rate = drift.DefaultRateConfig()
	}
	if cfg.Seek == (drift.SeekConfig{}) {
		cfg.Seek = drift.DefaultSeekConfig()
	}

	s := &Session{set: set, onEnd: onEnd}
	s.director = director.New(director.Config{
		TileCount:     set.Len(),
		BufferTimeout: cfg.BufferTimeout,
	}, director.Hooks{
		OnBuffering: s.primeAll,
		OnPlayAll:   s.playAll,
		OnPauseAll:  s.pauseAll,
	}, recorder)

	switch set.Kind() {
	case source.KindLocal:
		handles, err := set.RateHandles()
		if err != nil {
			s.director.Close()
			return nil, errors.Wrap(err, "local tiles need rate control")
		}
		s.engine = drift.NewRateEngine(handles, settings, s.director.Playing, cfg.Rate, recorder)
	case source.KindRemote:
		s.engine = drift.NewSeekEngine(set.All(), settings, s.director.Playing, cfg.Seek, recorder)
	default:
		s.director.Close()
		return nil, errors.Newf("unsupported source kind: %q", set.Kind())
	}

	set.Master().OnNaturalEnd(s.masterEnded)
	zlog.Info().Msgf("session: created: kind=%s tiles=%d", set.Kind(), set.Len())
	return s, nil
}

// Kind returns the source kind the session plays.
func (s *Session) Kind() source.Kind {
	return s.set.Kind()
}

// Tiles returns the tile set.
func (s *Session) Tiles() *tile.Set {
	return s.set
}

// State returns the director state.
func (s *Session) State() director.State {
	return s.director.State()
}

// Progress returns the buffering progress of the current round.
func (s *Session) Progress() (ready, expected int) {
	return s.director.Progress()
}

// Events returns the director event channel. It is closed by Close.
func (s *Session) Events() <-chan director.Event {
	return s.director.Events()
}

// EngineRunning reports whether the drift loop is active.
func (s *Session) EngineRunning() bool {
	return s.engine.Running()
}

// TogglePlay pauses when PLAYING, otherwise starts a buffering round.
func (s *Session) TogglePlay() {
	s.director.RequestPlay()
}

// Cue starts a fresh buffering round unless already PLAYING.
func (s *Session) Cue() {
	if s.director.State() != director.StatePlaying {
		s.director.RequestPlay()
	}
}

// Load pauses playback and re-binds every tile to ref.
func (s *Session) Load(ref string) {
	if s.director.State() == director.StatePlaying {
		s.director.RequestPlay()
	}
	n := s.set.LoadAll(ref)
	zlog.Info().Msgf("session: loaded: kind=%s ref=%s tiles=%d", s.Kind(), ref, n)
}

// Restart rewinds every tile and buffers again from the start.
func (s *Session) Restart() {
	if s.director.State() == director.StatePlaying {
		s.director.RequestPlay()
	}
	s.set.SeekAll(0)
	s.director.RequestPlay()
}

// SetMuted mutes or unmutes every tile.
func (s *Session) SetMuted(muted bool) {
	s.set.SetMuted(muted)
}

// ResumeSync restarts the drift loop if playback is running.
func (s *Session) ResumeSync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.director.Playing() {
		return
	}
	s.engine.Start()
}

// Close stops the engine, pauses every tile and closes the director.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	s.set.Master().OnNaturalEnd(nil)
	s.cancelPrimeLocked()
	s.engine.Stop()
	s.director.Close()
	s.set.PauseAll()
	zlog.Info().Msgf("session: closed: kind=%s", s.Kind())
}

// primeAll starts kind-specific buffering on every tile for round. Tiles
// without a priming protocol are ready immediately. Priming left over from
// an earlier round is cancelled, and its readiness is dropped by the director.
func (s *Session) primeAll(round uint64) {
	s.mu.Lock()
	if s.closed || round < s.primeRound {
		s.mu.Unlock()
		return
	}
	if current, ok := s.director.BufferingRound(); !ok || current != round {
		s.mu.Unlock()
		return
	}
	s.cancelPrimeLocked()
	ctx, cancel := context.WithCancel(context.Background())
	s.primeRound = round
	s.primeCancel = cancel
	s.mu.Unlock()

	for _, h := range s.set.All() {
		index := h.Index()
		if p, ok := h.(tile.Primer); ok {
			p.Prime(ctx, func() { s.director.SignalReadyInRound(round, index) })
			continue
		}
		s.director.SignalReadyInRound(round, index)
	}
}

// playAll and pauseAll run after the director released its lock, so each
// acts only if the director still holds the state it was called for.
func (s *Session) playAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.director.State() != director.StatePlaying {
		return
	}
	s.cancelPrimeLocked()
	s.set.PlayAll()
	s.engine.Start()
}

func (s *Session) pauseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.director.State() != director.StatePaused {
		return
	}
	s.engine.Stop()
	s.set.PauseAll()
}

func (s *Session) cancelPrimeLocked() {
	if s.primeCancel != nil {
		s.primeCancel()
		s.primeCancel = nil
	}
}

func (s *Session) masterEnded(int) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	if !closed && s.onEnd != nil {
		s.onEnd(s)
	}
}
