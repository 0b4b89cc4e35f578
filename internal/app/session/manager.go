// Package session provides the wall session and the manager that applies
// host policy (queue, admission, kind switching, auto-advance) around it.
package session

import (
	"context"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/videowall/internal/app/admission"
	"github.com/osa030/videowall/internal/app/director"
	"github.com/osa030/videowall/internal/app/drift"
	"github.com/osa030/videowall/internal/app/notification"
	"github.com/osa030/videowall/internal/app/queue"
	"github.com/osa030/videowall/internal/domain/source"
	"github.com/osa030/videowall/internal/domain/tile"
)

var (
	ErrClosed        = errors.New("wall manager is closed")
	ErrNothingLoaded = errors.New("no source loaded")
	ErrQueueEmpty    = errors.New("queue is empty")
	ErrInvalidSource = errors.New("invalid source")
	ErrNoSession     = errors.New("no active session")
)

const outboxSize = 64

// HandleFactory builds count tile handles of kind, bound to slots 0..count-1.
type HandleFactory func(kind source.Kind, count int) ([]tile.Handle, error)

// ManagerRecorder adds kind switch counting to Recorder.
type ManagerRecorder interface {
	Recorder
	ObserveKindSwitch()
}

// Config holds manager configuration.
type Config struct {
	TileCount   int
	InitialKind source.Kind
	Muted       bool
	Sync        drift.Settings
	AutoAdvance bool
	LoopQueue   bool
	Filters     map[string]map[string]any // Enabled admission filters and their settings
	Session     SessionConfig
}

// EnqueueResult is the outcome of an enqueue request.
type EnqueueResult struct {
	Accepted bool
	Code     string
	Item     source.QueueItem
}

// Status is a snapshot of the wall.
type Status struct {
	State         director.State
	Kind          source.Kind
	Loaded        source.Source
	Current       *source.QueueItem
	Queue         []source.QueueItem
	Ready         int
	Expected      int
	Sync          drift.Settings
	Muted         bool
	AutoAdvance   bool
	LoopQueue     bool
	EngineRunning bool
}

// Manager manages the wall session.
type Manager struct {
	mu sync.Mutex

	config   Config
	factory  HandleFactory
	recorder ManagerRecorder

	// Components
	queue        *queue.Queue
	live         *drift.LiveSettings
	filterChain  *admission.Chain
	notification *notification.Manager

	session *Session
	loaded  source.Source

	// Host policy
	muted       bool
	autoAdvance bool
	loopQueue   bool

	outbox chan *notification.Notification
	loops  sync.WaitGroup
	closed bool
	done   chan struct{}
}

// NewManager creates a manager and activates a session of the initial kind.
func NewManager(cfg Config, factory HandleFactory, recorder ManagerRecorder) (*Manager, error) {
	if cfg.TileCount < 1 {
		return nil, errors.Newf("tile count must be positive, got %d", cfg.TileCount)
	}
	if _, ok := source.ParseKind(string(cfg.InitialKind)); !ok {
		return nil, errors.Wrapf(ErrInvalidSource, "initial kind %q", cfg.InitialKind)
	}

	m := &Manager{
		config:       cfg,
		factory:      factory,
		recorder:     recorder,
		queue:        queue.New(),
		live:         drift.NewLiveSettings(cfg.Sync),
		filterChain:  admission.NewChain(),
		notification: notification.NewManager(),
		muted:        cfg.Muted,
		autoAdvance:  cfg.AutoAdvance,
		loopQueue:    cfg.LoopQueue,
		outbox:       make(chan *notification.Notification, outboxSize),
		done:         make(chan struct{}),
	}

	if err := m.setupFilters(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	err := m.activateLocked(cfg.InitialKind)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	go m.dispatchLoop()
	return m, nil
}

// setupFilters initializes the admission chain from the enabled filters.
func (m *Manager) setupFilters() error {
	names := make([]string, 0, len(m.config.Filters))
	for name := range m.config.Filters {
		names = append(names, name)
	}
	sort.Strings(names)

	registry := admission.GetRegistered()
	deps := admission.Deps{Queue: m.queue}
	for _, name := range names {
		factory, ok := registry[name]
		if !ok {
			return errors.Newf("unknown admission filter %q", name)
		}
		f := factory(deps)
		if err := f.ValidateConfig(m.config.Filters[name]); err != nil {
			return errors.Wrapf(err, "invalid %s settings", name)
		}
		m.filterChain.Add(f)
	}

	for _, f := range m.filterChain.Filters() {
		zlog.Info().Msgf("session: admission filter enabled: name=%s codes=%v", f.Name(), f.ReturnCodes())
	}
	return nil
}

// Done returns a channel that is closed when the manager is closed.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// GetNotificationManager returns the notification manager.
func (m *Manager) GetNotificationManager() *notification.Manager {
	return m.notification
}

// TogglePlay pauses or resumes the wall. With nothing loaded it starts the
// queue instead.
func (m *Manager) TogglePlay() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.sessionLocked()
	if err != nil {
		return err
	}
	if m.loaded.IsZero() {
		if err := m.advanceLocked(); err != nil {
			if errors.Is(err, ErrQueueEmpty) {
				return ErrNothingLoaded
			}
			return err
		}
		return nil
	}

	sess.TogglePlay()
	return nil
}

// Load loads src onto every tile and starts buffering it. A source of the
// other kind tears the session down and builds a new one.
func (m *Manager) Load(src source.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	src, err := normalizeSource(src)
	if err != nil {
		return err
	}

	m.queue.ClearCurrent()
	if err := m.loadLocked(src); err != nil {
		return err
	}
	m.notifyQueueLocked()
	return nil
}

// PlayNext loads the next queued source.
func (m *Manager) PlayNext() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	return m.advanceLocked()
}

// Enqueue admits src through the filter chain and appends it to the queue.
// With auto-advance on, an idle wall with nothing loaded starts playing
// from the queue.
func (m *Manager) Enqueue(ctx context.Context, src source.Source) (EnqueueResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return EnqueueResult{}, ErrClosed
	}
	kind, ok := source.ParseKind(string(src.Kind))
	if !ok {
		return EnqueueResult{Code: "invalid_kind"}, nil
	}
	src.Kind = kind
	if src.Ref == "" {
		return EnqueueResult{Code: "invalid_ref"}, nil
	}

	result := m.filterChain.Execute(ctx, src)
	if !result.Accepted {
		zlog.Info().Msgf("session: enqueue rejected: kind=%s ref=%s code=%s", src.Kind, src.Ref, result.Code)
		return EnqueueResult{Code: result.Code}, nil
	}

	item, ok := m.queue.Enqueue(src)
	if !ok {
		zlog.Info().Msgf("session: enqueue rejected: kind=%s ref=%s code=%s", src.Kind, src.Ref, admission.CodeQueueFull)
		return EnqueueResult{Code: admission.CodeQueueFull}, nil
	}
	zlog.Info().Msgf("session: enqueued: id=%s kind=%s ref=%s size=%d", item.ID, src.Kind, src.Ref, m.queue.Len())
	m.notifyQueueLocked()

	if m.autoAdvance && m.loaded.IsZero() && m.session != nil && m.session.State() == director.StateIdle {
		if err := m.advanceLocked(); err != nil {
			zlog.Warn().Err(err).Msg("session: failed to start queue after enqueue")
		}
	}

	return EnqueueResult{Accepted: true, Item: item}, nil
}

// Remove deletes a queued item.
func (m *Manager) Remove(id string) {
	m.editQueue(func(q *queue.Queue) { q.Remove(id) })
}

// MoveUp moves a queued item one position towards the head.
func (m *Manager) MoveUp(id string) {
	m.editQueue(func(q *queue.Queue) { q.MoveUp(id) })
}

// MoveDown moves a queued item one position towards the tail.
func (m *Manager) MoveDown(id string) {
	m.editQueue(func(q *queue.Queue) { q.MoveDown(id) })
}

// Reorder moves the item at from to position to.
func (m *Manager) Reorder(from, to int) {
	m.editQueue(func(q *queue.Queue) { q.Reorder(from, to) })
}

// SetGap sets the per-tile offset in milliseconds. Negative values clamp to 0.
func (m *Manager) SetGap(ms int) {
	m.live.SetGap(ms)
	zlog.Info().Msgf("session: gap changed: gap_ms=%d", m.live.Current().GapMillis)
}

// SetSyncEnabled enables or disables drift correction. Re-enabling while
// playing restarts the drift loop.
func (m *Manager) SetSyncEnabled(enabled bool) {
	m.live.SetSyncEnabled(enabled)
	zlog.Info().Msgf("session: sync changed: enabled=%t", enabled)

	if !enabled {
		return
	}
	m.mu.Lock()
	sess := m.session
	m.mu.Unlock()
	if sess != nil {
		sess.ResumeSync()
	}
}

// SetMuted mutes or unmutes every tile. The setting carries over to new sessions.
func (m *Manager) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.muted = muted
	if m.session != nil {
		m.session.SetMuted(muted)
	}
}

// SetAutoAdvance sets whether a natural end loads the next queued source.
func (m *Manager) SetAutoAdvance(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoAdvance = enabled
}

// SetLoopQueue sets whether advanced sources go back to the tail of the queue.
func (m *Manager) SetLoopQueue(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loopQueue = enabled
}

// GetStatus returns the current wall status.
func (m *Manager) GetStatus() *Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := &Status{
		State:       director.StateIdle,
		Kind:        m.config.InitialKind,
		Loaded:      m.loaded,
		Queue:       m.queue.Items(),
		Sync:        m.live.Current(),
		Muted:       m.muted,
		AutoAdvance: m.autoAdvance,
		LoopQueue:   m.loopQueue,
	}
	if item, ok := m.queue.CurrentlyPlaying(); ok {
		st.Current = &item
	}
	if m.session != nil {
		st.State = m.session.State()
		st.Kind = m.session.Kind()
		st.Ready, st.Expected = m.session.Progress()
		st.EngineRunning = m.session.EngineRunning()
	}
	return st
}

// Close tears down the session and stops broadcasting.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.session != nil {
		m.session.Close()
		m.session = nil
	}
	close(m.outbox)
	m.mu.Unlock()

	m.loops.Wait()
	<-m.done
	m.notification.Close()
	zlog.Info().Msg("session: manager closed")
}

func (m *Manager) sessionLocked() (*Session, error) {
	if m.closed {
		return nil, ErrClosed
	}
	if m.session == nil {
		return nil, ErrNoSession
	}
	return m.session, nil
}

func (m *Manager) editQueue(fn func(q *queue.Queue)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	fn(m.queue)
	m.notifyQueueLocked()
}

// advanceLocked loads the next queued source. With loop queue the dequeued
// source goes back to the tail; an empty queue with loop queue replays the
// loaded source from the start.
// Must be called with lock held.
func (m *Manager) advanceLocked() error {
	item, ok := m.queue.DequeueNext()
	if !ok {
		if m.loopQueue && !m.loaded.IsZero() && m.session != nil {
			zlog.Info().Msgf("session: queue empty, looping current source: ref=%s", m.loaded.Ref)
			m.session.Restart()
			return nil
		}
		m.queue.ClearCurrent()
		m.notifyQueueLocked()
		return ErrQueueEmpty
	}

	if m.loopQueue {
		m.queue.Enqueue(item.Source)
	}
	err := m.loadLocked(item.Source)
	m.notifyQueueLocked()
	return err
}

// loadLocked switches kind if needed, then loads src and cues it.
// Must be called with lock held.
func (m *Manager) loadLocked(src source.Source) error {
	if m.session == nil || m.session.Kind() != src.Kind {
		if err := m.switchKindLocked(src.Kind); err != nil {
			return err
		}
	}

	m.session.Load(src.Ref)
	m.loaded = src
	m.notifyLocked(notification.SourceLoaded(src))
	m.session.Cue()
	return nil
}

// switchKindLocked disposes the current session and activates kind.
// Must be called with lock held.
func (m *Manager) switchKindLocked(kind source.Kind) error {
	var prev source.Kind
	if m.session != nil {
		prev = m.session.Kind()
		m.session.Close()
		m.session = nil
	}
	m.loaded = source.Source{}
	zlog.Info().Msgf("session: switching kind: from=%s to=%s", prev, kind)
	if m.recorder != nil {
		m.recorder.ObserveKindSwitch()
	}

	if err := m.activateLocked(kind); err != nil {
		if prev != "" {
			if rerr := m.activateLocked(prev); rerr != nil {
				zlog.Error().Err(rerr).Msgf("session: failed to restore kind: kind=%s", prev)
			}
		}
		return err
	}
	return nil
}

// activateLocked builds tiles of kind and starts a session over them.
// Must be called with lock held.
func (m *Manager) activateLocked(kind source.Kind) error {
	handles, err := m.factory(kind, m.config.TileCount)
	if err != nil {
		return errors.Wrapf(err, "failed to build %s tiles", kind)
	}
	set, err := tile.NewSet(handles)
	if err != nil {
		return errors.Wrapf(err, "invalid %s tiles", kind)
	}
	if set.Kind() != kind {
		return errors.Newf("factory built %s tiles, want %s", set.Kind(), kind)
	}

	sess, err := New(set, m.live, m.config.Session, m.recorder, m.onNaturalEnd)
	if err != nil {
		return err
	}
	sess.SetMuted(m.muted)

	m.session = sess
	m.loops.Add(1)
	go m.eventLoop(sess)
	return nil
}

// onNaturalEnd applies auto-advance when the master tile finishes.
func (m *Manager) onNaturalEnd(sess *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || sess != m.session {
		return
	}
	zlog.Info().Msgf("session: source ended: ref=%s auto_advance=%t loop_queue=%t", m.loaded.Ref, m.autoAdvance, m.loopQueue)
	if !m.autoAdvance {
		return
	}
	if err := m.advanceLocked(); err != nil {
		zlog.Info().Msgf("session: auto-advance stopped: %v", err)
	}
}

// eventLoop turns director events of sess into notifications.
func (m *Manager) eventLoop(sess *Session) {
	defer m.loops.Done()

	for e := range sess.Events() {
		switch e.Type {
		case director.EventStateChanged:
			m.notifyFrom(sess, notification.StateChanged(e.State.String()))
		case director.EventBarrierTimedOut:
			m.notifyFrom(sess, notification.BarrierTimeout(e.Ready, e.Expected))
		}
	}
}

// dispatchLoop broadcasts queued notifications in order.
func (m *Manager) dispatchLoop() {
	defer close(m.done)
	for n := range m.outbox {
		m.notification.Broadcast(n)
	}
}

func (m *Manager) notifyFrom(sess *Session, n *notification.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess != m.session {
		return
	}
	m.notifyLocked(n)
}

func (m *Manager) notifyQueueLocked() {
	var current *source.QueueItem
	if item, ok := m.queue.CurrentlyPlaying(); ok {
		current = &item
	}
	m.notifyLocked(notification.QueueChanged(m.queue.Items(), current))
}

// notifyLocked queues n for broadcast without blocking.
// Must be called with lock held.
func (m *Manager) notifyLocked(n *notification.Notification) {
	if m.closed {
		return
	}
	select {
	case m.outbox <- n:
	default:
		zlog.Warn().Msgf("session: notification dropped: type=%s", n.Type)
	}
}

// normalizeSource checks src and canonicalises its kind.
func normalizeSource(src source.Source) (source.Source, error) {
	kind, ok := source.ParseKind(string(src.Kind))
	if !ok {
		return src, errors.Wrapf(ErrInvalidSource, "unknown kind %q", src.Kind)
	}
	if src.Ref == "" {
		return src, errors.Wrap(ErrInvalidSource, "empty ref")
	}
	src.Kind = kind
	return src, nil
}
