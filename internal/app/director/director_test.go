package director

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hookCounter struct {
	buffering atomic.Int32
	playAll   atomic.Int32
	pauseAll  atomic.Int32
}

func (h *hookCounter) hooks() Hooks {
	return Hooks{
		OnBuffering: func(uint64) { h.buffering.Add(1) },
		OnPlayAll:   func() { h.playAll.Add(1) },
		OnPauseAll:  func() { h.pauseAll.Add(1) },
	}
}

type recorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recorder) ObserveBarrier(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.outcomes...)
}

func newTestDirector(tiles int, timeout time.Duration) (*Director, *hookCounter, *recorder) {
	h := &hookCounter{}
	rec := &recorder{}
	d := New(Config{TileCount: tiles, BufferTimeout: timeout}, h.hooks(), rec)
	return d, h, rec
}

func TestDirector_InitialState(t *testing.T) {
	d, _, _ := newTestDirector(4, time.Minute)
	defer d.Close()

	assert.Equal(t, StateIdle, d.State())
	ready, expected := d.Progress()
	assert.Equal(t, 0, ready)
	assert.Equal(t, 4, expected)
}

func TestDirector_SignalReadyIgnoredOutsideBuffering(t *testing.T) {
	d, h, _ := newTestDirector(2, time.Minute)
	defer d.Close()

	d.SignalReady(0)
	d.SignalReady(1)
	assert.Equal(t, StateIdle, d.State())
	assert.Equal(t, int32(0), h.playAll.Load())
}

func TestDirector_BarrierResolvesOnce(t *testing.T) {
	orders := map[string][]int{
		"in order":        {0, 1, 2, 3},
		"reverse":         {3, 2, 1, 0},
		"with duplicates": {2, 2, 0, 0, 1, 3, 3, 1},
		"out of range":    {7, -1, 1, 0, 3, 2},
	}

	for name, order := range orders {
		t.Run(name, func(t *testing.T) {
			d, h, rec := newTestDirector(4, time.Minute)
			defer d.Close()

			d.RequestPlay()
			require.Equal(t, StateBuffering, d.State())
			assert.Equal(t, int32(1), h.buffering.Load())

			for _, i := range order {
				d.SignalReady(i)
			}
			// Signals after resolution have no further effect.
			d.SignalReady(0)
			d.SignalReady(3)

			assert.Equal(t, StatePlaying, d.State())
			assert.Equal(t, int32(1), h.playAll.Load())
			assert.Equal(t, []string{OutcomeAllReady}, rec.get())
		})
	}
}

func TestDirector_SingleTile(t *testing.T) {
	d, h, _ := newTestDirector(1, time.Minute)
	defer d.Close()

	d.RequestPlay()
	d.SignalReady(0)
	assert.Equal(t, StatePlaying, d.State())
	assert.Equal(t, int32(1), h.playAll.Load())
}

func TestDirector_ConcurrentSignals(t *testing.T) {
	const tiles = 16
	d, h, _ := newTestDirector(tiles, time.Minute)
	defer d.Close()

	d.RequestPlay()

	var wg sync.WaitGroup
	for round := 0; round < 4; round++ {
		for i := 0; i < tiles; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				d.SignalReady(i)
			}(i)
		}
	}
	wg.Wait()

	assert.Equal(t, StatePlaying, d.State())
	assert.Equal(t, int32(1), h.playAll.Load())
}

func TestDirector_TimeoutForcesPlay(t *testing.T) {
	d, h, rec := newTestDirector(4, 30*time.Millisecond)
	defer d.Close()

	d.RequestPlay()
	d.SignalReady(0)
	d.SignalReady(1)
	d.SignalReady(2)
	assert.Equal(t, StateBuffering, d.State())

	require.Eventually(t, d.Playing, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), h.playAll.Load())
	assert.Equal(t, []string{OutcomeTimeout}, rec.get())

	// The late tile does not resolve anything again.
	d.SignalReady(3)
	assert.Equal(t, int32(1), h.playAll.Load())
}

func TestDirector_ResolvedBarrierCancelsTimer(t *testing.T) {
	d, h, rec := newTestDirector(2, 30*time.Millisecond)
	defer d.Close()

	d.RequestPlay()
	d.SignalReady(0)
	d.SignalReady(1)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(1), h.playAll.Load())
	assert.Equal(t, []string{OutcomeAllReady}, rec.get())
}

func TestDirector_TogglePauseAndResume(t *testing.T) {
	d, h, _ := newTestDirector(2, time.Minute)
	defer d.Close()

	d.RequestPlay()
	d.SignalReady(0)
	d.SignalReady(1)
	require.Equal(t, StatePlaying, d.State())

	d.RequestPlay()
	assert.Equal(t, StatePaused, d.State())
	assert.Equal(t, int32(1), h.pauseAll.Load())
	ready, _ := d.Progress()
	assert.Equal(t, 0, ready)

	// PAUSED never jumps straight to PLAYING.
	d.RequestPlay()
	assert.Equal(t, StateBuffering, d.State())
	assert.Equal(t, int32(2), h.buffering.Load())

	d.SignalReady(1)
	assert.Equal(t, StateBuffering, d.State())
	d.SignalReady(0)
	assert.Equal(t, StatePlaying, d.State())
	assert.Equal(t, int32(2), h.playAll.Load())
}

func TestDirector_RequestPlayWhileBufferingRestartsRound(t *testing.T) {
	d, h, rec := newTestDirector(2, 60*time.Millisecond)
	defer d.Close()

	d.RequestPlay()
	d.SignalReady(0)
	time.Sleep(35 * time.Millisecond)

	d.RequestPlay()
	ready, _ := d.Progress()
	assert.Equal(t, 0, ready)
	assert.Equal(t, StateBuffering, d.State())

	// The first round's timer would have fired by now; only the second one may.
	time.Sleep(35 * time.Millisecond)
	assert.Equal(t, StateBuffering, d.State())

	require.Eventually(t, d.Playing, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), h.playAll.Load())
	assert.Equal(t, []string{OutcomeTimeout}, rec.get())
}

func TestDirector_CloseCancelsTimer(t *testing.T) {
	d, h, _ := newTestDirector(2, 20*time.Millisecond)

	d.RequestPlay()
	d.Close()
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, StateBuffering, d.State())
	assert.Equal(t, int32(0), h.playAll.Load())

	// Closed directors ignore calls.
	d.RequestPlay()
	d.SignalReady(0)
	assert.Equal(t, int32(1), h.buffering.Load())

	_, open := <-d.Events()
	for open {
		_, open = <-d.Events()
	}
	d.Close()
}

func TestDirector_Events(t *testing.T) {
	d, _, _ := newTestDirector(2, time.Minute)
	defer d.Close()

	d.RequestPlay()
	d.SignalReady(1)
	d.SignalReady(0)

	var types []EventType
	for len(d.Events()) > 0 {
		types = append(types, (<-d.Events()).Type)
	}
	assert.Equal(t, []EventType{
		EventStateChanged,
		EventTileReady,
		EventTileReady,
		EventBarrierResolved,
		EventStateChanged,
	}, types)
}

func TestDirector_HooksMayReenter(t *testing.T) {
	var d *Director
	d = New(Config{TileCount: 3, BufferTimeout: time.Minute}, Hooks{
		OnBuffering: func(round uint64) {
			for i := 0; i < 3; i++ {
				d.SignalReadyInRound(round, i)
			}
		},
	}, nil)
	defer d.Close()

	d.RequestPlay()
	assert.Equal(t, StatePlaying, d.State())
}

func TestDirector_StaleRoundReadyIgnored(t *testing.T) {
	var rounds []uint64
	d := New(Config{TileCount: 2, BufferTimeout: time.Minute}, Hooks{
		OnBuffering: func(round uint64) { rounds = append(rounds, round) },
	}, nil)
	defer d.Close()

	d.RequestPlay()
	d.RequestPlay()
	require.Len(t, rounds, 2)
	require.NotEqual(t, rounds[0], rounds[1])

	current, ok := d.BufferingRound()
	require.True(t, ok)
	assert.Equal(t, rounds[1], current)

	// Readiness raised by the first round must not count toward the second.
	d.SignalReadyInRound(rounds[0], 0)
	d.SignalReadyInRound(rounds[0], 1)
	ready, _ := d.Progress()
	assert.Equal(t, 0, ready)
	assert.Equal(t, StateBuffering, d.State())

	d.SignalReadyInRound(rounds[1], 0)
	d.SignalReadyInRound(rounds[1], 1)
	assert.Equal(t, StatePlaying, d.State())

	_, ok = d.BufferingRound()
	assert.False(t, ok)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "IDLE", StateIdle.String())
	assert.Equal(t, "BUFFERING", StateBuffering.String())
	assert.Equal(t, "PLAYING", StatePlaying.String())
	assert.Equal(t, "PAUSED", StatePaused.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}
