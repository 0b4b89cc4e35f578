package notification

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/videowall/internal/domain/source"
)

type recordingStream struct {
	mu    sync.Mutex
	got   []*Notification
	err   error
	block chan struct{}
}

func (s *recordingStream) Send(n *Notification) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
	return s.err
}

func (s *recordingStream) received() []*Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Notification(nil), s.got...)
}

func TestManager_SubscribeUnsubscribe(t *testing.T) {
	m := NewManager()
	a := m.Subscribe(&recordingStream{})
	b := m.Subscribe(&recordingStream{})
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, m.SubscriberCount())

	m.Unsubscribe(a)
	assert.Equal(t, 1, m.SubscriberCount())

	m.Close()
	assert.Equal(t, 0, m.SubscriberCount())
}

func TestManager_BroadcastSequencesAndStamps(t *testing.T) {
	m := NewManager()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	s1 := &recordingStream{}
	s2 := &recordingStream{err: errors.New("gone")}
	m.Subscribe(s1)
	m.Subscribe(s2)

	m.Broadcast(StateChanged("PLAYING"))
	m.Broadcast(SourceLoaded(source.Source{Kind: source.KindLocal, Ref: "/a.mp4"}))

	got := s1.received()
	require.Len(t, got, 2)
	assert.Equal(t, TypeStateChanged, got[0].Type)
	assert.Equal(t, "PLAYING", got[0].State)
	assert.Equal(t, uint64(1), got[0].SequenceNo)
	assert.Equal(t, fixed, got[0].Time)
	assert.Equal(t, TypeSourceLoaded, got[1].Type)
	assert.Equal(t, uint64(2), got[1].SequenceNo)
	assert.Equal(t, "/a.mp4", got[1].Source.Ref)

	assert.Len(t, s2.received(), 2)
}

func TestManager_BroadcastDoesNotWaitOnSlowSubscriber(t *testing.T) {
	m := NewManager()
	m.sendTimeout = 20 * time.Millisecond

	slow := &recordingStream{block: make(chan struct{})}
	defer close(slow.block)
	fast := &recordingStream{}
	m.Subscribe(slow)
	m.Subscribe(fast)

	start := time.Now()
	m.Broadcast(BarrierTimeout(3, 4))
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	got := fast.received()
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].Ready)
	assert.Equal(t, 4, got[0].Expected)
}

func TestQueueChanged(t *testing.T) {
	items := []source.QueueItem{{ID: "x"}}
	n := QueueChanged(items, nil)
	assert.Equal(t, TypeQueueChanged, n.Type)
	assert.Equal(t, items, n.Queue)
	assert.Nil(t, n.Current)
}

func TestManager_StampContinuesSequence(t *testing.T) {
	m := NewManager()
	m.Broadcast(StateChanged("BUFFERING"))

	n := InitialState("PLAYING", source.Source{}, nil, nil)
	m.Stamp(n)
	assert.Equal(t, uint64(2), n.SequenceNo)
	assert.False(t, n.Time.IsZero())
	assert.Nil(t, n.Source)
	assert.Equal(t, TypeInitialState, n.Type)
}

func TestManager_DropsFailingSubscriber(t *testing.T) {
	m := NewManager()
	failing := &recordingStream{err: errors.New("gone")}
	healthy := &recordingStream{}
	m.Subscribe(failing)
	m.Subscribe(healthy)

	for i := 0; i < MaxSendFailures-1; i++ {
		m.Broadcast(StateChanged("PLAYING"))
	}
	assert.Equal(t, 2, m.SubscriberCount())

	m.Broadcast(StateChanged("PAUSED"))
	assert.Equal(t, 1, m.SubscriberCount())
	assert.Len(t, failing.received(), MaxSendFailures)

	m.Broadcast(StateChanged("PLAYING"))
	assert.Len(t, failing.received(), MaxSendFailures)
	assert.Len(t, healthy.received(), MaxSendFailures+1)
}

func TestManager_SuccessResetsFailures(t *testing.T) {
	m := NewManager()
	flaky := &recordingStream{err: errors.New("hiccup")}
	m.Subscribe(flaky)

	for i := 0; i < 5; i++ {
		flaky.mu.Lock()
		if i%2 == 0 {
			flaky.err = errors.New("hiccup")
		} else {
			flaky.err = nil
		}
		flaky.mu.Unlock()
		m.Broadcast(StateChanged("PLAYING"))
	}
	assert.Equal(t, 1, m.SubscriberCount())
}
