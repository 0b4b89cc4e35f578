// Package notification fans wall events out to watchers.
package notification

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

const (
	// DefaultSendTimeout bounds a single subscriber send.
	DefaultSendTimeout = 500 * time.Millisecond
	// MaxSendFailures is how many consecutive failed or timed out sends
	// a subscriber survives before it is dropped.
	MaxSendFailures = 3
)

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*Notification) error
}

type subscription struct {
	id       string
	stream   Stream
	failures atomic.Int32
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription

	sequenceNo atomic.Uint64

	sendTimeout time.Duration
	now         func() time.Time
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
		sendTimeout:   DefaultSendTimeout,
		now:           time.Now,
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	sub := &subscription{id: uuid.New().String(), stream: stream}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[sub.id] = sub
	return sub.id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// NextSequenceNo returns the next sequence number.
func (m *Manager) NextSequenceNo() uint64 {
	return m.sequenceNo.Add(1)
}

// Stamp assigns the next sequence number and, if unset, the current time.
func (m *Manager) Stamp(n *Notification) {
	n.SequenceNo = m.NextSequenceNo()
	if n.Time.IsZero() {
		n.Time = m.now()
	}
}

// Broadcast stamps n and delivers it to every subscriber concurrently.
// It returns once each delivery has finished or hit the send timeout.
// Subscribers that keep failing are dropped.
func (m *Manager) Broadcast(n *Notification) {
	m.Stamp(n)

	var (
		wg      sync.WaitGroup
		evictMu sync.Mutex
		evict   []string
	)
	for _, sub := range m.snapshot() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.deliver(sub, n) {
				return
			}
			if sub.failures.Add(1) >= MaxSendFailures {
				evictMu.Lock()
				evict = append(evict, sub.id)
				evictMu.Unlock()
			}
		}()
	}
	wg.Wait()

	for _, id := range evict {
		m.Unsubscribe(id)
		zlog.Info().Msgf("notification: dropped failing subscriber: id=%s failures=%d", id, MaxSendFailures)
	}
}

// deliver sends n to sub and reports whether the send succeeded in time.
// A timed out send keeps running in the background.
func (m *Manager) deliver(sub *subscription, n *Notification) bool {
	result := make(chan error, 1)
	go func() { result <- sub.stream.Send(n) }()

	timer := time.NewTimer(m.sendTimeout)
	defer timer.Stop()

	select {
	case err := <-result:
		if err != nil {
			zlog.Debug().Err(err).Msgf("notification: send failed: id=%s type=%s", sub.id, n.Type)
			return false
		}
		sub.failures.Store(0)
		return true
	case <-timer.C:
		zlog.Debug().Msgf("notification: send timed out: id=%s type=%s timeout=%v", sub.id, n.Type, m.sendTimeout)
		return false
	}
}

func (m *Manager) snapshot() []*subscription {
	m.mu.RLock()
	defer m.mu.RUnlock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	return subs
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
