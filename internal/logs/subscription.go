package logs

import (
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/charliek/sidecarhost/internal/domain"
)

var subscriptionIDCounter atomic.Uint64

// Subscription is a live feed of output lines
type Subscription struct {
	id     string
	ch     chan domain.OutputLine
	filter *Filter
	closed atomic.Bool
	logger *slog.Logger
}

func newSubscription(filter domain.LineFilter, bufferSize int, logger *slog.Logger) (*Subscription, error) {
	f, err := NewFilter(filter)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Subscription{
		id:     "sub-" + strconv.FormatUint(subscriptionIDCounter.Add(1), 10),
		ch:     make(chan domain.OutputLine, bufferSize),
		filter: f,
		logger: logger,
	}, nil
}

// ID returns the subscription ID
func (s *Subscription) ID() string {
	return s.id
}

// Channel returns the channel for receiving lines
func (s *Subscription) Channel() <-chan domain.OutputLine {
	return s.ch
}

// Send attempts to deliver a line without blocking.
// Returns false if the channel is full or closed.
func (s *Subscription) Send(line domain.OutputLine) bool {
	if s.closed.Load() {
		return false
	}

	if !s.filter.Matches(line) {
		return true // filtered out, but not a failure
	}

	select {
	case s.ch <- line:
		return true
	default:
		s.logger.Debug("subscription channel full, dropping line", "subscription", s.id, "instance", line.Instance)
		return false
	}
}

// Close closes the subscription
func (s *Subscription) Close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.ch)
	}
}

// SubscriptionManager manages multiple subscriptions
type SubscriptionManager struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	bufferSize    int
	logger        *slog.Logger
}

// NewSubscriptionManager creates a new subscription manager
func NewSubscriptionManager(bufferSize int, logger *slog.Logger) *SubscriptionManager {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &SubscriptionManager{
		subscriptions: make(map[string]*Subscription),
		bufferSize:    bufferSize,
		logger:        logger,
	}
}

// Subscribe creates a new subscription
func (m *SubscriptionManager) Subscribe(filter domain.LineFilter) (string, <-chan domain.OutputLine, error) {
	sub, err := newSubscription(filter, m.bufferSize, m.logger)
	if err != nil {
		return "", nil, err
	}

	m.mu.Lock()
	m.subscriptions[sub.id] = sub
	m.mu.Unlock()

	return sub.id, sub.ch, nil
}

// Unsubscribe removes a subscription
func (m *SubscriptionManager) Unsubscribe(id string) {
	m.mu.Lock()
	sub, ok := m.subscriptions[id]
	if ok {
		delete(m.subscriptions, id)
	}
	m.mu.Unlock()

	if ok {
		sub.Close()
	}
}

// Broadcast sends a line to all subscribers
func (m *SubscriptionManager) Broadcast(line domain.OutputLine) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscriptions {
		sub.Send(line)
	}
}

// Count returns the number of active subscriptions
func (m *SubscriptionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close closes all subscriptions
func (m *SubscriptionManager) Close() {
	m.mu.Lock()
	subs := make([]*Subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.subscriptions = make(map[string]*Subscription)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}
