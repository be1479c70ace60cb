package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	UsersRegistered         uint64
	LoginsFailed            uint64
	PasswordResetsRequested uint64

	CreditsCreated uint64
	CreditsUpdated uint64
	CreditsDeleted uint64

	// NotificationsEnqueued and NotificationsProcessed are keyed by outcome label.
	NotificationsEnqueued       map[string]uint64
	NotificationsProcessed      map[string]uint64
	NotificationDurationCount   uint64
	NotificationDurationTotalNs int64
	NotificationQueueDepth      int64
}

// InMemoryRecorder stores metrics in memory. The API serves it on /metrics.
type InMemoryRecorder struct {
	usersRegistered         uint64
	loginsFailed            uint64
	passwordResetsRequested uint64
	creditsCreated          uint64
	creditsUpdated          uint64
	creditsDeleted          uint64
	durationCount           uint64
	durationTotalNs         int64
	queueDepth              int64

	mu        sync.Mutex
	enqueued  map[string]uint64
	processed map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		enqueued:  make(map[string]uint64),
		processed: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	enqueued := make(map[string]uint64, len(m.enqueued))
	for k, v := range m.enqueued {
		enqueued[k] = v
	}
	processed := make(map[string]uint64, len(m.processed))
	for k, v := range m.processed {
		processed[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		UsersRegistered:             atomic.LoadUint64(&m.usersRegistered),
		LoginsFailed:                atomic.LoadUint64(&m.loginsFailed),
		PasswordResetsRequested:     atomic.LoadUint64(&m.passwordResetsRequested),
		CreditsCreated:              atomic.LoadUint64(&m.creditsCreated),
		CreditsUpdated:              atomic.LoadUint64(&m.creditsUpdated),
		CreditsDeleted:              atomic.LoadUint64(&m.creditsDeleted),
		NotificationsEnqueued:       enqueued,
		NotificationsProcessed:      processed,
		NotificationDurationCount:   atomic.LoadUint64(&m.durationCount),
		NotificationDurationTotalNs: atomic.LoadInt64(&m.durationTotalNs),
		NotificationQueueDepth:      atomic.LoadInt64(&m.queueDepth),
	}
}

// IncUserRegistered increments the registration counter.
func (m *InMemoryRecorder) IncUserRegistered() {
	atomic.AddUint64(&m.usersRegistered, 1)
}

// IncLoginFailed increments the failed login counter.
func (m *InMemoryRecorder) IncLoginFailed() {
	atomic.AddUint64(&m.loginsFailed, 1)
}

// IncPasswordResetRequested increments the reset request counter.
func (m *InMemoryRecorder) IncPasswordResetRequested() {
	atomic.AddUint64(&m.passwordResetsRequested, 1)
}

// IncCreditCreated increments credit created counter.
func (m *InMemoryRecorder) IncCreditCreated() {
	atomic.AddUint64(&m.creditsCreated, 1)
}

// IncCreditUpdated increments credit updated counter.
func (m *InMemoryRecorder) IncCreditUpdated() {
	atomic.AddUint64(&m.creditsUpdated, 1)
}

// IncCreditDeleted increments credit deleted counter.
func (m *InMemoryRecorder) IncCreditDeleted() {
	atomic.AddUint64(&m.creditsDeleted, 1)
}

// IncNotificationEnqueued counts an enqueue outcome.
func (m *InMemoryRecorder) IncNotificationEnqueued(status string) {
	m.mu.Lock()
	m.enqueued[status]++
	m.mu.Unlock()
}

// IncNotificationProcessed counts a processing outcome.
func (m *InMemoryRecorder) IncNotificationProcessed(status string) {
	m.mu.Lock()
	m.processed[status]++
	m.mu.Unlock()
}

// ObserveNotificationDuration records how long one job took.
func (m *InMemoryRecorder) ObserveNotificationDuration(duration time.Duration) {
	atomic.AddUint64(&m.durationCount, 1)
	atomic.AddInt64(&m.durationTotalNs, duration.Nanoseconds())
}

// SetNotificationQueueDepth stores the last observed stream length.
func (m *InMemoryRecorder) SetNotificationQueueDepth(depth int64) {
	atomic.StoreInt64(&m.queueDepth, depth)
}
