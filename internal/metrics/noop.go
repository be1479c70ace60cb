package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncUserRegistered is a no-op.
func (n *NoopRecorder) IncUserRegistered() {}

// IncLoginFailed is a no-op.
func (n *NoopRecorder) IncLoginFailed() {}

// IncPasswordResetRequested is a no-op.
func (n *NoopRecorder) IncPasswordResetRequested() {}

// IncCreditCreated is a no-op.
func (n *NoopRecorder) IncCreditCreated() {}

// IncCreditUpdated is a no-op.
func (n *NoopRecorder) IncCreditUpdated() {}

// IncCreditDeleted is a no-op.
func (n *NoopRecorder) IncCreditDeleted() {}

// IncNotificationEnqueued is a no-op.
func (n *NoopRecorder) IncNotificationEnqueued(status string) {}

// IncNotificationProcessed is a no-op.
func (n *NoopRecorder) IncNotificationProcessed(status string) {}

// ObserveNotificationDuration is a no-op.
func (n *NoopRecorder) ObserveNotificationDuration(duration time.Duration) {}

// SetNotificationQueueDepth is a no-op.
func (n *NoopRecorder) SetNotificationQueueDepth(depth int64) {}
