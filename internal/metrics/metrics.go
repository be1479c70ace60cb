// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Notification outcome labels.
const (
	EnqueueQueued    = "queued"
	EnqueueDuplicate = "duplicate"
	EnqueueFailed    = "failed"

	ProcessSent         = "sent"
	ProcessSkipped      = "skipped"
	ProcessFailed       = "failed"
	ProcessDeadLettered = "dead_lettered"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Account metrics
	IncUserRegistered()
	IncLoginFailed()
	IncPasswordResetRequested()

	// Credit management metrics
	IncCreditCreated()
	IncCreditUpdated()
	IncCreditDeleted()

	// Notification pipeline metrics
	IncNotificationEnqueued(status string)  // queued, duplicate, failed
	IncNotificationProcessed(status string) // sent, skipped, failed, dead_lettered
	ObserveNotificationDuration(duration time.Duration)
	SetNotificationQueueDepth(depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
