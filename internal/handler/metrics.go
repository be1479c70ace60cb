package handler

import (
	"bufio"
	"fmt"
	"net/http"
	"slices"

	"github.com/credittrack/credittrack/internal/metrics"
)

// MetricsHandler serves the in-memory counters in Prometheus text format.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

type family struct {
	name, kind, help string
	write            func(w *bufio.Writer, name string)
}

func counter(v uint64) func(*bufio.Writer, string) {
	return func(w *bufio.Writer, name string) { fmt.Fprintf(w, "%s %d\n", name, v) }
}

func byStatus(m map[string]uint64) func(*bufio.Writer, string) {
	return func(w *bufio.Writer, name string) {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%s{status=%q} %d\n", name, k, m[k])
		}
	}
}

// Metrics writes every family with its HELP and TYPE lines.
//
// GET /metrics
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	snap := h.snapshotter.Snapshot()

	families := []family{
		{"credittrack_users_registered_total", "counter", "Accounts created.", counter(snap.UsersRegistered)},
		{"credittrack_logins_failed_total", "counter", "Rejected login attempts.", counter(snap.LoginsFailed)},
		{"credittrack_password_resets_requested_total", "counter", "Reset e-mails sent.", counter(snap.PasswordResetsRequested)},
		{"credittrack_credits_created_total", "counter", "Credits created.", counter(snap.CreditsCreated)},
		{"credittrack_credits_updated_total", "counter", "Credits updated.", counter(snap.CreditsUpdated)},
		{"credittrack_credits_deleted_total", "counter", "Credits deleted.", counter(snap.CreditsDeleted)},
		{"credittrack_notifications_enqueued_total", "counter", "Notification enqueue attempts by outcome.", byStatus(snap.NotificationsEnqueued)},
		{"credittrack_notifications_processed_total", "counter", "Notification jobs handled by outcome.", byStatus(snap.NotificationsProcessed)},
		{"credittrack_notification_send_duration_seconds", "summary", "Time spent sending notification e-mails.", func(w *bufio.Writer, name string) {
			fmt.Fprintf(w, "%s_count %d\n", name, snap.NotificationDurationCount)
			fmt.Fprintf(w, "%s_sum %.6f\n", name, float64(snap.NotificationDurationTotalNs)/1e9)
		}},
		{"credittrack_notification_queue_depth", "gauge", "Pending plus unread notification jobs.", func(w *bufio.Writer, name string) {
			fmt.Fprintf(w, "%s %d\n", name, snap.NotificationQueueDepth)
		}},
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	bw := bufio.NewWriter(w)
	for _, f := range families {
		fmt.Fprintf(bw, "# HELP %s %s\n# TYPE %s %s\n", f.name, f.help, f.name, f.kind)
		f.write(bw, f.name)
	}
	_ = bw.Flush()
}
