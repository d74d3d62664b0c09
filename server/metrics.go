package server

import "time"

// MetricsCollector is an optional interface for collecting server metrics.
// Implementations should be non-blocking; the server calls them inline from
// the dispatcher and from session goroutines.
//
// The server checks the collector for nil before calling it, so
// implementations don't need to handle nil receivers.
type MetricsCollector interface {
	// RecordCommand records one dispatched command. cmd is the verb name
	// ("LIST", "UNKNOWN", ...), success is false for 4xx/5xx replies.
	RecordCommand(cmd string, success bool, duration time.Duration)

	// RecordTransfer records a completed or aborted data transfer.
	// operation is "LIST" or "RETR".
	RecordTransfer(operation string, bytes int64, duration time.Duration)

	// RecordConnection records the fate of an accepted control connection.
	// reason is one of "accepted", "queue_full", "shutting_down".
	RecordConnection(accepted bool, reason string)

	// RecordAuthentication records a login attempt.
	RecordAuthentication(success bool, user string)

	// RecordWorkers reports the worker pool occupancy after each admission.
	RecordWorkers(active, pending int)
}
