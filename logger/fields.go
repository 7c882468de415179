package logger

// Standard field names for consistent structured logging across the
// provisioner. Use these constants instead of raw strings so log lines
// stay greppable by key.
const (
	// FieldSymbol carries the log-line symbol (꩜, ✿, ❀, ⊔, ⌗); the console
	// encoder renders it as the line's leading glyph.
	FieldSymbol = "symbol"

	// Job engine
	FieldJobID    = "job_id"
	FieldStoreID  = "store_id"
	FieldAction   = "action"
	FieldAttempt  = "attempt"
	FieldWorkerID = "worker_id"

	// Shared
	FieldError = "error"
	FieldCount = "count"
)
