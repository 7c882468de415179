package provisioning

import (
	"github.com/Jainayushgit/store-provisioner/errors"
)

// Admission-time errors. These are synchronous and leave no durable
// state; the HTTP layer maps them to status codes (see server/errors.go).
var (
	ErrRateLimited       = errors.New("rate limited")
	ErrUnsupportedEngine = errors.New("engine not enabled")
	ErrCapacityExhausted = errors.New("active store capacity exhausted")
	ErrNotFound          = errors.New("store not found")
	ErrBadRequest        = errors.New("bad request")
)

// ErrorCode classifies an async failure raised by a job handler.
// NewHandlerError derives Retryable from it, and the engine reads Retryable
// to decide retry vs. immediate failure.
type ErrorCode string

const (
	// ErrExternalCommandFailed covers a package-manager/cluster-CLI
	// invocation returning a non-zero exit or other execution error.
	ErrExternalCommandFailed ErrorCode = "external_command_failed"
	// ErrExternalCommandTimeout covers an invocation exceeding its timeout.
	ErrExternalCommandTimeout ErrorCode = "external_command_timeout"
	// ErrReadinessTimeout covers the HTTP readiness probe expiring. The
	// provision handler recognizes a timeout as *cluster.ReadinessTimeoutError
	// and continues; it does not return this code.
	ErrReadinessTimeout ErrorCode = "readiness_timeout"
	// ErrStoreNotFoundCode covers processJob finding no owning store row;
	// the engine fails the job immediately with no retry.
	ErrStoreNotFoundCode ErrorCode = "store_not_found"
	// ErrUnknownAction covers a job whose Action the engine doesn't
	// recognize — a code bug, not a transient condition.
	ErrUnknownAction ErrorCode = "unknown_action"
)

// HandlerError is the error type job handlers and external
// collaborator adapters return. Retryable drives recordFailure's
// retry-vs-exhaust decision; it is derived from Code but kept explicit so a
// handler can override it for a collaborator-specific condition.
type HandlerError struct {
	Code      ErrorCode
	Retryable bool
	cause     error
}

func (e *HandlerError) Error() string {
	if e.cause != nil {
		return e.cause.Error()
	}
	return string(e.Code)
}

func (e *HandlerError) Unwrap() error { return e.cause }

// NewHandlerError wraps cause with code, deriving retryability: everything
// retries until attempts exhaust except StoreNotFound and UnknownAction,
// which the spec says fail immediately.
func NewHandlerError(code ErrorCode, cause error) *HandlerError {
	retryable := true
	switch code {
	case ErrStoreNotFoundCode, ErrUnknownAction:
		retryable = false
	}
	return &HandlerError{Code: code, Retryable: retryable, cause: cause}
}

// IsHandlerError reports whether err is a *HandlerError and returns it.
func IsHandlerError(err error) (*HandlerError, bool) {
	var he *HandlerError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}
