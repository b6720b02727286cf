package fabrik

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Sentinel errors for common failure conditions across the pipeline.
// These errors can be used with errors.Is() for error checking.
var (
	// ErrTransport indicates an adapter or gateway transport failure
	// (HTTP non-2xx, connection refused, malformed response envelope).
	ErrTransport = errors.New("transport failure")

	// ErrAuthExpired indicates an expired or missing credential. For the
	// ChatGPT session transport this carries an actionable reauth message.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrScenarioTimeout indicates a scenario exceeded its execution deadline.
	ErrScenarioTimeout = errors.New("scenario timed out")

	// ErrInvalidConfig indicates the provided configuration is invalid or incomplete.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrProfileNotFound indicates no persisted agent profile exists at the
	// expected location.
	ErrProfileNotFound = errors.New("agent profile not found")

	// ErrVersionNotFound indicates the trace store has no run recorded under
	// the requested version label.
	ErrVersionNotFound = errors.New("version not found")
)

// Error kinds categorize errors by their type.
const (
	// KindNetwork represents errors related to network operations.
	KindNetwork = "network"

	// KindAuth represents errors related to credentials or authorization.
	KindAuth = "auth"

	// KindTimeout represents errors related to operation timeouts.
	KindTimeout = "timeout"

	// KindValidation represents errors related to input validation.
	KindValidation = "validation"

	// KindExecution represents errors that occur during scenario execution.
	KindExecution = "execution"

	// KindConfiguration represents errors related to configuration.
	KindConfiguration = "configuration"

	// KindStorage represents errors from the trace store.
	KindStorage = "storage"

	// KindInternal represents internal errors.
	KindInternal = "internal"
)

// Error is a structured error type that wraps underlying errors with
// additional context about the operation that failed and the category
// of error.
//
// Error implements the error interface and supports error unwrapping,
// making it compatible with errors.Is() and errors.As().
//
// Example usage:
//
//	err := &fabrik.Error{
//		Op:   "HTTPAdapter.Send",
//		Kind: fabrik.KindNetwork,
//		Err:  fabrik.ErrTransport,
//	}
type Error struct {
	// Op is the operation that failed (e.g., "Gateway.Generate", "Store.SaveRun").
	Op string

	// Kind categorizes the error (e.g., KindNetwork, KindAuth).
	Kind string

	// Err is the underlying error that caused this error.
	Err error

	// Context provides additional context about the error (optional).
	// This can include endpoint URLs, status codes, or other debugging
	// information.
	Context map[string]any
}

// Error implements the error interface, returning a formatted message that
// includes the operation, kind, and underlying error.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fabrik: %s: %s", e.Op, e.Kind)
	}

	if len(e.Context) > 0 {
		return fmt.Sprintf("fabrik: %s (%s): %v [context: %+v]", e.Op, e.Kind, e.Err, e.Context)
	}

	return fmt.Sprintf("fabrik: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error, allowing errors.Is() and errors.As()
// to work correctly with wrapped errors.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error matching for Error, allowing comparison based on the
// underlying error or on Kind/Op of another *Error.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	if t, ok := target.(*Error); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			if t.Op == "" || e.Op == t.Op {
				return true
			}
		}
	}

	return errors.Is(e.Err, target)
}

// WithContext returns a new Error with the provided context added.
//
// Example:
//
//	err = err.WithContext(map[string]any{
//		"url":    endpoint,
//		"status": resp.StatusCode,
//	})
func (e *Error) WithContext(ctx map[string]any) *Error {
	newErr := *e
	newErr.Context = make(map[string]any, len(e.Context)+len(ctx))
	for k, v := range e.Context {
		newErr.Context[k] = v
	}
	for k, v := range ctx {
		newErr.Context[k] = v
	}
	return &newErr
}

// NewNetworkError creates a new Error with KindNetwork.
func NewNetworkError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindNetwork, Err: err}
}

// NewAuthError creates a new Error with KindAuth.
func NewAuthError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindAuth, Err: err}
}

// NewTimeoutError creates a new Error with KindTimeout.
func NewTimeoutError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindTimeout, Err: err}
}

// NewValidationError creates a new Error with KindValidation.
func NewValidationError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindValidation, Err: err}
}

// NewExecutionError creates a new Error with KindExecution.
func NewExecutionError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindExecution, Err: err}
}

// NewConfigurationError creates a new Error with KindConfiguration.
func NewConfigurationError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindConfiguration, Err: err}
}

// NewStorageError creates a new Error with KindStorage.
func NewStorageError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindStorage, Err: err}
}

// NewInternalError creates a new Error with KindInternal.
func NewInternalError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindInternal, Err: err}
}

// CloseWithLog attempts to close the provided resource and logs any error
// at warning level. This is intended for use in defer statements so cleanup
// errors are not silently ignored.
//
// The name parameter should describe the resource being closed (e.g.,
// "trace store", "response body"). If logger is nil, slog.Default() is used.
//
// Example usage:
//
//	defer fabrik.CloseWithLog(store, logger, "trace store")
func CloseWithLog(closer io.Closer, logger *slog.Logger, name string) {
	if closer == nil {
		return
	}

	if logger == nil {
		logger = slog.Default()
	}

	if err := closer.Close(); err != nil {
		logger.Warn("failed to close resource",
			"resource", name,
			"error", err)
	}
}
