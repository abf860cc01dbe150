// Package engineerrors implements the error taxonomy from spec.md §7: a
// distinct exported type per error kind so callers can dispatch on them with
// errors.As instead of string-matching, grounded on the teacher's approach
// of giving every failure mode in internal/autoconfig/errors_and_messages.go
// a named constant rather than an ad-hoc fmt.Errorf.
package engineerrors

import "fmt"

// ConfigError is raised synchronously when a required adapter operation is
// unconfigured at call time. It never reaches the transport.
type ConfigError struct {
	Operation string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("engine: operation %q is not configured on this adapter", e.Operation)
}

// URLTemplateError is raised when a ":name" URL template segment has no
// corresponding parameter. It is raised before any network call.
type URLTemplateError struct {
	Template string
	Name     string
}

func (e *URLTemplateError) Error() string {
	return fmt.Sprintf("engine: missing parameter %q for URL template %q", e.Name, e.Template)
}

// TransportError represents a non-2xx HTTP response, or a response body that
// could not be parsed. It propagates through the adapter and the
// optimistic-rollback machinery and reaches per-store and global OnError.
type TransportError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("engine: transport error calling %s: %s", e.Endpoint, e.Message)
	}
	return fmt.Sprintf("engine: HTTP %d calling %s: %s", e.StatusCode, e.Endpoint, e.Message)
}

// NotFoundError is raised synchronously when patch/delete/update addresses
// an id that is not present in memory. No state changes as a result.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("engine: no record with id %q", e.ID)
}

// ParseError represents a push event body that could not be parsed. Per
// spec.md §7, push adapters log and ignore these; they do not fail a
// consumer promise or stop the stream.
type ParseError struct {
	Event string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("engine: could not parse %q event: %v", e.Event, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// QuotaError represents a failed durable-adapter write. The in-memory state
// remains authoritative; callers only need to log this.
type QuotaError struct {
	Key   string
	Cause error
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("engine: durable write to %q failed: %v", e.Key, e.Cause)
}

func (e *QuotaError) Unwrap() error { return e.Cause }

// Meta carries the context passed to per-store and global OnError hooks
// (spec.md §7 "ErrorMeta { operation, endpoint, params, rollbackData }").
type Meta struct {
	Operation    string
	Endpoint     string
	Params       map[string]interface{}
	RollbackData interface{}
}
