// Package apperr defines the error kinds shared across the platform.
// Kinds are sentinel values, not types: callers wrap them with fmt.Errorf's
// %w verb and unwrap with errors.Is, the same idiom the rest of the pack
// uses for its service-layer sentinel errors.
package apperr

import "errors"

// Kinds map 1:1 onto the error-handling table in the specification.
var (
	// NotFound — a referenced entity does not exist.
	NotFound = errors.New("not_found")
	// Conflict — a uniqueness constraint was violated.
	Conflict = errors.New("conflict")
	// Throttled — admission control rejected a new task.
	Throttled = errors.New("throttled")
	// Validation — request shape, size, or path failed validation.
	Validation = errors.New("validation")
	// Transport — broker/store I/O failed; safe to retry.
	Transport = errors.New("transport")
	// ModelError — the LLM SDK returned an empty or sentinel-error response.
	ModelError = errors.New("model_error")
	// Timeout — an orchestrator poll ceiling elapsed.
	Timeout = errors.New("timeout")
	// Cancelled — the task was cancelled by the caller.
	Cancelled = errors.New("cancelled")
	// ParseError — structured output could not be extracted from model text.
	ParseError = errors.New("parse_error")
	// ArtifactError — an Artifact Store upload/download failed.
	ArtifactError = errors.New("artifact_error")
)

// Is reports whether err ultimately wraps kind. Thin wrapper kept for call
// sites that prefer apperr.Is(err, apperr.NotFound) over importing "errors"
// just for this one check.
func Is(err error, kind error) bool {
	return errors.Is(err, kind)
}
