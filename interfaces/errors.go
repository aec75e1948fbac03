package interfaces

import "fmt"

// ValidationError reports malformed or missing required input. It is the
// caller's fault and is never retried automatically.
type ValidationError struct {
	Field  string
	Reason string
}

// Error returns a human-readable description of the validation failure.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// CryptoError reports that a stored secret could not be decrypted or a
// token could not be produced. A CryptoError during provisioning is fatal
// for the affected step and must never be silently skipped.
type CryptoError struct {
	Op  string
	Err error
}

// Error returns a description of the failed cryptographic operation.
// The underlying cause is included but never any key material.
func (e *CryptoError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("crypto: %s failed", e.Op)
	}
	return fmt.Sprintf("crypto: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *CryptoError) Unwrap() error { return e.Err }

// ExternalToolError reports that an external subsystem call failed or the
// required tooling is absent. Whether it aborts remaining provisioning
// steps depends on the failing step's declared policy.
type ExternalToolError struct {
	Tool string
	Err  error
}

// Error returns a description including the tool name.
func (e *ExternalToolError) Error() string {
	return fmt.Sprintf("%s: %v", e.Tool, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExternalToolError) Unwrap() error { return e.Err }

// ConflictError reports a unique-constraint violation, for example a
// domain that is already requested or provisioned. It is surfaced to the
// caller before any external side effect takes place.
type ConflictError struct {
	Resource string
	Value    string
}

// Error returns a description of the conflicting resource.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Resource, e.Value)
}
