package auth

import (
	"errors"
	"fmt"
)

// FlowErrorKind categorizes sign-in flow failures.
type FlowErrorKind string

const (
	// FlowKindProvider indicates the identity provider rejected an operation.
	// The provider message is surfaced to the caller verbatim.
	FlowKindProvider FlowErrorKind = "provider"
	// FlowKindTimeout indicates token materialization did not complete within
	// the polling budget after a federated redirect.
	FlowKindTimeout FlowErrorKind = "timeout"
	// FlowKindProfileSync indicates the backend profile could not be loaded or
	// created; the user is treated as not authenticated until the next sync.
	FlowKindProfileSync FlowErrorKind = "profile_sync"
	// FlowKindRolePatch indicates a pending role could not be applied after
	// sign-in. The flow recovers locally; the user keeps their prior role.
	FlowKindRolePatch FlowErrorKind = "role_patch"
)

// ErrAlreadyProcessing is returned when a callback resume finds a fresh
// processing marker for the same flow and exits without side effects.
var ErrAlreadyProcessing = errors.New("callback already processing")

// FlowError is a sign-in flow failure with a stable kind for callers to
// branch on. It supports errors.Is/errors.As through Unwrap.
type FlowError struct {
	// Kind categorizes the failure.
	Kind FlowErrorKind
	// Message is a human-readable description.
	Message string
	// Cause is the underlying error (optional).
	Cause error
}

// Error implements the error interface.
func (e *FlowError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *FlowError) Unwrap() error {
	return e.Cause
}

// ProviderError creates a provider-kind flow error.
func ProviderError(message string, cause error) *FlowError {
	return &FlowError{Kind: FlowKindProvider, Message: message, Cause: cause}
}

// TimeoutError creates a timeout-kind flow error.
func TimeoutError(message string, cause error) *FlowError {
	return &FlowError{Kind: FlowKindTimeout, Message: message, Cause: cause}
}

// ProfileSyncError creates a profile-sync-kind flow error.
func ProfileSyncError(message string, cause error) *FlowError {
	return &FlowError{Kind: FlowKindProfileSync, Message: message, Cause: cause}
}

// RolePatchError creates a role-patch-kind flow error.
func RolePatchError(message string, cause error) *FlowError {
	return &FlowError{Kind: FlowKindRolePatch, Message: message, Cause: cause}
}

// isKind checks whether an error carries a specific flow error kind.
func isKind(err error, kind FlowErrorKind) bool {
	var fe *FlowError
	return errors.As(err, &fe) && fe.Kind == kind
}

// IsProviderError checks if an error is a provider-kind flow error.
func IsProviderError(err error) bool { return isKind(err, FlowKindProvider) }

// IsTimeoutError checks if an error is a timeout-kind flow error.
func IsTimeoutError(err error) bool { return isKind(err, FlowKindTimeout) }

// IsProfileSyncError checks if an error is a profile-sync-kind flow error.
func IsProfileSyncError(err error) bool { return isKind(err, FlowKindProfileSync) }

// IsRolePatchError checks if an error is a role-patch-kind flow error.
func IsRolePatchError(err error) bool { return isKind(err, FlowKindRolePatch) }

// FlowKind returns the FlowErrorKind from an error, or empty when the error
// is not a FlowError.
func FlowKind(err error) FlowErrorKind {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
