package engine

import (
	"errors"
	"fmt"
)

// FailureKind categorizes replication errors.
type FailureKind string

const (
	// FailureFetch indicates a history or enumeration query failed.
	// Aborts the current bundle identity only; the sweep continues.
	FailureFetch FailureKind = "FETCH_FAILURE"

	// FailureActuation indicates the external promotion actuator reported
	// non-success. Remaining replays for the identity are abandoned; the
	// sweep continues with the next identity.
	FailureActuation FailureKind = "ACTUATION_FAILURE"
)

// ReplayError reports a failure while processing one bundle identity.
type ReplayError struct {
	Kind        FailureKind
	Identity    BundleIdentity
	Environment string // destination stage, for actuation failures
	Err         error
}

func (e *ReplayError) Error() string {
	if e.Environment != "" {
		return fmt.Sprintf("%s: %s -> %s: %v", e.Kind, e.Identity, e.Environment, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Identity, e.Err)
}

func (e *ReplayError) Unwrap() error {
	return e.Err
}

// IsFetchFailure reports whether err is a history/enumeration fetch failure.
func IsFetchFailure(err error) bool {
	var re *ReplayError
	return errors.As(err, &re) && re.Kind == FailureFetch
}

// IsActuationFailure reports whether err is a promotion actuator failure.
func IsActuationFailure(err error) bool {
	var re *ReplayError
	return errors.As(err, &re) && re.Kind == FailureActuation
}

func newFetchError(id BundleIdentity, err error) *ReplayError {
	return &ReplayError{Kind: FailureFetch, Identity: id, Err: err}
}

func newActuationError(id BundleIdentity, environment string, err error) *ReplayError {
	return &ReplayError{Kind: FailureActuation, Identity: id, Environment: environment, Err: err}
}
