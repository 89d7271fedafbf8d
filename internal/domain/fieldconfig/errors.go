package fieldconfig

import "errors"

// ErrInvariantViolation is the common ancestor of every overlay rule failure,
// so callers can treat the family uniformly with errors.Is.
var ErrInvariantViolation = errors.New("field configuration invariant violated")

var (
	ErrUnknownIssueType         = wrapInvariant("unknown issue type")
	ErrUnknownField             = wrapInvariant("unknown field key")
	ErrMandatoryFieldExcluded   = wrapInvariant("upstream-mandatory field cannot be excluded")
	ErrRequiredOnExcludedField  = wrapInvariant("excluded field cannot be made required")
	ErrMissingUpstreamSchema    = wrapInvariant("no upstream field schema")
	ErrInvalidFieldValuePayload = errors.New("field value payload is not a supported shape")
)

type invariantError struct{ msg string }

func (e *invariantError) Error() string { return e.msg }
func (e *invariantError) Unwrap() error { return ErrInvariantViolation }

func wrapInvariant(msg string) error { return &invariantError{msg: msg} }
