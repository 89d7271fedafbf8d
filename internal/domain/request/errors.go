package request

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownStatus     = errors.New("unknown request status")
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
	ErrNotEditable       = errors.New("request is no longer editable")
	ErrNotEligible       = errors.New("release preconditions failed")
)

// InvalidTransitionError reports an illegal lifecycle move. It unwraps to
// ErrInvalidTransition so callers can branch with errors.Is.
type InvalidTransitionError struct {
	RequestID int64
	From      Status
	Action    Action
}

func (e *InvalidTransitionError) Error() string {
	if e.RequestID != 0 {
		return fmt.Sprintf("request %d: cannot %s from %q", e.RequestID, e.Action, e.From)
	}
	return fmt.Sprintf("cannot %s from %q", e.Action, e.From)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// EligibilityProblem names one request that blocks a release batch.
type EligibilityProblem struct {
	RequestID int64
	Reason    string
}

// NotEligibleError carries every offending id of a refused batch. The batch is
// refused as a whole; no partial attempt is made.
type NotEligibleError struct {
	Problems []EligibilityProblem
}

func (e *NotEligibleError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, fmt.Sprintf("request %d: %s", p.RequestID, p.Reason))
	}
	if len(parts) == 0 {
		return "release batch not eligible"
	}
	return "release batch not eligible: " + strings.Join(parts, "; ")
}

func (e *NotEligibleError) Unwrap() error { return ErrNotEligible }

// OffendingIDs lists the blocked request ids in problem order.
func (e *NotEligibleError) OffendingIDs() []int64 {
	ids := make([]int64, 0, len(e.Problems))
	for _, p := range e.Problems {
		ids = append(ids, p.RequestID)
	}
	return ids
}
