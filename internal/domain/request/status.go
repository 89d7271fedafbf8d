package request

import "fmt"

// Status is the lifecycle state of an intake request. The values match the
// strings persisted in the store and shown to reviewers.
type Status string

const (
	StatusUnderReview Status = "Under Review"
	StatusApproved    Status = "Approved"
	StatusRejected    Status = "Rejected"
	StatusReleased    Status = "Released"
)

// Action is a lifecycle transition trigger.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionRelease Action = "release"
)

// transitions is the full legal edge set. Rejected and Released are terminal,
// and there is no un-approve: reopening means creating a new request.
var transitions = map[Action]map[Status]Status{
	ActionApprove: {StatusUnderReview: StatusApproved},
	ActionReject:  {StatusUnderReview: StatusRejected},
	ActionRelease: {StatusApproved: StatusReleased},
}

// ParseStatus validates a stored status string.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusUnderReview, StatusApproved, StatusRejected, StatusReleased:
		return Status(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
}

// Editable reports whether a request's attributes may still be patched.
// Rejected and Released requests are frozen; their content is the record of
// what was decided or shipped.
func (s Status) Editable() bool {
	return s == StatusUnderReview || s == StatusApproved
}

// Transition resolves the next status for an action, or an
// InvalidTransitionError when the edge is not in the table. The caller's state
// must remain untouched on error.
func Transition(current Status, action Action) (Status, error) {
	next, ok := transitions[action][current]
	if !ok {
		return "", &InvalidTransitionError{From: current, Action: action}
	}
	return next, nil
}
