package request

import (
	"errors"
	"testing"
)

func TestEvaluateReleaseEligibilityAllApproved(t *testing.T) {
	err := EvaluateReleaseEligibility([]ReleaseCandidate{
		{RequestID: 1, Found: true, Status: StatusApproved},
		{RequestID: 2, Found: true, Status: StatusApproved},
	})
	if err != nil {
		t.Fatalf("EvaluateReleaseEligibility() error = %v", err)
	}
}

func TestEvaluateReleaseEligibilityEmptySelection(t *testing.T) {
	err := EvaluateReleaseEligibility(nil)
	if !errors.Is(err, ErrNotEligible) {
		t.Fatalf("EvaluateReleaseEligibility(nil) error = %v, want ErrNotEligible", err)
	}
}

func TestEvaluateReleaseEligibilityCollectsEveryProblem(t *testing.T) {
	err := EvaluateReleaseEligibility([]ReleaseCandidate{
		{RequestID: 1, Found: true, Status: StatusApproved},
		{RequestID: 2, Found: false},
		{RequestID: 3, Found: true, Status: StatusUnderReview},
		{RequestID: 4, Found: true, Status: StatusReleased, IssueKey: "PROJ-9"},
	})

	var notEligible *NotEligibleError
	if !errors.As(err, &notEligible) {
		t.Fatalf("EvaluateReleaseEligibility() error = %v, want *NotEligibleError", err)
	}

	ids := notEligible.OffendingIDs()
	if len(ids) != 3 || ids[0] != 2 || ids[1] != 3 || ids[2] != 4 {
		t.Fatalf("OffendingIDs() = %v, want [2 3 4]", ids)
	}
	if notEligible.Problems[0].Reason != "not found" {
		t.Fatalf("problem[0] reason = %q", notEligible.Problems[0].Reason)
	}
	if notEligible.Problems[2].Reason != "already released as PROJ-9" {
		t.Fatalf("problem[2] reason = %q", notEligible.Problems[2].Reason)
	}
}

// A released request with a key is reported for the key, not the status.
func TestEvaluateReleaseEligibilityKeyWinsOverStatus(t *testing.T) {
	err := EvaluateReleaseEligibility([]ReleaseCandidate{
		{RequestID: 7, Found: true, Status: StatusReleased, IssueKey: "PROJ-1"},
	})

	var notEligible *NotEligibleError
	if !errors.As(err, &notEligible) {
		t.Fatalf("error = %v, want *NotEligibleError", err)
	}
	if len(notEligible.Problems) != 1 {
		t.Fatalf("problems = %v", notEligible.Problems)
	}
	if notEligible.Problems[0].Reason != "already released as PROJ-1" {
		t.Fatalf("reason = %q", notEligible.Problems[0].Reason)
	}
}
