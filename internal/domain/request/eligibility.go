package request

// ReleaseCandidate is the slice of a request the eligibility check needs.
type ReleaseCandidate struct {
	RequestID int64
	Found     bool
	Status    Status
	IssueKey  string
}

// EvaluateReleaseEligibility checks the whole batch before any external call:
// every id must resolve to an Approved request that has never been released.
// A non-nil error is always a *NotEligibleError naming every offending id.
func EvaluateReleaseEligibility(candidates []ReleaseCandidate) error {
	if len(candidates) == 0 {
		return &NotEligibleError{Problems: []EligibilityProblem{{Reason: "empty selection"}}}
	}

	var problems []EligibilityProblem
	for _, c := range candidates {
		switch {
		case !c.Found:
			problems = append(problems, EligibilityProblem{RequestID: c.RequestID, Reason: "not found"})
		case c.IssueKey != "":
			problems = append(problems, EligibilityProblem{RequestID: c.RequestID, Reason: "already released as " + c.IssueKey})
		case c.Status != StatusApproved:
			problems = append(problems, EligibilityProblem{RequestID: c.RequestID, Reason: "status is " + string(c.Status) + ", want " + string(StatusApproved)})
		}
	}

	if len(problems) > 0 {
		return &NotEligibleError{Problems: problems}
	}
	return nil
}
