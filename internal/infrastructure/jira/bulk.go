package jira

import (
	"context"
	"errors"
	"strings"

	"jiragent/internal/ports"
)

type bulkCreateRequest struct {
	IssueUpdates []bulkIssueUpdate `json:"issueUpdates"`
}

type bulkIssueUpdate struct {
	Fields map[string]any `json:"fields"`
}

type bulkCreateResponse struct {
	Issues []struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	} `json:"issues"`
	Errors []struct {
		Status        int `json:"status"`
		ElementErrors struct {
			ErrorMessages []string          `json:"errorMessages"`
			Errors        map[string]string `json:"errors"`
		} `json:"elementErrors"`
		FailedElementNumber int `json:"failedElementNumber"`
	} `json:"errors"`
}

// CreateIssues submits the whole batch in one bulk call. Jira reports
// per-element rejections by index and returns created issues in submission
// order with the rejected elements removed; this reassembles both into
// index-addressed results. A transport or non-2xx failure is returned as an
// error and no per-item result is produced.
func (c *Client) CreateIssues(ctx context.Context, issues []ports.TrackerIssue) ([]ports.TrackerItemResult, error) {
	if len(issues) == 0 {
		return nil, errors.New("no issues to create")
	}

	payload := bulkCreateRequest{IssueUpdates: make([]bulkIssueUpdate, 0, len(issues))}
	for _, issue := range issues {
		payload.IssueUpdates = append(payload.IssueUpdates, bulkIssueUpdate{Fields: issue.Fields})
	}

	var response bulkCreateResponse
	if err := c.post(ctx, "/rest/api/3/issue/bulk", payload, &response); err != nil {
		return nil, err
	}

	failed := make(map[int]string, len(response.Errors))
	for _, e := range response.Errors {
		failed[e.FailedElementNumber] = joinElementErrors(e.ElementErrors.ErrorMessages, e.ElementErrors.Errors)
	}

	results := make([]ports.TrackerItemResult, 0, len(issues))
	created := 0
	for index := range issues {
		if message, ok := failed[index]; ok {
			results = append(results, ports.TrackerItemResult{
				Index:   index,
				Outcome: classifyRejection(message),
				Message: message,
			})
			continue
		}
		if created >= len(response.Issues) {
			// Jira neither created nor rejected this element; leave it out so
			// the coordinator can surface the omission.
			continue
		}
		results = append(results, ports.TrackerItemResult{
			Index:    index,
			Outcome:  ports.TrackerItemReleased,
			IssueKey: response.Issues[created].Key,
		})
		created++
	}
	return results, nil
}

// classifyRejection separates "the item already exists over there" from a
// genuine rejection, since the two call for different operator action.
func classifyRejection(message string) ports.TrackerItemOutcome {
	lowered := strings.ToLower(message)
	if strings.Contains(lowered, "already exists") || strings.Contains(lowered, "duplicate") {
		return ports.TrackerItemSkipped
	}
	return ports.TrackerItemFailed
}

func joinElementErrors(messages []string, fieldErrors map[string]string) string {
	parts := make([]string, 0, len(messages)+len(fieldErrors))
	parts = append(parts, messages...)
	for field, msg := range fieldErrors {
		parts = append(parts, field+": "+msg)
	}
	if len(parts) == 0 {
		return "rejected by tracker"
	}
	return strings.Join(parts, "; ")
}
