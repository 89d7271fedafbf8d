package ports

import (
	"context"

	"jiragent/internal/domain/fieldconfig"
)

// TrackerCredentials is everything needed to talk to one tracker endpoint.
// The engine treats the token as opaque.
type TrackerCredentials struct {
	BaseURL  string
	Email    string
	APIToken string
}

type TrackerUser struct {
	AccountID    string
	DisplayName  string
	EmailAddress string
}

type TrackerProject struct {
	ID   string
	Key  string
	Name string
}

// TrackerIssue is one ready-to-submit issue payload. Fields is the tracker's
// own field map (summary, description, issuetype, dynamic keys).
type TrackerIssue struct {
	Fields map[string]any
}

type TrackerItemOutcome string

const (
	TrackerItemReleased TrackerItemOutcome = "released"
	TrackerItemFailed   TrackerItemOutcome = "failed"
	TrackerItemSkipped  TrackerItemOutcome = "skipped"
)

// TrackerItemResult reports one element of a batched create. Index refers to
// the position in the submitted slice; the tracker may legally omit indices,
// which the caller must surface as an anomaly rather than guess at.
type TrackerItemResult struct {
	Index    int
	Outcome  TrackerItemOutcome
	IssueKey string
	Message  string
}

// Tracker is the (Jira-shaped) external issue tracker contract. A transport
// or non-2xx failure is returned as an error and means "unknown outcome";
// per-item rejections come back inside the result slice of a completed call.
type Tracker interface {
	Myself(ctx context.Context) (TrackerUser, error)
	ListProjects(ctx context.Context) ([]TrackerProject, error)
	FetchFieldSchema(ctx context.Context, projectKey string) (map[string]fieldconfig.IssueTypeConfig, error)
	CreateIssues(ctx context.Context, issues []TrackerIssue) ([]TrackerItemResult, error)
}

// TrackerFactory builds a tracker client for one connection's credentials.
type TrackerFactory func(creds TrackerCredentials) Tracker
