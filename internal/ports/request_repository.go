package ports

import (
	"context"
	"errors"

	domainrequest "jiragent/internal/domain/request"
)

var ErrRequestNotFound = errors.New("request not found")

type RequestFilter struct {
	Status string
}

type RequestRecord struct {
	RequestID          int64
	Summary            string
	Description        string
	Status             string
	SourceTag          string
	SourceContent      *domainrequest.SourceContent
	AcceptanceCriteria string
	Requestor          string
	Assignee           string
	BusinessUnit       string
	Tags               []string
	JiraIssueKey       string
	ReleasedAt         string
	CreatedAt          string
	UpdatedAt          string
}

// RequestPatch carries partial updates; nil means "leave untouched". Status,
// issue key and release timestamp are deliberately absent; those move only
// through the lifecycle setters below.
type RequestPatch struct {
	Summary            *string
	Description        *string
	SourceContent      *domainrequest.SourceContent
	AcceptanceCriteria *string
	Requestor          *string
	Assignee           *string
	BusinessUnit       *string
	Tags               *[]string
}

type RequestReadRepository interface {
	ListRequests(ctx context.Context, filter RequestFilter) ([]RequestRecord, error)
	GetRequest(ctx context.Context, requestID int64) (RequestRecord, error)
	// GetRequestsByID returns the found subset; absent ids are simply missing
	// from the result map.
	GetRequestsByID(ctx context.Context, requestIDs []int64) (map[int64]RequestRecord, error)
}

type RequestRepository interface {
	RequestReadRepository
	CreateRequest(ctx context.Context, record RequestRecord) (RequestRecord, error)
	UpdateRequest(ctx context.Context, requestID int64, patch RequestPatch, updatedAt string) error
	SetRequestStatus(ctx context.Context, requestID int64, status string, updatedAt string) error
	// MarkRequestReleased atomically sets status, issue key and release time
	// for one request.
	MarkRequestReleased(ctx context.Context, requestID int64, issueKey string, releasedAt string) error
}
