package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"jiragent/internal/domain/fieldconfig"
	domainrequest "jiragent/internal/domain/request"
	"jiragent/internal/errs"
	"jiragent/internal/ports"
)

type AnalyzeRequestInput struct {
	// RequestID selects the stored request to analyze and merge into. Zero
	// runs an ad hoc analysis that persists nothing.
	RequestID   int64
	Description string
	IssueType   string
}

type AnalyzeRequestResult struct {
	IssueType string
	Summary   string
	Values    map[string]fieldconfig.Value
}

// AnalyzeRequest projects the active connection's field configuration into
// the reduced AI schema, runs extraction, and merges the result over the
// request's current field values (AI keys win, manual keys survive). A second
// analysis silently overwrites earlier manual edits for keys it returns;
// that is the documented last-write-wins policy. The request title itself is
// exempt: it is lifted from the extraction only while it is still empty or
// the intake placeholder.
func (s *Service) AnalyzeRequest(ctx context.Context, input AnalyzeRequestInput) (AnalyzeRequestResult, error) {
	if ctx == nil {
		return AnalyzeRequestResult{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return AnalyzeRequestResult{}, errs.Wrap(err, "check context")
	}
	if s.analyzer == nil {
		return AnalyzeRequestResult{}, errors.New("analyzer is not configured")
	}

	conn, err := s.connections.GetActiveJiraConnection(ctx)
	if err != nil {
		return AnalyzeRequestResult{}, err
	}
	cfg, err := fieldconfig.UnmarshalConfig(conn.FieldConfigJSON)
	if err != nil {
		return AnalyzeRequestResult{}, err
	}
	if cfg.IsZero() {
		return AnalyzeRequestResult{}, fmt.Errorf("connection %d: %w", conn.ConnectionID, fieldconfig.ErrMissingUpstreamSchema)
	}

	description := strings.TrimSpace(input.Description)
	issueType := strings.TrimSpace(input.IssueType)

	var target *ports.RequestRecord
	var existing map[string]fieldconfig.Value
	if input.RequestID != 0 {
		loaded, err := s.requests.GetRequest(ctx, input.RequestID)
		if err != nil {
			return AnalyzeRequestResult{}, err
		}
		if description == "" {
			description = loaded.Description
		}
		if loaded.SourceContent != nil {
			existing = loaded.SourceContent.JiraFields
			if issueType == "" {
				issueType = loaded.SourceContent.IssueType
			}
		}
		target = &loaded
	}
	if description == "" {
		return AnalyzeRequestResult{}, errors.New("description is required")
	}
	if issueType == "" {
		// Default to the first configured issue type, mirroring the form.
		issueType = cfg.IssueTypes()[0]
	}

	schema := fieldconfig.ProjectAnalysisSchema(cfg, issueType)
	if schema == nil {
		return AnalyzeRequestResult{}, fmt.Errorf("%q: %w", issueType, fieldconfig.ErrUnknownIssueType)
	}

	extracted, err := s.analyzer.ExtractFields(ctx, description, schema)
	if err != nil {
		return AnalyzeRequestResult{}, errs.Wrap(err, "extract fields")
	}

	merged := fieldconfig.MergeExtraction(existing, extracted)

	result := AnalyzeRequestResult{
		IssueType: issueType,
		Values:    merged,
	}
	if summary, ok := merged["summary"]; ok {
		result.Summary = strings.TrimSpace(summary.String())
	}

	if target == nil {
		return result, nil
	}

	content := domainrequest.SourceContent{
		IssueType:  issueType,
		JiraFields: merged,
	}
	if target.SourceContent != nil {
		content.Extra = target.SourceContent.Extra
	}

	patch := UpdateRequestInput{SourceContent: &content}
	if result.Summary != "" && !hasHumanSummary(target.Summary) {
		summary := result.Summary
		patch.Summary = &summary
	}
	if _, err := s.UpdateRequest(ctx, input.RequestID, patch); err != nil {
		return AnalyzeRequestResult{}, err
	}
	return result, nil
}

// hasHumanSummary reports whether the stored summary was chosen by a person.
// Only an empty or placeholder summary may be lifted from an analysis result.
func hasHumanSummary(summary string) bool {
	trimmed := strings.TrimSpace(summary)
	return trimmed != "" && trimmed != placeholderSummary
}
