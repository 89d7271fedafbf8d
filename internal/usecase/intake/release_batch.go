package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"jiragent/internal/bootstrap/logging"
	domainrequest "jiragent/internal/domain/request"
	"jiragent/internal/errs"
	"jiragent/internal/ports"
)

type ReleaseBatchInput struct {
	RequestIDs []int64
}

type ReleaseItemOutcome string

const (
	ReleaseItemReleased ReleaseItemOutcome = "released"
	ReleaseItemFailed   ReleaseItemOutcome = "failed"
	ReleaseItemSkipped  ReleaseItemOutcome = "skipped"
	// ReleaseItemMissing marks an id the tracker neither created nor
	// rejected. The request is left untouched and the omission is surfaced
	// instead of guessed at.
	ReleaseItemMissing ReleaseItemOutcome = "missing"
)

type ReleaseItemDetail struct {
	RequestID int64
	Outcome   ReleaseItemOutcome
	IssueKey  string
	Message   string
}

// ReleaseBatchResult is the transient per-batch report. Nonzero Failed or
// Skipped counts are a valid partial outcome, not an error.
type ReleaseBatchResult struct {
	BatchID string
	Total   int
	Success int
	Failed  int
	Skipped int
	Missing int
	Details []ReleaseItemDetail
}

// Reserved field keys the engine composes itself; dynamic values never
// override them.
var reservedIssueFields = map[string]struct{}{
	"summary":     {},
	"description": {},
	"issuetype":   {},
	"project":     {},
}

// ReleaseBatch is the only entry point to the Released state. It verifies
// batch eligibility locally (zero tracker calls on refusal), submits one
// batched create, and reconciles the tracker's heterogeneous per-item
// outcomes into the store.
func (s *Service) ReleaseBatch(ctx context.Context, input ReleaseBatchInput) (ReleaseBatchResult, error) {
	if ctx == nil {
		return ReleaseBatchResult{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ReleaseBatchResult{}, errs.Wrap(err, "check context")
	}

	requestIDs := dedupIDs(input.RequestIDs)

	records, err := s.requests.GetRequestsByID(ctx, requestIDs)
	if err != nil {
		return ReleaseBatchResult{}, err
	}

	candidates := make([]domainrequest.ReleaseCandidate, 0, len(requestIDs))
	for _, id := range requestIDs {
		record, found := records[id]
		candidate := domainrequest.ReleaseCandidate{RequestID: id, Found: found}
		if found {
			candidate.Status = domainrequest.Status(record.Status)
			candidate.IssueKey = record.JiraIssueKey
		}
		candidates = append(candidates, candidate)
	}
	if err := domainrequest.EvaluateReleaseEligibility(candidates); err != nil {
		return ReleaseBatchResult{}, err
	}

	conn, err := s.connections.GetActiveJiraConnection(ctx)
	if err != nil {
		return ReleaseBatchResult{}, err
	}
	if conn.JiraProjectKey == "" {
		return ReleaseBatchResult{}, fmt.Errorf("connection %d: project key is required for release", conn.ConnectionID)
	}
	tracker, err := s.tracker(conn)
	if err != nil {
		return ReleaseBatchResult{}, err
	}

	issues := make([]ports.TrackerIssue, 0, len(requestIDs))
	for _, id := range requestIDs {
		issues = append(issues, buildIssuePayload(records[id], conn.JiraProjectKey))
	}

	batchID := uuid.NewString()
	logCtx := logging.WithAttrs(ctx,
		slog.String("batch_id", batchID),
		slog.Int("batch_size", len(requestIDs)),
	)

	items, err := tracker.CreateIssues(ctx, issues)
	if err != nil {
		// Transport-level failure: outcome unknown, nothing persisted.
		logging.Error(logCtx, "release batch call failed", slog.Any("err", errs.Loggable(err)))
		return ReleaseBatchResult{}, errs.Wrap(err, "release batch")
	}

	return s.reconcileBatch(logCtx, batchID, requestIDs, items)
}

func (s *Service) reconcileBatch(ctx context.Context, batchID string, requestIDs []int64, items []ports.TrackerItemResult) (ReleaseBatchResult, error) {
	byIndex := make(map[int]ports.TrackerItemResult, len(items))
	for _, item := range items {
		if item.Index < 0 || item.Index >= len(requestIDs) {
			logging.Warn(ctx, "tracker reported unknown element index", slog.Int("index", item.Index))
			continue
		}
		byIndex[item.Index] = item
	}

	result := ReleaseBatchResult{
		BatchID: batchID,
		Total:   len(requestIDs),
		Details: make([]ReleaseItemDetail, 0, len(requestIDs)),
	}

	for index, requestID := range requestIDs {
		item, reported := byIndex[index]
		if !reported {
			result.Missing++
			result.Details = append(result.Details, ReleaseItemDetail{
				RequestID: requestID,
				Outcome:   ReleaseItemMissing,
				Message:   "no outcome reported by tracker",
			})
			logging.Warn(ctx, "tracker omitted batch element",
				slog.Int64("request_id", requestID),
			)
			continue
		}

		switch item.Outcome {
		case ports.TrackerItemReleased:
			releasedAt := nowUTCString()
			err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
				return s.requests.MarkRequestReleased(txCtx, requestID, item.IssueKey, releasedAt)
			})
			if err != nil {
				// The issue exists upstream but the local write failed; report
				// it as failed with the key so an operator can reconcile.
				result.Failed++
				result.Details = append(result.Details, ReleaseItemDetail{
					RequestID: requestID,
					Outcome:   ReleaseItemFailed,
					IssueKey:  item.IssueKey,
					Message:   "created upstream but store update failed: " + err.Error(),
				})
				logging.Error(ctx, "release store update failed",
					slog.Int64("request_id", requestID),
					slog.String("issue_key", item.IssueKey),
					slog.Any("err", errs.Loggable(err)),
				)
				continue
			}
			s.setCacheBestEffort(ctx, cacheRequestStatusKey(requestID), string(domainrequest.StatusReleased))
			result.Success++
			result.Details = append(result.Details, ReleaseItemDetail{
				RequestID: requestID,
				Outcome:   ReleaseItemReleased,
				IssueKey:  item.IssueKey,
			})
		case ports.TrackerItemSkipped:
			result.Skipped++
			result.Details = append(result.Details, ReleaseItemDetail{
				RequestID: requestID,
				Outcome:   ReleaseItemSkipped,
				Message:   item.Message,
			})
		default:
			result.Failed++
			result.Details = append(result.Details, ReleaseItemDetail{
				RequestID: requestID,
				Outcome:   ReleaseItemFailed,
				Message:   item.Message,
			})
		}
	}

	if result.Success > 0 {
		s.dropCacheBestEffort(ctx, dashboardCacheKey)
	}

	logging.Info(ctx, "release batch reconciled",
		slog.Int("success", result.Success),
		slog.Int("failed", result.Failed),
		slog.Int("skipped", result.Skipped),
		slog.Int("missing", result.Missing),
	)
	return result, nil
}

func buildIssuePayload(record ports.RequestRecord, projectKey string) ports.TrackerIssue {
	fields := map[string]any{
		"summary":     record.Summary,
		"description": record.Description,
		"project":     map[string]any{"key": projectKey},
	}

	if record.SourceContent != nil {
		if record.SourceContent.IssueType != "" {
			fields["issuetype"] = map[string]any{"name": record.SourceContent.IssueType}
		}
		for key, value := range record.SourceContent.JiraFields {
			if _, reserved := reservedIssueFields[key]; reserved {
				continue
			}
			fields[key] = value
		}
	}
	return ports.TrackerIssue{Fields: fields}
}

func dedupIDs(in []int64) []int64 {
	seen := make(map[int64]struct{}, len(in))
	out := make([]int64, 0, len(in))
	for _, id := range in {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
