package intake

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"jiragent/internal/bootstrap/logging"
	domainrequest "jiragent/internal/domain/request"
	"jiragent/internal/errs"
	"jiragent/internal/ports"
)

const placeholderSummary = "New Request (Processing)"

type CreateRequestInput struct {
	Summary       string
	Description   string
	SourceTag     string
	SourceContent *domainrequest.SourceContent
	Requestor     string
	Tags          []string
}

// CreateRequest persists a new request in Under Review. A missing summary is
// filled by the analyzer when one is wired, with a placeholder fallback so
// intake never blocks on the AI collaborator.
func (s *Service) CreateRequest(ctx context.Context, input CreateRequestInput) (ports.RequestRecord, error) {
	if ctx == nil {
		return ports.RequestRecord{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.RequestRecord{}, errs.Wrap(err, "check context")
	}

	description := strings.TrimSpace(input.Description)
	if description == "" {
		return ports.RequestRecord{}, errors.New("description is required")
	}

	sourceTag := strings.TrimSpace(input.SourceTag)
	if sourceTag == "" {
		sourceTag = "manual"
	}

	summary := strings.TrimSpace(input.Summary)
	if summary == "" {
		summary = s.extractSummary(ctx, description)
	}

	now := nowUTCString()
	var created ports.RequestRecord
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		created, err = s.requests.CreateRequest(txCtx, ports.RequestRecord{
			Summary:       summary,
			Description:   description,
			Status:        string(domainrequest.StatusUnderReview),
			SourceTag:     sourceTag,
			SourceContent: input.SourceContent,
			Requestor:     strings.TrimSpace(input.Requestor),
			Tags:          normalizeTags(input.Tags),
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		return err
	})
	if err != nil {
		return ports.RequestRecord{}, err
	}

	s.setCacheBestEffort(ctx, cacheRequestStatusKey(created.RequestID), created.Status)
	s.dropCacheBestEffort(ctx, dashboardCacheKey)
	return created, nil
}

func (s *Service) extractSummary(ctx context.Context, description string) string {
	if s.analyzer == nil {
		return placeholderSummary
	}

	values, err := s.analyzer.ExtractFields(ctx, description, map[string]string{
		"summary": "Summary (Required)",
	})
	if err != nil {
		logging.Warn(ctx, "summary extraction failed, using placeholder",
			slog.Any("err", errs.Loggable(err)),
		)
		return placeholderSummary
	}

	if value, ok := values["summary"]; ok {
		if summary := strings.TrimSpace(value.String()); summary != "" {
			return summary
		}
	}
	return placeholderSummary
}

func normalizeTags(in []string) []string {
	if len(in) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		tag := strings.TrimSpace(raw)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
