package intake

import (
	"context"
	"errors"
	"fmt"

	domainrequest "jiragent/internal/domain/request"
	"jiragent/internal/errs"
	"jiragent/internal/ports"
)

// UpdateRequestInput carries a partial edit; nil fields stay untouched.
// Status, issue key and release time are not editable here; the lifecycle
// operations own those.
type UpdateRequestInput struct {
	Summary            *string
	Description        *string
	SourceContent      *domainrequest.SourceContent
	AcceptanceCriteria *string
	Requestor          *string
	Assignee           *string
	BusinessUnit       *string
	Tags               *[]string
}

// UpdateRequest applies a partial edit to an Under Review or Approved
// request. Rejected and Released requests refuse patches with ErrNotEditable.
func (s *Service) UpdateRequest(ctx context.Context, requestID int64, input UpdateRequestInput) (ports.RequestRecord, error) {
	if ctx == nil {
		return ports.RequestRecord{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.RequestRecord{}, errs.Wrap(err, "check context")
	}

	patch := ports.RequestPatch{
		Summary:            input.Summary,
		Description:        input.Description,
		SourceContent:      input.SourceContent,
		AcceptanceCriteria: input.AcceptanceCriteria,
		Requestor:          input.Requestor,
		Assignee:           input.Assignee,
		BusinessUnit:       input.BusinessUnit,
	}
	if input.Tags != nil {
		normalized := normalizeTags(*input.Tags)
		patch.Tags = &normalized
	}

	var updated ports.RequestRecord
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		current, err := s.requests.GetRequest(txCtx, requestID)
		if err != nil {
			return err
		}
		status, err := domainrequest.ParseStatus(current.Status)
		if err != nil {
			return err
		}
		if !status.Editable() {
			return fmt.Errorf("request %d is %s: %w", requestID, status, domainrequest.ErrNotEditable)
		}
		if err := s.requests.UpdateRequest(txCtx, requestID, patch, nowUTCString()); err != nil {
			return err
		}
		updated, err = s.requests.GetRequest(txCtx, requestID)
		return err
	})
	if err != nil {
		return ports.RequestRecord{}, err
	}

	s.dropCacheBestEffort(ctx, dashboardCacheKey)
	return updated, nil
}
