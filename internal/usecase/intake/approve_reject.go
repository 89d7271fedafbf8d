package intake

import (
	"context"
	"errors"

	domainrequest "jiragent/internal/domain/request"
	"jiragent/internal/errs"
	"jiragent/internal/ports"
)

// ApproveRequest moves a request from Under Review to Approved. Field values
// stay editable until release.
func (s *Service) ApproveRequest(ctx context.Context, requestID int64) (ports.RequestRecord, error) {
	if ctx == nil {
		return ports.RequestRecord{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.RequestRecord{}, errs.Wrap(err, "check context")
	}
	return s.transitionStatus(ctx, requestID, domainrequest.ActionApprove)
}

// RejectRequest moves a request from Under Review to Rejected, which is
// terminal. Reopening means creating a new request.
func (s *Service) RejectRequest(ctx context.Context, requestID int64) (ports.RequestRecord, error) {
	if ctx == nil {
		return ports.RequestRecord{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.RequestRecord{}, errs.Wrap(err, "check context")
	}
	return s.transitionStatus(ctx, requestID, domainrequest.ActionReject)
}
