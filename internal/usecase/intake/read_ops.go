package intake

import (
	"context"
	"errors"

	"jiragent/internal/errs"
	"jiragent/internal/ports"
)

func (s *Service) ListRequests(ctx context.Context, status string) ([]ports.RequestRecord, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}
	return s.requests.ListRequests(ctx, ports.RequestFilter{Status: status})
}

func (s *Service) GetRequest(ctx context.Context, requestID int64) (ports.RequestRecord, error) {
	if ctx == nil {
		return ports.RequestRecord{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.RequestRecord{}, errs.Wrap(err, "check context")
	}
	return s.requests.GetRequest(ctx, requestID)
}

func (s *Service) ListConnections(ctx context.Context) ([]ports.ConnectionRecord, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}
	return s.connections.ListConnections(ctx)
}

func (s *Service) GetConnection(ctx context.Context, connectionID int64) (ports.ConnectionRecord, error) {
	if ctx == nil {
		return ports.ConnectionRecord{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.ConnectionRecord{}, errs.Wrap(err, "check context")
	}
	return s.connections.GetConnection(ctx, connectionID)
}

// ActiveJiraConnection resolves the connection releases and analyses run
// against, or ports.ErrNoActiveConnection.
func (s *Service) ActiveJiraConnection(ctx context.Context) (ports.ConnectionRecord, error) {
	if ctx == nil {
		return ports.ConnectionRecord{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.ConnectionRecord{}, errs.Wrap(err, "check context")
	}
	return s.connections.GetActiveJiraConnection(ctx)
}
