package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"jiragent/internal/bootstrap/logging"
	domainrequest "jiragent/internal/domain/request"
	"jiragent/internal/errs"
	"jiragent/internal/ports"
)

// Service is the intake engine: request lifecycle, dynamic field
// configuration, AI-assisted extraction and batch release.
type Service struct {
	requests       ports.RequestRepository
	connections    ports.ConnectionRepository
	uow            ports.UnitOfWork
	cache          ports.Cache
	trackerFactory ports.TrackerFactory
	analyzer       ports.Analyzer
}

// NewService wires the engine. analyzer may be nil; AI-dependent paths then
// fall back to placeholders.
func NewService(
	requests ports.RequestRepository,
	connections ports.ConnectionRepository,
	uow ports.UnitOfWork,
	cache ports.Cache,
	trackerFactory ports.TrackerFactory,
	analyzer ports.Analyzer,
) *Service {
	return &Service{
		requests:       requests,
		connections:    connections,
		uow:            uow,
		cache:          cache,
		trackerFactory: trackerFactory,
		analyzer:       analyzer,
	}
}

func (s *Service) tracker(conn ports.ConnectionRecord) (ports.Tracker, error) {
	if s.trackerFactory == nil {
		return nil, fmt.Errorf("tracker factory is required")
	}
	if conn.JiraURL == "" || conn.JiraEmail == "" || conn.JiraAPIToken == "" {
		return nil, fmt.Errorf("connection %d: missing jira credentials", conn.ConnectionID)
	}
	return s.trackerFactory(ports.TrackerCredentials{
		BaseURL:  conn.JiraURL,
		Email:    conn.JiraEmail,
		APIToken: conn.JiraAPIToken,
	}), nil
}

func (s *Service) setCacheBestEffort(ctx context.Context, key, value string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, 0); err != nil {
		logging.Warn(ctx, "cache update failed",
			slog.String("key", key),
			slog.Any("err", errs.Loggable(err)),
		)
	}
}

func (s *Service) dropCacheBestEffort(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		logging.Warn(ctx, "cache invalidation failed",
			slog.String("key", key),
			slog.Any("err", errs.Loggable(err)),
		)
	}
}

func cacheRequestStatusKey(requestID int64) string {
	return "request_status:" + strconv.FormatInt(requestID, 10)
}

func cacheConnectionStatusKey(connectionID int64) string {
	return "connection_status:" + strconv.FormatInt(connectionID, 10)
}

func nowUTCString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// transitionStatus applies one lifecycle action inside a transaction and
// returns the updated record. The stored state is untouched on any error.
func (s *Service) transitionStatus(ctx context.Context, requestID int64, action domainrequest.Action) (ports.RequestRecord, error) {
	var updated ports.RequestRecord
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		record, err := s.requests.GetRequest(txCtx, requestID)
		if err != nil {
			return err
		}

		current, err := domainrequest.ParseStatus(record.Status)
		if err != nil {
			return errs.Wrapf(err, "request %d", requestID)
		}

		next, err := domainrequest.Transition(current, action)
		if err != nil {
			var invalid *domainrequest.InvalidTransitionError
			if errors.As(err, &invalid) {
				invalid.RequestID = requestID
			}
			return err
		}

		now := nowUTCString()
		if err := s.requests.SetRequestStatus(txCtx, requestID, string(next), now); err != nil {
			return err
		}

		record.Status = string(next)
		record.UpdatedAt = now
		updated = record
		return nil
	})
	if err != nil {
		return ports.RequestRecord{}, err
	}

	s.setCacheBestEffort(ctx, cacheRequestStatusKey(requestID), updated.Status)
	s.dropCacheBestEffort(ctx, dashboardCacheKey)
	return updated, nil
}
