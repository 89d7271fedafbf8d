package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"jiragent/internal/bootstrap/logging"
	"jiragent/internal/domain/fieldconfig"
	"jiragent/internal/errs"
	"jiragent/internal/ports"
)

type CreateConnectionInput struct {
	Name           string
	Type           string
	JiraURL        string
	JiraEmail      string
	JiraAPIToken   string
	JiraProjectKey string
}

// CreateConnection registers a connection in the inactive state. Credentials
// are not verified here; TestConnection does that explicitly.
func (s *Service) CreateConnection(ctx context.Context, input CreateConnectionInput) (ports.ConnectionRecord, error) {
	if ctx == nil {
		return ports.ConnectionRecord{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.ConnectionRecord{}, errs.Wrap(err, "check context")
	}
	if input.Name == "" {
		return ports.ConnectionRecord{}, fmt.Errorf("connection name is required")
	}
	connType := input.Type
	if connType == "" {
		connType = "jira"
	}

	now := nowUTCString()
	record := ports.ConnectionRecord{
		Name:           input.Name,
		Type:           connType,
		Status:         "inactive",
		JiraURL:        input.JiraURL,
		JiraEmail:      input.JiraEmail,
		JiraAPIToken:   input.JiraAPIToken,
		JiraProjectKey: input.JiraProjectKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var created ports.ConnectionRecord
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var txErr error
		created, txErr = s.connections.CreateConnection(txCtx, record)
		return txErr
	})
	if err != nil {
		return ports.ConnectionRecord{}, err
	}

	logging.Info(ctx, "connection created",
		slog.Int64("connection_id", created.ConnectionID),
		slog.String("type", created.Type),
	)
	return created, nil
}

type UpdateConnectionInput struct {
	Name           *string
	JiraURL        *string
	JiraEmail      *string
	JiraAPIToken   *string
	JiraProjectKey *string
}

// UpdateConnection patches connection settings. Credential changes do not
// reset the status; the next TestConnection re-verifies them.
func (s *Service) UpdateConnection(ctx context.Context, connectionID int64, input UpdateConnectionInput) (ports.ConnectionRecord, error) {
	if ctx == nil {
		return ports.ConnectionRecord{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.ConnectionRecord{}, errs.Wrap(err, "check context")
	}

	patch := ports.ConnectionPatch{
		Name:           input.Name,
		JiraURL:        input.JiraURL,
		JiraEmail:      input.JiraEmail,
		JiraAPIToken:   input.JiraAPIToken,
		JiraProjectKey: input.JiraProjectKey,
	}

	var updated ports.ConnectionRecord
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.connections.UpdateConnection(txCtx, connectionID, patch, nowUTCString()); err != nil {
			return err
		}
		var txErr error
		updated, txErr = s.connections.GetConnection(txCtx, connectionID)
		return txErr
	})
	if err != nil {
		return ports.ConnectionRecord{}, err
	}
	return updated, nil
}

// TestConnectionResult reports the outcome of a credential check. A failed
// check is a valid result, not an error: the error return is reserved for
// store and wiring problems.
type TestConnectionResult struct {
	Success       bool
	User          string
	FailureReason string
	SchemaSeeded  bool
}

// TestConnection verifies the credentials against the tracker, flips the
// stored status to active or error, and on the first success of a connection
// with a project key seeds the field configuration from the upstream schema.
func (s *Service) TestConnection(ctx context.Context, connectionID int64) (TestConnectionResult, error) {
	if ctx == nil {
		return TestConnectionResult{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return TestConnectionResult{}, errs.Wrap(err, "check context")
	}

	conn, err := s.connections.GetConnection(ctx, connectionID)
	if err != nil {
		return TestConnectionResult{}, err
	}
	if conn.Type != "jira" {
		return TestConnectionResult{}, fmt.Errorf("connection %d: testing %q connections is not supported", connectionID, conn.Type)
	}

	tracker, err := s.tracker(conn)
	if err != nil {
		return TestConnectionResult{}, err
	}

	user, callErr := tracker.Myself(ctx)
	if callErr != nil {
		if err := s.setConnectionStatus(ctx, connectionID, "error"); err != nil {
			return TestConnectionResult{}, err
		}
		logging.Warn(ctx, "connection test failed",
			slog.Int64("connection_id", connectionID),
			slog.Any("err", errs.Loggable(callErr)),
		)
		return TestConnectionResult{Success: false, FailureReason: callErr.Error()}, nil
	}

	if err := s.setConnectionStatus(ctx, connectionID, "active"); err != nil {
		return TestConnectionResult{}, err
	}

	result := TestConnectionResult{Success: true, User: user.DisplayName}

	if len(conn.FieldConfigJSON) == 0 && conn.JiraProjectKey != "" {
		seeded, err := s.seedFieldConfig(ctx, tracker, conn)
		if err != nil {
			// Credentials are good; a seeding failure should not mask that.
			logging.Warn(ctx, "field configuration seeding failed",
				slog.Int64("connection_id", connectionID),
				slog.Any("err", errs.Loggable(err)),
			)
		} else {
			result.SchemaSeeded = seeded
		}
	}

	logging.Info(ctx, "connection test succeeded",
		slog.Int64("connection_id", connectionID),
		slog.String("user", user.DisplayName),
	)
	return result, nil
}

func (s *Service) setConnectionStatus(ctx context.Context, connectionID int64, status string) error {
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		return s.connections.SetConnectionStatus(txCtx, connectionID, status, nowUTCString())
	})
	if err != nil {
		return err
	}
	s.setCacheBestEffort(ctx, cacheConnectionStatusKey(connectionID), status)
	return nil
}

func (s *Service) seedFieldConfig(ctx context.Context, tracker ports.Tracker, conn ports.ConnectionRecord) (bool, error) {
	schema, err := tracker.FetchFieldSchema(ctx, conn.JiraProjectKey)
	if err != nil {
		return false, err
	}
	cfg := fieldconfig.FromSchema(schema)
	payload, err := fieldconfig.MarshalConfig(cfg)
	if err != nil {
		return false, err
	}
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		return s.connections.SetConnectionFieldConfig(txCtx, conn.ConnectionID, payload, nowUTCString())
	})
	if err != nil {
		return false, err
	}
	logging.Info(ctx, "field configuration seeded",
		slog.Int64("connection_id", conn.ConnectionID),
		slog.String("project_key", conn.JiraProjectKey),
	)
	return true, nil
}

// ListProjects enumerates projects visible to the given connection's
// credentials, for picking a project key.
func (s *Service) ListProjects(ctx context.Context, connectionID int64) ([]ports.TrackerProject, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	conn, err := s.connections.GetConnection(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	tracker, err := s.tracker(conn)
	if err != nil {
		return nil, err
	}
	return tracker.ListProjects(ctx)
}
