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

// GetFieldConfig loads and decodes the stored field configuration for a
// connection. An unseeded connection yields ErrMissingUpstreamSchema.
func (s *Service) GetFieldConfig(ctx context.Context, connectionID int64) (fieldconfig.Config, error) {
	if ctx == nil {
		return fieldconfig.Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return fieldconfig.Config{}, errs.Wrap(err, "check context")
	}

	conn, err := s.connections.GetConnection(ctx, connectionID)
	if err != nil {
		return fieldconfig.Config{}, err
	}
	return decodeFieldConfig(conn)
}

// EditableFields projects the form-facing field list for one issue type:
// effectively included fields only, mandatory first, label order within.
func (s *Service) EditableFields(ctx context.Context, connectionID int64, issueType string) ([]fieldconfig.EditableField, error) {
	cfg, err := s.GetFieldConfig(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if _, ok := cfg.IssueType(issueType); !ok {
		return nil, errs.Wrapf(fieldconfig.ErrUnknownIssueType, "issue type %q", issueType)
	}
	return fieldconfig.ProjectEditableFields(cfg, issueType), nil
}

// RefreshFieldConfig re-fetches the upstream schema and merges it into the
// stored configuration, preserving overrides for fields that survive.
func (s *Service) RefreshFieldConfig(ctx context.Context, connectionID int64) (fieldconfig.Config, error) {
	if ctx == nil {
		return fieldconfig.Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return fieldconfig.Config{}, errs.Wrap(err, "check context")
	}

	conn, err := s.connections.GetConnection(ctx, connectionID)
	if err != nil {
		return fieldconfig.Config{}, err
	}
	if conn.JiraProjectKey == "" {
		return fieldconfig.Config{}, fmt.Errorf("connection %d: project key is required to refresh the schema", connectionID)
	}
	tracker, err := s.tracker(conn)
	if err != nil {
		return fieldconfig.Config{}, err
	}

	fresh, err := tracker.FetchFieldSchema(ctx, conn.JiraProjectKey)
	if err != nil {
		return fieldconfig.Config{}, errs.Wrap(err, "fetch field schema")
	}

	var merged fieldconfig.Config
	if len(conn.FieldConfigJSON) == 0 {
		merged = fieldconfig.FromSchema(fresh)
	} else {
		current, err := fieldconfig.UnmarshalConfig(conn.FieldConfigJSON)
		if err != nil {
			return fieldconfig.Config{}, errs.Wrapf(err, "connection %d: stored field configuration", connectionID)
		}
		merged = current.MergeRefreshedSchema(fresh)
	}

	if err := s.storeFieldConfig(ctx, connectionID, merged); err != nil {
		return fieldconfig.Config{}, err
	}
	logging.Info(ctx, "field configuration refreshed",
		slog.Int64("connection_id", connectionID),
		slog.Int("issue_types", len(merged.IssueTypes())),
	)
	return merged, nil
}

// SetFieldIncluded toggles a field's inclusion override. Excluding an
// upstream-required field is refused by the domain rules.
func (s *Service) SetFieldIncluded(ctx context.Context, connectionID int64, issueType, fieldKey string, included bool) (fieldconfig.Config, error) {
	return s.mutateFieldConfig(ctx, connectionID, func(cfg fieldconfig.Config) (fieldconfig.Config, error) {
		return cfg.ToggleIncluded(issueType, fieldKey, included)
	})
}

// SetFieldRequired toggles a field's custom-required override. The field
// must be effectively included.
func (s *Service) SetFieldRequired(ctx context.Context, connectionID int64, issueType, fieldKey string, required bool) (fieldconfig.Config, error) {
	return s.mutateFieldConfig(ctx, connectionID, func(cfg fieldconfig.Config) (fieldconfig.Config, error) {
		return cfg.ToggleRequired(issueType, fieldKey, required)
	})
}

func (s *Service) mutateFieldConfig(ctx context.Context, connectionID int64, mutate func(fieldconfig.Config) (fieldconfig.Config, error)) (fieldconfig.Config, error) {
	if ctx == nil {
		return fieldconfig.Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return fieldconfig.Config{}, errs.Wrap(err, "check context")
	}

	conn, err := s.connections.GetConnection(ctx, connectionID)
	if err != nil {
		return fieldconfig.Config{}, err
	}
	cfg, err := decodeFieldConfig(conn)
	if err != nil {
		return fieldconfig.Config{}, err
	}

	next, err := mutate(cfg)
	if err != nil {
		return fieldconfig.Config{}, err
	}
	if err := s.storeFieldConfig(ctx, connectionID, next); err != nil {
		return fieldconfig.Config{}, err
	}
	return next, nil
}

func (s *Service) storeFieldConfig(ctx context.Context, connectionID int64, cfg fieldconfig.Config) error {
	payload, err := fieldconfig.MarshalConfig(cfg)
	if err != nil {
		return err
	}
	return s.uow.WithTx(ctx, func(txCtx context.Context) error {
		return s.connections.SetConnectionFieldConfig(txCtx, connectionID, payload, nowUTCString())
	})
}

func decodeFieldConfig(conn ports.ConnectionRecord) (fieldconfig.Config, error) {
	if len(conn.FieldConfigJSON) == 0 {
		return fieldconfig.Config{}, errs.Wrapf(fieldconfig.ErrMissingUpstreamSchema, "connection %d", conn.ConnectionID)
	}
	cfg, err := fieldconfig.UnmarshalConfig(conn.FieldConfigJSON)
	if err != nil {
		return fieldconfig.Config{}, errs.Wrapf(err, "connection %d: stored field configuration", conn.ConnectionID)
	}
	if cfg.IsZero() {
		return fieldconfig.Config{}, errs.Wrapf(fieldconfig.ErrMissingUpstreamSchema, "connection %d", conn.ConnectionID)
	}
	return cfg, nil
}
