package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"jiragent/internal/errs"
	"jiragent/internal/infrastructure/persistence/sqlite/model"
	"jiragent/internal/ports"
)

type ConnectionRepository struct {
	db *gorm.DB
}

var _ ports.ConnectionRepository = (*ConnectionRepository)(nil)

func NewConnectionRepository(db *gorm.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

func (r *ConnectionRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	return dbFromContext(ctx, r.db)
}

func (r *ConnectionRepository) ListConnections(ctx context.Context) ([]ports.ConnectionRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Connection
	if err := db.Order("connection_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query connections")
	}

	records := make([]ports.ConnectionRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, mapConnection(row))
	}
	return records, nil
}

func (r *ConnectionRepository) GetConnection(ctx context.Context, connectionID int64) (ports.ConnectionRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.ConnectionRecord{}, err
	}

	var row model.Connection
	if err := db.Where("connection_id = ?", connectionID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.ConnectionRecord{}, ports.ErrConnectionNotFound
		}
		return ports.ConnectionRecord{}, errs.Wrap(err, "query connection by id")
	}
	return mapConnection(row), nil
}

func (r *ConnectionRepository) GetActiveJiraConnection(ctx context.Context) (ports.ConnectionRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.ConnectionRecord{}, err
	}

	var row model.Connection
	if err := db.
		Where("type = ? AND status = ?", "jira", "active").
		Order("connection_id asc").
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.ConnectionRecord{}, ports.ErrNoActiveConnection
		}
		return ports.ConnectionRecord{}, errs.Wrap(err, "query active jira connection")
	}
	return mapConnection(row), nil
}

func (r *ConnectionRepository) CreateConnection(ctx context.Context, record ports.ConnectionRecord) (ports.ConnectionRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.ConnectionRecord{}, err
	}

	row := unmapConnection(record)
	row.ConnectionID = 0

	if err := db.Create(&row).Error; err != nil {
		return ports.ConnectionRecord{}, errs.Wrap(err, "insert connection")
	}
	return mapConnection(row), nil
}

func (r *ConnectionRepository) UpdateConnection(ctx context.Context, connectionID int64, patch ports.ConnectionPatch, updatedAt string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	updates := map[string]any{"updated_at": updatedAt}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.JiraURL != nil {
		updates["jira_url"] = *patch.JiraURL
	}
	if patch.JiraEmail != nil {
		updates["jira_email"] = *patch.JiraEmail
	}
	if patch.JiraAPIToken != nil {
		updates["jira_api_token"] = *patch.JiraAPIToken
	}
	if patch.JiraProjectKey != nil {
		updates["jira_project_key"] = *patch.JiraProjectKey
	}

	result := db.Model(&model.Connection{}).Where("connection_id = ?", connectionID).Updates(updates)
	if result.Error != nil {
		return errs.Wrap(result.Error, "update connection")
	}
	if result.RowsAffected == 0 {
		return ports.ErrConnectionNotFound
	}
	return nil
}

func (r *ConnectionRepository) SetConnectionStatus(ctx context.Context, connectionID int64, status string, updatedAt string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.Connection{}).
		Where("connection_id = ?", connectionID).
		Updates(map[string]any{"status": status, "updated_at": updatedAt})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update connection status")
	}
	if result.RowsAffected == 0 {
		return ports.ErrConnectionNotFound
	}
	return nil
}

func (r *ConnectionRepository) SetConnectionFieldConfig(ctx context.Context, connectionID int64, fieldConfigJSON []byte, updatedAt string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	var value any
	if len(fieldConfigJSON) > 0 {
		value = string(fieldConfigJSON)
	}

	result := db.Model(&model.Connection{}).
		Where("connection_id = ?", connectionID).
		Updates(map[string]any{"field_config": value, "updated_at": updatedAt})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update connection field config")
	}
	if result.RowsAffected == 0 {
		return ports.ErrConnectionNotFound
	}
	return nil
}

func mapConnection(row model.Connection) ports.ConnectionRecord {
	record := ports.ConnectionRecord{
		ConnectionID:   row.ConnectionID,
		Name:           row.Name,
		Type:           row.Type,
		Status:         row.Status,
		JiraURL:        derefString(row.JiraURL),
		JiraEmail:      derefString(row.JiraEmail),
		JiraAPIToken:   derefString(row.JiraAPIToken),
		JiraProjectKey: derefString(row.JiraProjectKey),
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
	if row.FieldConfig != nil && *row.FieldConfig != "" {
		record.FieldConfigJSON = []byte(*row.FieldConfig)
	}
	return record
}

func unmapConnection(record ports.ConnectionRecord) model.Connection {
	row := model.Connection{
		ConnectionID:   record.ConnectionID,
		Name:           record.Name,
		Type:           record.Type,
		Status:         record.Status,
		JiraURL:        refString(record.JiraURL),
		JiraEmail:      refString(record.JiraEmail),
		JiraAPIToken:   refString(record.JiraAPIToken),
		JiraProjectKey: refString(record.JiraProjectKey),
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
	if len(record.FieldConfigJSON) > 0 {
		cfg := string(record.FieldConfigJSON)
		row.FieldConfig = &cfg
	}
	return row
}
