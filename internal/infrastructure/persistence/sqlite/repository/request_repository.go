package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	domainrequest "jiragent/internal/domain/request"
	"jiragent/internal/errs"
	"jiragent/internal/infrastructure/persistence/sqlite/model"
	"jiragent/internal/ports"
)

type RequestRepository struct {
	db *gorm.DB
}

var _ ports.RequestRepository = (*RequestRepository)(nil)

func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

func (r *RequestRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	return dbFromContext(ctx, r.db)
}

func (r *RequestRepository) ListRequests(ctx context.Context, filter ports.RequestFilter) ([]ports.RequestRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Request{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var rows []model.Request
	if err := query.Order("request_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query requests")
	}

	records := make([]ports.RequestRecord, 0, len(rows))
	for _, row := range rows {
		record, err := mapRequest(row)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (r *RequestRepository) GetRequest(ctx context.Context, requestID int64) (ports.RequestRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.RequestRecord{}, err
	}

	var row model.Request
	if err := db.Where("request_id = ?", requestID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.RequestRecord{}, ports.ErrRequestNotFound
		}
		return ports.RequestRecord{}, errs.Wrap(err, "query request by id")
	}
	return mapRequest(row)
}

func (r *RequestRepository) GetRequestsByID(ctx context.Context, requestIDs []int64) (map[int64]ports.RequestRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if len(requestIDs) == 0 {
		return map[int64]ports.RequestRecord{}, nil
	}

	var rows []model.Request
	if err := db.Where("request_id IN ?", requestIDs).Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query requests by id")
	}

	records := make(map[int64]ports.RequestRecord, len(rows))
	for _, row := range rows {
		record, err := mapRequest(row)
		if err != nil {
			return nil, err
		}
		records[record.RequestID] = record
	}
	return records, nil
}

func (r *RequestRepository) CreateRequest(ctx context.Context, record ports.RequestRecord) (ports.RequestRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.RequestRecord{}, err
	}

	row, err := unmapRequest(record)
	if err != nil {
		return ports.RequestRecord{}, err
	}
	row.RequestID = 0

	if err := db.Create(&row).Error; err != nil {
		return ports.RequestRecord{}, errs.Wrap(err, "insert request")
	}
	return mapRequest(row)
}

func (r *RequestRepository) UpdateRequest(ctx context.Context, requestID int64, patch ports.RequestPatch, updatedAt string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	updates := map[string]any{"updated_at": updatedAt}
	if patch.Summary != nil {
		updates["summary"] = *patch.Summary
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.AcceptanceCriteria != nil {
		updates["acceptance_criteria"] = *patch.AcceptanceCriteria
	}
	if patch.Requestor != nil {
		updates["requestor"] = *patch.Requestor
	}
	if patch.Assignee != nil {
		updates["assignee"] = *patch.Assignee
	}
	if patch.BusinessUnit != nil {
		updates["business_unit"] = *patch.BusinessUnit
	}
	if patch.Tags != nil {
		encoded, err := json.Marshal(*patch.Tags)
		if err != nil {
			return errs.Wrap(err, "marshal request tags")
		}
		updates["tags"] = string(encoded)
	}
	if patch.SourceContent != nil {
		encoded, err := json.Marshal(patch.SourceContent)
		if err != nil {
			return errs.Wrap(err, "marshal source content")
		}
		updates["source_content"] = string(encoded)
	}

	result := db.Model(&model.Request{}).Where("request_id = ?", requestID).Updates(updates)
	if result.Error != nil {
		return errs.Wrap(result.Error, "update request")
	}
	if result.RowsAffected == 0 {
		return ports.ErrRequestNotFound
	}
	return nil
}

func (r *RequestRepository) SetRequestStatus(ctx context.Context, requestID int64, status string, updatedAt string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.Request{}).
		Where("request_id = ?", requestID).
		Updates(map[string]any{"status": status, "updated_at": updatedAt})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update request status")
	}
	if result.RowsAffected == 0 {
		return ports.ErrRequestNotFound
	}
	return nil
}

func (r *RequestRepository) MarkRequestReleased(ctx context.Context, requestID int64, issueKey string, releasedAt string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	// The issue key binds exactly once; the guard keeps a racing second
	// release from ever reassigning it.
	result := db.Model(&model.Request{}).
		Where("request_id = ? AND jira_issue_key IS NULL", requestID).
		Updates(map[string]any{
			"status":         string(domainrequest.StatusReleased),
			"jira_issue_key": issueKey,
			"released_at":    releasedAt,
			"updated_at":     releasedAt,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "mark request released")
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("request %d: %w or already released", requestID, ports.ErrRequestNotFound)
	}
	return nil
}

func mapRequest(row model.Request) (ports.RequestRecord, error) {
	record := ports.RequestRecord{
		RequestID:          row.RequestID,
		Summary:            row.Summary,
		Description:        row.Description,
		Status:             row.Status,
		SourceTag:          row.SourceTag,
		AcceptanceCriteria: derefString(row.AcceptanceCriteria),
		Requestor:          derefString(row.Requestor),
		Assignee:           derefString(row.Assignee),
		BusinessUnit:       derefString(row.BusinessUnit),
		JiraIssueKey:       derefString(row.JiraIssueKey),
		ReleasedAt:         derefString(row.ReleasedAt),
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}

	if row.Tags != nil && *row.Tags != "" {
		if err := json.Unmarshal([]byte(*row.Tags), &record.Tags); err != nil {
			return ports.RequestRecord{}, errs.Wrapf(err, "unmarshal tags of request %d", row.RequestID)
		}
	}
	if row.SourceContent != nil && *row.SourceContent != "" {
		var content domainrequest.SourceContent
		if err := json.Unmarshal([]byte(*row.SourceContent), &content); err != nil {
			return ports.RequestRecord{}, errs.Wrapf(err, "unmarshal source content of request %d", row.RequestID)
		}
		record.SourceContent = &content
	}
	return record, nil
}

func unmapRequest(record ports.RequestRecord) (model.Request, error) {
	row := model.Request{
		RequestID:          record.RequestID,
		Summary:            record.Summary,
		Description:        record.Description,
		Status:             record.Status,
		SourceTag:          record.SourceTag,
		AcceptanceCriteria: refString(record.AcceptanceCriteria),
		Requestor:          refString(record.Requestor),
		Assignee:           refString(record.Assignee),
		BusinessUnit:       refString(record.BusinessUnit),
		JiraIssueKey:       refString(record.JiraIssueKey),
		ReleasedAt:         refString(record.ReleasedAt),
		CreatedAt:          record.CreatedAt,
		UpdatedAt:          record.UpdatedAt,
	}

	if record.Tags != nil {
		encoded, err := json.Marshal(record.Tags)
		if err != nil {
			return model.Request{}, errs.Wrap(err, "marshal request tags")
		}
		tags := string(encoded)
		row.Tags = &tags
	}
	if record.SourceContent != nil {
		encoded, err := json.Marshal(record.SourceContent)
		if err != nil {
			return model.Request{}, errs.Wrap(err, "marshal source content")
		}
		content := string(encoded)
		row.SourceContent = &content
	}
	return row, nil
}
