package ports

import (
	"context"
	"errors"
)

var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrNoActiveConnection = errors.New("no active jira connection")
)

type ConnectionRecord struct {
	ConnectionID   int64
	Name           string
	Type           string
	Status         string
	JiraURL        string
	JiraEmail      string
	JiraAPIToken   string
	JiraProjectKey string
	// FieldConfigJSON is the persisted field configuration snapshot; nil until
	// the first successful connection test seeds it.
	FieldConfigJSON []byte
	CreatedAt       string
	UpdatedAt       string
}

type ConnectionPatch struct {
	Name           *string
	JiraURL        *string
	JiraEmail      *string
	JiraAPIToken   *string
	JiraProjectKey *string
}

type ConnectionRepository interface {
	ListConnections(ctx context.Context) ([]ConnectionRecord, error)
	GetConnection(ctx context.Context, connectionID int64) (ConnectionRecord, error)
	// GetActiveJiraConnection returns the first active jira-typed connection,
	// or ErrNoActiveConnection.
	GetActiveJiraConnection(ctx context.Context) (ConnectionRecord, error)
	CreateConnection(ctx context.Context, record ConnectionRecord) (ConnectionRecord, error)
	UpdateConnection(ctx context.Context, connectionID int64, patch ConnectionPatch, updatedAt string) error
	SetConnectionStatus(ctx context.Context, connectionID int64, status string, updatedAt string) error
	SetConnectionFieldConfig(ctx context.Context, connectionID int64, fieldConfigJSON []byte, updatedAt string) error
}
