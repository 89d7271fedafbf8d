package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"jiragent/internal/ports"
)

// dbFromContext prefers a transaction handle carried by the unit of work over
// the repository's own connection.
func dbFromContext(ctx context.Context, fallback *gorm.DB) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return fallback.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func derefString(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func refString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
