package intake

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"time"

	"jiragent/internal/bootstrap/logging"
	"jiragent/internal/errs"
	"jiragent/internal/ports"
)

const (
	dashboardCacheKey    = "dashboard:summary"
	dashboardCacheTTL    = 30 * time.Second
	dashboardRecentLimit = 10
)

// DashboardActivity is one row of the recent-activity feed.
type DashboardActivity struct {
	RequestID int64  `json:"request_id"`
	Summary   string `json:"summary"`
	Status    string `json:"status"`
	UpdatedAt string `json:"updated_at"`
}

// DashboardSnapshot is the aggregate view served to dashboards: per-status
// counts plus the most recently touched requests.
type DashboardSnapshot struct {
	Total        int                 `json:"total"`
	StatusCounts map[string]int      `json:"status_counts"`
	Recent       []DashboardActivity `json:"recent"`
}

// Dashboard serves status counts and recent activity. Snapshots come from the
// KV cache when a fresh one exists; otherwise they are rebuilt from the store
// and cached briefly. Lifecycle mutations drop the cached copy.
func (s *Service) Dashboard(ctx context.Context) (DashboardSnapshot, error) {
	if ctx == nil {
		return DashboardSnapshot{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return DashboardSnapshot{}, errs.Wrap(err, "check context")
	}

	if s.cache != nil {
		if raw, ok, err := s.cache.Get(ctx, dashboardCacheKey); err == nil && ok {
			var snap DashboardSnapshot
			if err := json.Unmarshal([]byte(raw), &snap); err == nil {
				return snap, nil
			}
			// Unreadable entry; rebuild from the store below.
		}
	}

	records, err := s.requests.ListRequests(ctx, ports.RequestFilter{})
	if err != nil {
		return DashboardSnapshot{}, err
	}

	snap := DashboardSnapshot{
		Total:        len(records),
		StatusCounts: make(map[string]int, 4),
	}
	for _, record := range records {
		snap.StatusCounts[record.Status]++
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].UpdatedAt > records[j].UpdatedAt
	})
	limit := dashboardRecentLimit
	if len(records) < limit {
		limit = len(records)
	}
	for _, record := range records[:limit] {
		snap.Recent = append(snap.Recent, DashboardActivity{
			RequestID: record.RequestID,
			Summary:   record.Summary,
			Status:    record.Status,
			UpdatedAt: record.UpdatedAt,
		})
	}

	if s.cache != nil {
		if payload, err := json.Marshal(snap); err == nil {
			if err := s.cache.Set(ctx, dashboardCacheKey, string(payload), dashboardCacheTTL); err != nil {
				logging.Warn(ctx, "cache update failed",
					slog.String("key", dashboardCacheKey),
					slog.Any("err", errs.Loggable(err)),
				)
			}
		}
	}
	return snap, nil
}
