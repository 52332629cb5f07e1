package store

import (
	"context"
	"fmt"
	"time"

	"github.com/tastebase/tastebase/internal/model"
)

// CreateUsageRecord appends one usage record. The api_key_id must reference a
// live key; the foreign key rejects anything else.
func (s *Store) CreateUsageRecord(ctx context.Context, rec *model.UsageRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	const q = `INSERT INTO api_usage
		(api_key_id, endpoint, method, status_code, response_time_ms, user_agent, ip_address, created_at)
		VALUES
		(:api_key_id, :endpoint, :method, :status_code, :response_time_ms, :user_agent, :ip_address, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, rec); err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}

// CountUsageBetween counts requests recorded for a key in [start, end).
func (s *Store) CountUsageBetween(ctx context.Context, apiKeyID string, start, end time.Time) (int64, error) {
	var count int64
	const q = `SELECT COUNT(*) FROM api_usage WHERE api_key_id = ? AND created_at >= ? AND created_at < ?`
	if err := s.db.GetContext(ctx, &count, s.rebind(q), apiKeyID, start, end); err != nil {
		return 0, fmt.Errorf("count usage: %w", err)
	}
	return count, nil
}

// RecentUsage returns the most recent records for a key, newest first.
func (s *Store) RecentUsage(ctx context.Context, apiKeyID string, limit int) ([]model.UsageRecord, error) {
	records := []model.UsageRecord{}
	const q = `SELECT * FROM api_usage WHERE api_key_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`
	if err := s.db.SelectContext(ctx, &records, s.rebind(q), apiKeyID, limit); err != nil {
		return nil, fmt.Errorf("recent usage: %w", err)
	}
	return records, nil
}

// dateExpr returns the SQL expression that buckets created_at into a
// YYYY-MM-DD day string for the active backend.
func (s *Store) dateExpr() string {
	switch s.driver {
	case DriverPostgres:
		return "to_char(created_at, 'YYYY-MM-DD')"
	case DriverMySQL:
		return "DATE_FORMAT(created_at, '%Y-%m-%d')"
	default:
		return "strftime('%Y-%m-%d', created_at)"
	}
}

// DailyUsage returns per-day request counts for a key since a cutoff,
// ascending by day. Days with no traffic are absent.
func (s *Store) DailyUsage(ctx context.Context, apiKeyID string, since time.Time) ([]model.DailyCount, error) {
	counts := []model.DailyCount{}
	q := `SELECT ` + s.dateExpr() + ` AS day, COUNT(*) AS requests
		FROM api_usage WHERE api_key_id = ? AND created_at >= ?
		GROUP BY day ORDER BY day`
	if err := s.db.SelectContext(ctx, &counts, s.rebind(q), apiKeyID, since); err != nil {
		return nil, fmt.Errorf("daily usage: %w", err)
	}
	return counts, nil
}

// UsageTotals aggregates fleet-wide request volume over [start, end):
// total requests, distinct keys seen, and mean response time.
func (s *Store) UsageTotals(ctx context.Context, start, end time.Time) (total, uniqueKeys int64, avgResponseMs float64, err error) {
	var row struct {
		Total      int64    `db:"total"`
		UniqueKeys int64    `db:"unique_keys"`
		AvgMs      *float64 `db:"avg_ms"`
	}
	const q = `SELECT COUNT(*) AS total,
		COUNT(DISTINCT api_key_id) AS unique_keys,
		AVG(response_time_ms) AS avg_ms
		FROM api_usage WHERE created_at >= ? AND created_at < ?`
	if err := s.db.GetContext(ctx, &row, s.rebind(q), start, end); err != nil {
		return 0, 0, 0, fmt.Errorf("usage totals: %w", err)
	}
	if row.AvgMs != nil {
		avgResponseMs = *row.AvgMs
	}
	return row.Total, row.UniqueKeys, avgResponseMs, nil
}

// StatusCounts returns the status-code distribution over [start, end).
func (s *Store) StatusCounts(ctx context.Context, start, end time.Time) ([]model.StatusCount, error) {
	counts := []model.StatusCount{}
	const q = `SELECT status_code, COUNT(*) AS count
		FROM api_usage WHERE created_at >= ? AND created_at < ?
		GROUP BY status_code ORDER BY count DESC, status_code`
	if err := s.db.SelectContext(ctx, &counts, s.rebind(q), start, end); err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	return counts, nil
}

// TopEndpoints returns the busiest endpoint+method pairs over [start, end).
func (s *Store) TopEndpoints(ctx context.Context, start, end time.Time, limit int) ([]model.EndpointCount, error) {
	counts := []model.EndpointCount{}
	const q = `SELECT endpoint, method, COUNT(*) AS count
		FROM api_usage WHERE created_at >= ? AND created_at < ?
		GROUP BY endpoint, method ORDER BY count DESC, endpoint LIMIT ?`
	if err := s.db.SelectContext(ctx, &counts, s.rebind(q), start, end, limit); err != nil {
		return nil, fmt.Errorf("top endpoints: %w", err)
	}
	return counts, nil
}
