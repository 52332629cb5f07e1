package service

import (
	"context"
	"testing"
	"time"

	"github.com/tastebase/tastebase/internal/model"
	"github.com/tastebase/tastebase/internal/store"
)

func newTestUsage(t *testing.T) (*UsageService, *AuthService, *store.Store) {
	t.Helper()
	st, err := store.Open(store.DriverSQLite, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewUsageService(st), NewAuthService(st, "test-secret", time.Hour), st
}

func record(t *testing.T, st *store.Store, keyID string, status int, ms int64, at time.Time) {
	t.Helper()
	rec := &model.UsageRecord{
		APIKeyID:       keyID,
		Endpoint:       "/api/recipes",
		Method:         "GET",
		StatusCode:     status,
		ResponseTimeMs: ms,
		CreatedAt:      at,
	}
	if err := st.CreateUsageRecord(context.Background(), rec); err != nil {
		t.Fatalf("CreateUsageRecord: %v", err)
	}
}

func TestStatsDefaults(t *testing.T) {
	usage, auth, st := newTestUsage(t)
	ctx := context.Background()

	_, key, err := auth.Register(ctx, "stats@example.com", "pw", model.RoleUser)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	now := time.Now().UTC()
	record(t, st, key.ID, 200, 10, now.Add(-time.Minute))
	record(t, st, key.ID, 200, 10, now.Add(-2*time.Minute))

	stats, err := usage.Stats(ctx, key.ID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Usage.Monthly.Used != 2 {
		t.Errorf("monthly used = %d, want 2", stats.Usage.Monthly.Used)
	}
	if stats.Usage.Monthly.Limit != DefaultMonthlyLimit {
		t.Errorf("monthly limit = %d, want %d", stats.Usage.Monthly.Limit, DefaultMonthlyLimit)
	}
	if stats.Usage.Daily.Used != 2 || stats.Usage.Daily.Limit != DefaultDailyLimit {
		t.Errorf("daily window = %+v", stats.Usage.Daily)
	}
	if stats.Usage.Last30Days != 2 {
		t.Errorf("last 30 days = %d, want 2", stats.Usage.Last30Days)
	}
	if stats.Usage.Monthly.Remaining != DefaultMonthlyLimit-2 {
		t.Errorf("remaining = %d", stats.Usage.Monthly.Remaining)
	}
	if len(stats.RecentRequests) != 2 {
		t.Errorf("got %d recent requests, want 2", len(stats.RecentRequests))
	}
	if len(stats.DailyUsage) == 0 {
		t.Error("expected at least one day in trend")
	}

	// Reset date is the first of next month
	next := stats.ResetDate
	if next.Day() != 1 || !next.After(now) {
		t.Errorf("reset date = %v", next)
	}
}

func TestStatsLimitOverrides(t *testing.T) {
	usage, auth, st := newTestUsage(t)
	ctx := context.Background()

	_, key, err := auth.Register(ctx, "limits@example.com", "pw", model.RoleUser)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := st.SetSetting(ctx, "usage.monthly_limit", "100"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := st.SetSetting(ctx, "usage.daily_limit", "garbage"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}

	record(t, st, key.ID, 200, 5, time.Now().UTC())

	stats, err := usage.Stats(ctx, key.ID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Usage.Monthly.Limit != 100 {
		t.Errorf("monthly limit = %d, want 100", stats.Usage.Monthly.Limit)
	}
	if stats.Usage.Monthly.Percentage != 1 {
		t.Errorf("percentage = %v, want 1", stats.Usage.Monthly.Percentage)
	}
	// Malformed override falls back to the default
	if stats.Usage.Daily.Limit != DefaultDailyLimit {
		t.Errorf("daily limit = %d, want %d", stats.Usage.Daily.Limit, DefaultDailyLimit)
	}
}

func TestAnalytics(t *testing.T) {
	usage, auth, st := newTestUsage(t)
	ctx := context.Background()

	_, key1, err := auth.Register(ctx, "a1@example.com", "pw", model.RoleUser)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, key2, err := auth.Register(ctx, "a2@example.com", "pw", model.RoleUser)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	now := time.Now().UTC()
	record(t, st, key1.ID, 200, 10, now.Add(-time.Hour))
	record(t, st, key1.ID, 404, 20, now.Add(-time.Hour))
	record(t, st, key2.ID, 200, 30, now.Add(-time.Hour))
	// Outside the window
	record(t, st, key2.ID, 200, 99, now.AddDate(0, 0, -40))

	a, err := usage.Analytics(ctx, 30)
	if err != nil {
		t.Fatalf("Analytics: %v", err)
	}
	if a.Summary.TotalRequests != 3 {
		t.Errorf("total = %d, want 3", a.Summary.TotalRequests)
	}
	if a.Summary.UniqueKeys != 2 {
		t.Errorf("unique = %d, want 2", a.Summary.UniqueKeys)
	}
	if a.Summary.AverageResponseTime != 20 {
		t.Errorf("avg = %v, want 20", a.Summary.AverageResponseTime)
	}
	if len(a.StatusCodeDistribution) != 2 {
		t.Errorf("got %d status rows, want 2", len(a.StatusCodeDistribution))
	}
	if len(a.TopEndpoints) != 1 || a.TopEndpoints[0].Count != 3 {
		t.Errorf("top endpoints = %+v", a.TopEndpoints)
	}
	if !a.Period.End.After(a.Period.Start) {
		t.Errorf("period %v..%v", a.Period.Start, a.Period.End)
	}
}
