package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/tastebase/tastebase/internal/model"
	"github.com/tastebase/tastebase/internal/store"
)

// Default metering limits, overridable through the settings table.
const (
	DefaultMonthlyLimit = 10000
	DefaultDailyLimit   = 1000

	settingMonthlyLimit = "usage.monthly_limit"
	settingDailyLimit   = "usage.daily_limit"

	recentRequestCount = 10
)

// UsageService reads the append-only usage log and shapes it into per-user
// stats and fleet-wide analytics.
type UsageService struct {
	store *store.Store
}

func NewUsageService(st *store.Store) *UsageService {
	return &UsageService{store: st}
}

// Stats builds the usage report for one API key: consumption against the
// monthly and daily limits, a 30-day trend, and the most recent requests.
func (s *UsageService) Stats(ctx context.Context, apiKeyID string) (*model.UsageStats, error) {
	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	nextMonth := monthStart.AddDate(0, 1, 0)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	since30 := now.AddDate(0, 0, -30)

	monthly, err := s.store.CountUsageBetween(ctx, apiKeyID, monthStart, nextMonth)
	if err != nil {
		return nil, err
	}
	daily, err := s.store.CountUsageBetween(ctx, apiKeyID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	last30, err := s.store.CountUsageBetween(ctx, apiKeyID, since30, now.Add(time.Second))
	if err != nil {
		return nil, err
	}

	monthlyLimit, err := s.limit(ctx, settingMonthlyLimit, DefaultMonthlyLimit)
	if err != nil {
		return nil, err
	}
	dailyLimit, err := s.limit(ctx, settingDailyLimit, DefaultDailyLimit)
	if err != nil {
		return nil, err
	}

	trend, err := s.store.DailyUsage(ctx, apiKeyID, since30)
	if err != nil {
		return nil, err
	}
	recent, err := s.store.RecentUsage(ctx, apiKeyID, recentRequestCount)
	if err != nil {
		return nil, err
	}

	stats := &model.UsageStats{
		ResetDate:      nextMonth,
		DailyUsage:     trend,
		RecentRequests: recent,
	}
	stats.Usage.Monthly = window(monthly, monthlyLimit)
	stats.Usage.Daily = window(daily, dailyLimit)
	stats.Usage.Last30Days = last30
	return stats, nil
}

// Analytics builds the fleet-wide report covering the last `days` days.
func (s *UsageService) Analytics(ctx context.Context, days int) (*model.UsageAnalytics, error) {
	if days <= 0 {
		days = 30
	}
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)

	total, unique, avgMs, err := s.store.UsageTotals(ctx, start, end)
	if err != nil {
		return nil, err
	}
	statuses, err := s.store.StatusCounts(ctx, start, end)
	if err != nil {
		return nil, err
	}
	endpoints, err := s.store.TopEndpoints(ctx, start, end, 10)
	if err != nil {
		return nil, err
	}

	a := &model.UsageAnalytics{
		StatusCodeDistribution: statuses,
		TopEndpoints:           endpoints,
	}
	a.Period.Start = start
	a.Period.End = end
	a.Summary.TotalRequests = total
	a.Summary.UniqueKeys = unique
	a.Summary.AverageResponseTime = avgMs
	return a, nil
}

// limit reads a numeric limit from settings, falling back to a default when
// unset or malformed.
func (s *UsageService) limit(ctx context.Context, name string, fallback int64) (int64, error) {
	raw, err := s.store.GetSetting(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fallback, nil
		}
		return 0, fmt.Errorf("read %s: %w", name, err)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return fallback, nil
	}
	return v, nil
}

func window(used, limit int64) model.UsageWindow {
	w := model.UsageWindow{Used: used, Limit: limit}
	if limit > 0 {
		w.Percentage = float64(used) / float64(limit) * 100
	}
	w.Remaining = limit - used
	if w.Remaining < 0 {
		w.Remaining = 0
	}
	return w
}
