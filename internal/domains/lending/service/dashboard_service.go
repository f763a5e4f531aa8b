package service

import (
	"context"
	"fmt"
	"time"

	"library-backend/internal/domains/lending/model"
	"library-backend/internal/domains/lending/repository"
	"library-backend/pkg/cache"
	"library-backend/pkg/logger"
)

// Every cached read model lives under CachePattern
const (
	DashboardStatsCacheKey = "lending:cache:dashboard_stats"
	OverdueSummaryCacheKey = "lending:cache:overdue_summary"
	CachePattern           = "lending:cache:*"
)

type dashboardService struct {
	store repository.Store
	cache cache.Cache
	ttl   time.Duration
	now   Clock
}

// NewDashboardService caches stats for ttl. A nil cache always recomputes.
func NewDashboardService(store repository.Store, c cache.Cache, ttl time.Duration, now Clock) DashboardService {
	if now == nil {
		now = time.Now
	}
	return &dashboardService{store: store, cache: c, ttl: ttl, now: now}
}

func (s *dashboardService) Stats(ctx context.Context) (*model.DashboardStats, error) {
	if s.cache != nil {
		var cached model.DashboardStats
		found, err := s.cache.Get(ctx, DashboardStatsCacheKey, &cached)
		if err != nil {
			logger.Error("dashboard cache get failed", err)
		} else if found {
			return &cached, nil
		}
	}
	return s.Refresh(ctx)
}

func (s *dashboardService) Refresh(ctx context.Context) (*model.DashboardStats, error) {
	stats, err := s.store.DashboardStats(ctx, model.NormalizeDate(s.now()))
	if err != nil {
		return nil, fmt.Errorf("compute dashboard stats: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, DashboardStatsCacheKey, stats, s.ttl); err != nil {
			logger.Error("dashboard cache set failed", err)
		}
	}
	return stats, nil
}

// Invalidate drops every cached read model
func (s *dashboardService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.DeletePattern(ctx, CachePattern); err != nil {
		return fmt.Errorf("invalidate dashboard cache: %w", err)
	}
	return nil
}

// OverdueSummary serves today's cached scan, rescanning on a miss or when
// the cached scan was taken on another day
func (s *dashboardService) OverdueSummary(ctx context.Context) (*model.OverdueSummary, error) {
	today := model.NormalizeDate(s.now())
	if s.cache != nil {
		var cached model.OverdueSummary
		found, err := s.cache.Get(ctx, OverdueSummaryCacheKey, &cached)
		if err != nil {
			logger.Error("overdue summary cache get failed", err)
		} else if found && model.NormalizeDate(cached.AsOf).Equal(today) {
			return &cached, nil
		}
	}
	return s.OverdueScan(ctx, today)
}

// OverdueScan implements DashboardService.OverdueScan
func (s *dashboardService) OverdueScan(ctx context.Context, asOf time.Time) (*model.OverdueSummary, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	asOf = model.NormalizeDate(asOf)

	active := model.LoanStatusActive
	loans, total, err := s.store.ListLoans(ctx, model.LoanFilter{Status: &active})
	if err != nil {
		return nil, fmt.Errorf("list active loans: %w", err)
	}

	summary := &model.OverdueSummary{
		AsOf:        asOf,
		ActiveLoans: total,
		Items:       []model.OverdueState{},
	}
	for _, loan := range loans {
		state := model.OverdueStatus(loan, asOf)
		if state.IsOverdue {
			summary.OverdueLoans++
			summary.Items = append(summary.Items, state)
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, OverdueSummaryCacheKey, summary, s.ttl); err != nil {
			logger.Error("overdue summary cache set failed", err)
		}
	}

	logger.Info("overdue scan completed", map[string]interface{}{
		"as_of":         model.FormatDate(asOf),
		"active_loans":  summary.ActiveLoans,
		"overdue_loans": summary.OverdueLoans,
	})
	return summary, nil
}
