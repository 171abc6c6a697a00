package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mnhs-portal/registrar-api/internal/models"
	appErrors "github.com/mnhs-portal/registrar-api/pkg/errors"
)

type dashboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type requestCounter interface {
	CountByStatus(ctx context.Context) ([]models.StatusCount, error)
	CountArchived(ctx context.Context) (int, error)
}

type enrollmentCounter interface {
	CountByStatus(ctx context.Context) ([]models.StatusCount, error)
}

type inquiryCounter interface {
	CountByStatus(ctx context.Context) ([]models.StatusCount, error)
}

type cacheMetrics interface {
	RecordCacheLookup(hit bool)
}

const dashboardCacheKey = "dashboard:summary"

// DashboardService aggregates per-status counts for the admin dashboard,
// cached in Redis for the configured TTL.
type DashboardService struct {
	requests    requestCounter
	enrollments enrollmentCounter
	inquiries   inquiryCounter
	cache       dashboardCache
	metrics     cacheMetrics
	ttl         time.Duration
	logger      *zap.Logger
}

// NewDashboardService constructs the service. A nil cache disables caching.
func NewDashboardService(requests requestCounter, enrollments enrollmentCounter, inquiries inquiryCounter, cache dashboardCache, metrics cacheMetrics, ttl time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DashboardService{
		requests:    requests,
		enrollments: enrollments,
		inquiries:   inquiries,
		cache:       cache,
		metrics:     metrics,
		ttl:         ttl,
		logger:      logger,
	}
}

// Summary returns the dashboard aggregates, preferring the cached copy.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, error) {
	if s.cache != nil {
		var cached models.DashboardSummary
		err := s.cache.Get(ctx, dashboardCacheKey, &cached)
		if err == nil {
			if s.metrics != nil {
				s.metrics.RecordCacheLookup(true)
			}
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.RecordCacheLookup(false)
		}
	}

	summary, err := s.build(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardCacheKey, summary, s.ttl); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return summary, nil
}

// Invalidate drops the cached summary. Called after state-changing
// operations so admins see fresh counts.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, dashboardCacheKey); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}

func (s *DashboardService) build(ctx context.Context) (*models.DashboardSummary, error) {
	requestCounts, err := s.requests.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count document requests")
	}
	archivedCount, err := s.requests.CountArchived(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count archived requests")
	}
	enrollmentCounts, err := s.enrollments.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	inquiryCounts, err := s.inquiries.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count inquiries")
	}

	return &models.DashboardSummary{
		DocumentRequests: requestCounts,
		Enrollments:      enrollmentCounts,
		Inquiries:        inquiryCounts,
		ArchivedRequests: archivedCount,
		GeneratedAt:      time.Now().UTC(),
	}, nil
}
