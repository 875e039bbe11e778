package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-gate-api/internal/models"
	appErrors "github.com/noah-isme/classroom-gate-api/pkg/errors"
)

// AnalyticsRepository describes the persistence layer required by AnalyticsService.
type AnalyticsRepository interface {
	CourseSummary(ctx context.Context, courseID string) (*models.CourseSummary, error)
	StudentProgress(ctx context.Context, studentID, courseID string) (*models.StudentProgress, error)
}

// AnalyticsService provides read-optimised access to course aggregates with cache integration.
// Callers are expected to have authorized the request already.
type AnalyticsService struct {
	repo    AnalyticsRepository
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	enabled bool
	now     func() time.Time
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(repo AnalyticsRepository, cache *CacheService, metrics *MetricsService, logger *zap.Logger, enabled bool) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{repo: repo, cache: cache, metrics: metrics, logger: logger, enabled: enabled, now: time.Now}
}

// Enabled reports whether analytics actions are switched on.
func (s *AnalyticsService) Enabled() bool {
	return s != nil && s.enabled
}

// CourseSummary returns aggregated activity for a course. The boolean indicates whether data originated from cache.
func (s *AnalyticsService) CourseSummary(ctx context.Context, courseID string) (*models.CourseSummary, bool, error) {
	if !s.Enabled() {
		return nil, false, appErrors.ErrFeatureDisabled
	}
	cacheKey := makeAnalyticsCacheKey("course_summary", courseID)
	var cached models.CourseSummary
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
		return nil, false, fmt.Errorf("get course summary cache: %w", err)
	} else if hit {
		return &cached, true, nil
	}

	start := time.Now()
	summary, err := s.repo.CourseSummary(ctx, courseID)
	if err != nil {
		return nil, false, err
	}
	s.metrics.ObserveDBQuery("analytics_course_summary", time.Since(start))
	summary.GeneratedAt = s.now().UTC()

	if err := s.cache.Set(ctx, cacheKey, summary, 0); err != nil {
		s.logger.Warn("cache course summary", zap.Error(err))
	}
	return summary, false, nil
}

// StudentProgress returns one student's standing in a course.
func (s *AnalyticsService) StudentProgress(ctx context.Context, studentID, courseID string) (*models.StudentProgress, bool, error) {
	if !s.Enabled() {
		return nil, false, appErrors.ErrFeatureDisabled
	}
	cacheKey := makeAnalyticsCacheKey("student_progress", courseID, studentID)
	var cached models.StudentProgress
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
		return nil, false, fmt.Errorf("get student progress cache: %w", err)
	} else if hit {
		return &cached, true, nil
	}

	start := time.Now()
	progress, err := s.repo.StudentProgress(ctx, studentID, courseID)
	if err != nil {
		return nil, false, err
	}
	s.metrics.ObserveDBQuery("analytics_student_progress", time.Since(start))
	progress.GeneratedAt = s.now().UTC()

	if err := s.cache.Set(ctx, cacheKey, progress, 0); err != nil {
		s.logger.Warn("cache student progress", zap.Error(err))
	}
	return progress, false, nil
}

// InvalidateCourse drops every cached aggregate for the course. Mutations that change
// enrollment, assignment or grade state call it after committing.
func (s *AnalyticsService) InvalidateCourse(ctx context.Context, courseID string) {
	if s == nil || !s.cache.Enabled() || courseID == "" {
		return
	}
	for _, kind := range []string{"course_summary", "student_progress"} {
		pattern := makeAnalyticsCacheKey(kind, courseID) + "*"
		if err := s.cache.Invalidate(ctx, pattern); err != nil {
			s.logger.Warn("invalidate analytics cache", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}

func makeAnalyticsCacheKey(kind string, parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			part = "-"
		}
		cleaned = append(cleaned, part)
	}
	return fmt.Sprintf("analytics:%s:%s", kind, strings.Join(cleaned, ":"))
}
