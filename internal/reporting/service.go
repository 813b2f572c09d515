package reporting

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/clinicops/visitdesk/pkg/logging"
)

var reportingTracer = otel.Tracer("visitdesk.internal.reporting")

const cacheKey = "visitdesk:dashboard:stats"

// Service serves the dashboard aggregate with a short-lived Redis
// cache in front of the repository. The cache is an optimization: any
// Redis failure falls through to a fresh collect.
type Service struct {
	repo     Repository
	redis    *redis.Client
	cacheTTL time.Duration
	logger   *logging.Logger
}

// NewService constructs the dashboard service. redisClient may be nil,
// which disables caching.
func NewService(repo Repository, redisClient *redis.Client, cacheTTL time.Duration, logger *logging.Logger) *Service {
	if repo == nil {
		panic("reporting: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:     repo,
		redis:    redisClient,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Stats returns the dashboard aggregate, from cache when fresh.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	ctx, span := reportingTracer.Start(ctx, "reporting.stats")
	defer span.End()

	if cached := s.fromCache(ctx); cached != nil {
		return cached, nil
	}

	stats, err := s.repo.Collect(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.store(ctx, stats)
	return stats, nil
}

func (s *Service) fromCache(ctx context.Context) *Stats {
	if s.redis == nil || s.cacheTTL <= 0 {
		return nil
	}
	data, err := s.redis.Get(ctx, cacheKey).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		s.logger.Warn("dashboard cache read failed", "error", err)
		return nil
	}
	var stats Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		s.logger.Warn("dashboard cache entry corrupt", "error", err)
		return nil
	}
	return &stats
}

func (s *Service) store(ctx context.Context, stats *Stats) {
	if s.redis == nil || s.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(stats)
	if err != nil {
		s.logger.Warn("dashboard cache marshal failed", "error", err)
		return
	}
	if err := s.redis.Set(ctx, cacheKey, data, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("dashboard cache write failed", "error", err)
	}
}
