package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/clinicops/visitdesk/internal/config"
	"github.com/clinicops/visitdesk/internal/reporting"
	"github.com/clinicops/visitdesk/internal/users"
	"github.com/clinicops/visitdesk/internal/visits"
	"github.com/clinicops/visitdesk/pkg/logging"
)

// Stores bundles the persistence layer handed to the API wiring.
// Pool is nil when the process runs on in-memory stores.
type Stores struct {
	Users     users.Repository
	Visits    visits.Repository
	Reporting reporting.Repository
	Pool      *pgxpool.Pool
}

// Close releases the underlying pool, if any.
func (s *Stores) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// BuildStores wires Postgres-backed repositories when DATABASE_URL is
// set, and falls back to in-memory stores otherwise.
func BuildStores(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*Stores, error) {
	if logger == nil {
		logger = logging.Default()
	}

	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
		userRepo := users.NewInMemoryRepository()
		visitRepo := visits.NewInMemoryRepository(userRepo)
		return &Stores{
			Users:     userRepo,
			Visits:    visitRepo,
			Reporting: reporting.NewInMemoryRepository(visitRepo, userRepo),
		}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping database: %w", err)
	}

	return &Stores{
		Users:     users.NewPostgresRepository(pool),
		Visits:    visits.NewPostgresRepository(pool),
		Reporting: reporting.NewPostgresRepository(pool),
		Pool:      pool,
	}, nil
}

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, dashboard caching disabled", "error", err)
		return nil
	}
	return client
}
