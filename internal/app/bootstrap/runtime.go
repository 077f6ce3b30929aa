package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/patient-support-platform/internal/compliance"
	appconfig "github.com/wolfman30/patient-support-platform/internal/config"
	"github.com/wolfman30/patient-support-platform/internal/intake"
	"github.com/wolfman30/patient-support-platform/pkg/logging"
)

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
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildPostgresPool connects to DATABASE_URL, or returns nil when unset.
func BuildPostgresPool(ctx context.Context, cfg *appconfig.Config) (*pgxpool.Pool, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	return pool, nil
}

// BuildRepository picks the referral store: Postgres when a pool is available,
// then Redis, then process memory.
func BuildRepository(cfg *appconfig.Config, pool *pgxpool.Pool, redisClient *redis.Client, logger *logging.Logger) intake.Repository {
	if logger == nil {
		logger = logging.Default()
	}
	switch {
	case pool != nil:
		logger.Info("referral repository configured", "backend", "postgres")
		return intake.NewPostgresRepository(pool)
	case redisClient != nil:
		ttl := cfg.ReferralCacheTTL
		logger.Info("referral repository configured", "backend", "redis", "ttl", ttl.String())
		return intake.NewRedisRepository(redisClient, ttl)
	default:
		logger.Warn("no DATABASE_URL or REDIS_ADDR; referrals are kept in memory only")
		return intake.NewInMemoryRepository()
	}
}

// BuildAuditService opens a database/sql handle over the pool for the audit
// trail. Both return values are nil when Postgres is not configured.
func BuildAuditService(pool *pgxpool.Pool) (*compliance.AuditService, *sql.DB) {
	if pool == nil {
		return nil, nil
	}
	sqlDB := stdlib.OpenDBFromPool(pool)
	return compliance.NewAuditService(sqlDB), sqlDB
}
