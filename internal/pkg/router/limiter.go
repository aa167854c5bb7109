package router

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/StripeHooks/internal/pkg/cache"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/env"
)

// redisDatabases is the default number of logical databases a Redis server has.
const redisDatabases = 16

// limiterDatabase keeps limiter counters apart from the job queue database.
// LIMITER_CACHE_DB overrides it; otherwise the next database is used.
func limiterDatabase(queueDB int) int {
	if db := env.GetEnvInt("LIMITER_CACHE_DB", -1); db >= 0 && db != queueDB {
		return db
	}
	if queueDB+1 < redisDatabases {
		return queueDB + 1
	}
	return queueDB - 1
}

// limiterConfig throttles the admin API per client IP. Counters live in
// Redis when a cache is connected so they survive restarts, in memory
// otherwise.
func limiterConfig() limiter.Config {
	cfg := limiter.Config{
		Max:        env.GetEnvInt("ADMIN_RATE_LIMIT", 60),
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited"})
		},
	}
	if storage := limiterStorage(); storage != nil {
		cfg.Storage = storage
	}
	return cfg
}

func limiterStorage() fiber.Storage {
	client := cache.GetClient()
	if client == nil {
		return nil
	}

	opts := client.Options()
	host, port := "localhost", 6379
	if h, p, err := net.SplitHostPort(opts.Addr); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: opts.Password,
		Database: limiterDatabase(opts.DB),
		Reset:    false,
	})
}
