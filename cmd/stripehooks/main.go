package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/StripeHooks/app/repository"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/billing"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/cache"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/database"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/env"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/jobqueue"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/middleware"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/router"
)

const shutdownTimeout = 15 * time.Second

func main() {
	app, manager := NewApplication()

	go func() {
		addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "0.0.0.0"), env.GetEnv("APP_PORT", "4000"))
		if err := app.Listen(addr); err != nil {
			log.Fatalf("[Server] listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("[Server] shutting down...")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Errorf("[Server] shutdown: %v", err)
	}
	// accepted webhooks stay in Redis; the memory queue drains what it holds
	manager.Stop()
	if err := cache.Close(); err != nil {
		log.Warnf("[Cache] close: %v", err)
	}
	log.Info("[Server] stopped")
}

// NewApplication wires storage, the job queue and the HTTP routes. The queue
// manager is already started.
func NewApplication() (*fiber.App, *jobqueue.Manager) {
	env.SetupEnvFile()
	db := database.SetupDatabase()
	client := cache.SetupCache()
	repos := repository.NewFactory(db).GetRepositories()

	if _, err := middleware.EnsureAdminPassword(context.Background(), repos.Setting, env.GetEnv("ADMIN_PASSWORD", "")); err != nil {
		panic(fmt.Errorf("initialise admin password: %w", err))
	}

	manager := jobqueue.NewManager(client, env.GetEnvInt("QUEUE_WORKERS", 4))
	queue := manager.GetQueue()
	queue.RegisterHandler(jobqueue.JobTypePaymentSucceeded, billing.NewService(repos, nil, nil).HandlePaymentJob)
	manager.Start()

	app := fiber.New(fiber.Config{
		AppName:   "StripeHooks",
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", middleware.RequireAdmin(repos.Setting), monitor.New())

	router.InstallRouter(app, router.Dependencies{
		Repos:            repos,
		Queue:            queue,
		BaseURL:          env.GetEnv("BASE_URL", "http://localhost:4000"),
		WebhookTolerance: env.GetEnvSeconds("WEBHOOK_TOLERANCE_SECONDS", billing.DefaultTolerance),
	})

	return app, manager
}
