package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/StripeHooks/app/repository"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/jobqueue"
)

// Router registers one group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies are the shared services handed to every router.
type Dependencies struct {
	Repos            *repository.Repositories
	Queue            jobqueue.Backend
	BaseURL          string
	WebhookTolerance time.Duration
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	// Public routes first so the admin middleware never sees webhook traffic.
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
