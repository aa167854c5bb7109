package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/StripeHooks/app/controllers"
)

// HttpRouter holds the public, unauthenticated routes.
type HttpRouter struct {
	webhook *controllers.WebhookController
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", controllers.HandleHealth)
	app.Post("/webhook/stripe", h.webhook.HandleStripeWebhook)
}

func NewHttpRouter(deps Dependencies) *HttpRouter {
	return &HttpRouter{
		webhook: controllers.NewWebhookController(deps.Repos.Setting, deps.Queue, deps.WebhookTolerance),
	}
}
