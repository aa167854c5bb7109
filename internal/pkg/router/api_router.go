package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/StripeHooks/app/controllers"
	"github.com/ManuelReschke/StripeHooks/app/repository"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/middleware"
)

type ApiRouter struct {
	settings repository.SettingRepository
	admin    *controllers.AdminController
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiterConfig()))
	admin := api.Group("/admin", middleware.RequireAdmin(h.settings))

	// Notification rules
	admin.Get("/rules", h.admin.HandleListRules)
	admin.Post("/rules", h.admin.HandleCreateRule)
	admin.Delete("/rules/:id", h.admin.HandleDeleteRule)
	admin.Post("/rules/:id/toggle", h.admin.HandleToggleRule)

	// Integrations
	admin.Get("/settings/status", h.admin.HandleSettingsStatus)
	admin.Post("/settings/stripe/api-key", h.admin.HandleSaveStripeAPIKey)
	admin.Post("/settings/stripe/webhook", h.admin.HandleSetupStripeWebhook)
	admin.Post("/settings/smtp", h.admin.HandleSaveSMTP)
	admin.Post("/settings/smtp/test", h.admin.HandleTestSMTP)
	admin.Get("/settings/telegram", h.admin.HandleGetTelegram)
	admin.Post("/settings/telegram", h.admin.HandleSaveTelegram)
	admin.Post("/settings/account/password", h.admin.HandleChangePassword)

	// Reporting
	admin.Get("/history", h.admin.HandleHistory)
	admin.Get("/queue/stats", h.admin.HandleQueueStats)
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{
		settings: deps.Repos.Setting,
		admin:    controllers.NewAdminController(deps.Repos, deps.Queue, deps.BaseURL),
	}
}
