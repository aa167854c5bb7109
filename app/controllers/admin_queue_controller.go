package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/StripeHooks/internal/pkg/statistics"
)

// HandleHistory returns the payment history aggregates for a window given by
// ?range=<preset>[&start=YYYY-MM-DD&end=YYYY-MM-DD].
func (ac *AdminController) HandleHistory(c *fiber.Ctx) error {
	ctx := c.UserContext()
	r := statistics.ResolveRange(c.Query("range"), c.Query("start"), c.Query("end"), time.Now())

	var namer statistics.ProductNamer
	if snap, err := ac.repos.Setting.Snapshot(ctx); err == nil && snap.StripeAPIKey() != "" {
		namer = ac.newStripe(snap.StripeAPIKey())
	}

	report, err := statistics.BuildReport(ctx, ac.repos.History, namer, r)
	if err != nil {
		log.Errorf("[Admin] Building history report failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "history_unavailable")
	}

	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.JSON(fiber.Map{
		"range":   report.Range,
		"rows":    report.Rows,
		"presets": statistics.Presets,
	})
}

// HandleQueueStats reports the job queue backend and its counters.
func (ac *AdminController) HandleQueueStats(c *fiber.Ctx) error {
	stats, err := ac.queue.Stats(c.UserContext())
	if err != nil {
		log.Errorf("[Admin] Reading queue stats failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "queue_unavailable")
	}
	return c.JSON(stats)
}
