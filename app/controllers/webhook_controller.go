package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/StripeHooks/app/models"
	"github.com/ManuelReschke/StripeHooks/app/repository"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/billing"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/jobqueue"
)

// WebhookController accepts Stripe deliveries. It only authenticates and
// enqueues; everything else runs in the payment job.
type WebhookController struct {
	settings  repository.SettingRepository
	queue     jobqueue.Backend
	tolerance time.Duration
	now       func() time.Time
}

// NewWebhookController creates the webhook controller. A non-positive
// tolerance selects billing.DefaultTolerance.
func NewWebhookController(settings repository.SettingRepository, queue jobqueue.Backend, tolerance time.Duration) *WebhookController {
	if tolerance <= 0 {
		tolerance = billing.DefaultTolerance
	}
	return &WebhookController{
		settings:  settings,
		queue:     queue,
		tolerance: tolerance,
		now:       time.Now,
	}
}

// HandleStripeWebhook answers 200 once an authenticated event is accepted.
// The provider retries anything else, so 5xx is only used when nothing was
// queued.
func (wc *WebhookController) HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.Body()...)
	header := c.Get(billing.SignatureHeader)

	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()

	secret, err := wc.settings.GetValue(ctx, models.SettingWebhookSecret)
	if err != nil {
		log.Errorf("[Webhook] Loading webhook secret failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "settings_unavailable")
	}

	if err := billing.VerifyStripeWebhookSignature(rawBody, header, secret, wc.tolerance, wc.now()); err != nil {
		if errors.Is(err, billing.ErrNotConfigured) {
			log.Warn("[Webhook] Delivery rejected, no webhook secret configured")
			return jsonError(c, fiber.StatusServiceUnavailable, "webhook_not_configured")
		}
		log.Warnf("[Webhook] Rejected delivery from %s: %v", c.IP(), err)
		return jsonError(c, fiber.StatusBadRequest, "invalid_signature")
	}

	ev, err := billing.ParseEvent(rawBody)
	if err != nil {
		log.Warnf("[Webhook] Invalid payload: %v", err)
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload")
	}

	if !ev.IsPaymentSucceeded() {
		log.Debugf("[Webhook] Ignoring event %s of type %s", ev.ID, ev.Type)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
	}

	payload := jobqueue.PaymentEventJobPayload{
		EventID:    ev.ID,
		EventType:  ev.Type,
		RawEvent:   string(rawBody),
		ReceivedAt: wc.now().Unix(),
	}
	job, err := wc.queue.EnqueueJob(ctx, jobqueue.JobTypePaymentSucceeded, payload.ToMap())
	if err != nil {
		log.Errorf("[Webhook] Could not enqueue event %s: %v", ev.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "enqueue_failed")
	}

	log.Infof("[Webhook] Event %s queued as job %s", ev.ID, job.ID)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}

// HandleHealth is the unauthenticated liveness probe.
func HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
