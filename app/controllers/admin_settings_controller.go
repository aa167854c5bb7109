package controllers

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/StripeHooks/app/models"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/billing"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/mail"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/middleware"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/statistics"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/telegram"
)

const (
	smtpTestSubject = "StripeHooks SMTP Test"
	smtpTestBody    = "This is a test email from StripeHooks. Your SMTP settings are working correctly."
)

// HandleSettingsStatus reports which integrations are configured. Secrets
// are never returned.
func (ac *AdminController) HandleSettingsStatus(c *fiber.Ctx) error {
	snap, err := ac.repos.Setting.Snapshot(c.UserContext())
	if err != nil {
		log.Errorf("[Admin] Loading settings failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "settings_unavailable")
	}
	smtp := mail.ConfigFromSettings(snap)

	return c.JSON(fiber.Map{
		"stripe":      snap.StripeAPIKey() != "",
		"webhook":     snap.WebhookSecret() != "",
		"smtp":        smtp.Configured(),
		"telegram":    snap.TelegramBotToken() != "",
		"webhook_url": ac.WebhookURL(),
		"smtp_settings": fiber.Map{
			"host":         smtp.Host,
			"port":         smtp.Port,
			"security":     smtp.Security,
			"user":         smtp.User,
			"from_email":   smtp.From,
			"has_password": smtp.Password != "",
		},
	})
}

func (ac *AdminController) HandleSaveStripeAPIKey(c *fiber.Ctx) error {
	var req struct {
		APIKey string `json:"api_key" form:"api_key"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", err.Error())
	}
	key := models.NormalizeStripeKey(req.APIKey)
	if key == "" {
		return jsonError(c, fiber.StatusBadRequest, "invalid_api_key")
	}
	if err := ac.repos.Setting.SetValue(c.UserContext(), models.SettingStripeAPIKey, key); err != nil {
		log.Errorf("[Admin] Saving Stripe API key failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "settings_not_saved")
	}
	statistics.InvalidateProductNames(c.UserContext())
	return c.JSON(fiber.Map{"saved": true})
}

// HandleSetupStripeWebhook registers <BASE_URL>/webhook/stripe at Stripe and
// stores the signing secret of a newly created endpoint.
func (ac *AdminController) HandleSetupStripeWebhook(c *fiber.Ctx) error {
	ctx := c.UserContext()
	snap, err := ac.repos.Setting.Snapshot(ctx)
	if err != nil {
		log.Errorf("[Admin] Loading settings failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "settings_unavailable")
	}
	if snap.StripeAPIKey() == "" {
		return jsonError(c, fiber.StatusBadRequest, "stripe_not_configured", "Configure the Stripe API key first")
	}

	url := ac.WebhookURL()
	secret, created, err := ac.newStripe(snap.StripeAPIKey()).EnsureWebhookEndpoint(ctx, url, snap.WebhookSecret())
	if errors.Is(err, billing.ErrWebhookSecretMissing) {
		return jsonError(c, fiber.StatusConflict, "webhook_secret_missing", err.Error())
	}
	if err != nil {
		log.Errorf("[Admin] Stripe webhook setup for %s failed: %v", url, err)
		return jsonError(c, fiber.StatusBadGateway, "stripe_error", err.Error())
	}

	if created && secret != "" {
		if err := ac.repos.Setting.SetValue(ctx, models.SettingWebhookSecret, secret); err != nil {
			log.Errorf("[Admin] Saving webhook secret failed: %v", err)
			return jsonError(c, fiber.StatusInternalServerError, "settings_not_saved")
		}
	}
	log.Infof("[Admin] Stripe webhook configured for %s (created=%t)", url, created)
	return c.JSON(fiber.Map{"url": url, "created": created})
}

type smtpRequest struct {
	Host      string `json:"smtp_host" form:"smtp_host"`
	Port      string `json:"smtp_port" form:"smtp_port"`
	Security  string `json:"smtp_security" form:"smtp_security"`
	User      string `json:"smtp_user" form:"smtp_user"`
	Password  string `json:"smtp_password" form:"smtp_password"`
	FromEmail string `json:"smtp_from_email" form:"smtp_from_email"`
}

// HandleSaveSMTP stores the SMTP settings. An empty password keeps the
// stored one; an empty port selects the default for the security mode.
func (ac *AdminController) HandleSaveSMTP(c *fiber.Ctx) error {
	var req smtpRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", err.Error())
	}

	sec := mail.ParseSecurity(req.Security)
	port := sec.DefaultPort()
	if p := strings.TrimSpace(req.Port); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return jsonError(c, fiber.StatusBadRequest, "invalid_smtp", "port must be a number")
		}
		port = n
	}
	cfg := mail.Config{
		Host:     strings.TrimSpace(req.Host),
		Port:     port,
		Security: sec,
		User:     strings.TrimSpace(req.User),
		From:     strings.TrimSpace(req.FromEmail),
	}
	if err := cfg.Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_smtp", err.Error())
	}

	values := map[string]string{
		models.SettingSMTPHost:      cfg.Host,
		models.SettingSMTPPort:      strconv.Itoa(cfg.Port),
		models.SettingSMTPSecurity:  string(cfg.Security),
		models.SettingSMTPUser:      cfg.User,
		models.SettingSMTPFromEmail: cfg.From,
	}
	if req.Password != "" {
		values[models.SettingSMTPPassword] = req.Password
	}
	ctx := c.UserContext()
	for k, v := range values {
		if err := ac.repos.Setting.SetValue(ctx, k, v); err != nil {
			log.Errorf("[Admin] Saving %s failed: %v", k, err)
			return jsonError(c, fiber.StatusInternalServerError, "settings_not_saved")
		}
	}
	return c.JSON(fiber.Map{"saved": true})
}

// HandleTestSMTP sends a test message with the stored settings.
func (ac *AdminController) HandleTestSMTP(c *fiber.Ctx) error {
	var req struct {
		TestEmail string `json:"test_email" form:"test_email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", err.Error())
	}
	to := strings.TrimSpace(req.TestEmail)
	if to == "" {
		return jsonError(c, fiber.StatusBadRequest, "email_required")
	}

	ctx := c.UserContext()
	snap, err := ac.repos.Setting.Snapshot(ctx)
	if err != nil {
		log.Errorf("[Admin] Loading settings failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "settings_unavailable")
	}
	if err := ac.sendMail(ctx, mail.ConfigFromSettings(snap), to, smtpTestSubject, smtpTestBody); err != nil {
		if errors.Is(err, mail.ErrNotConfigured) {
			return jsonError(c, fiber.StatusBadRequest, "smtp_not_configured", err.Error())
		}
		return jsonError(c, fiber.StatusBadGateway, "smtp_error", err.Error())
	}
	return c.JSON(fiber.Map{"sent": true})
}

// HandleSaveTelegram verifies the token with getMe before storing it along
// with the bot identity.
func (ac *AdminController) HandleSaveTelegram(c *fiber.Ctx) error {
	var req struct {
		BotToken string `json:"bot_token" form:"bot_token"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", err.Error())
	}
	token := strings.TrimSpace(req.BotToken)
	if token == "" {
		return jsonError(c, fiber.StatusBadRequest, "token_required")
	}

	ctx := c.UserContext()
	info, err := ac.verifyBot(ctx, token)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "telegram_verify_failed", err.Error())
	}
	data, _ := json.Marshal(info)

	for k, v := range map[string]string{
		models.SettingTelegramBotToken: token,
		models.SettingTelegramBotInfo:  string(data),
	} {
		if err := ac.repos.Setting.SetValue(ctx, k, v); err != nil {
			log.Errorf("[Admin] Saving %s failed: %v", k, err)
			return jsonError(c, fiber.StatusInternalServerError, "settings_not_saved")
		}
	}
	log.Infof("[Admin] Telegram bot @%s configured", info.Username)
	return c.JSON(fiber.Map{"saved": true, "bot": info})
}

// HandleGetTelegram returns the cached bot identity, verifying the token
// again when nothing usable is cached.
func (ac *AdminController) HandleGetTelegram(c *fiber.Ctx) error {
	ctx := c.UserContext()
	snap, err := ac.repos.Setting.Snapshot(ctx)
	if err != nil {
		log.Errorf("[Admin] Loading settings failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "settings_unavailable")
	}
	token := snap.TelegramBotToken()
	if token == "" {
		return c.JSON(fiber.Map{"has_token": false})
	}

	var info telegram.BotInfo
	if cached := snap.Value(models.SettingTelegramBotInfo); cached != "" && json.Unmarshal([]byte(cached), &info) == nil {
		return c.JSON(fiber.Map{"has_token": true, "bot": info})
	}

	fresh, err := ac.verifyBot(ctx, token)
	if err != nil {
		return c.JSON(fiber.Map{"has_token": true, "bot_error": err.Error()})
	}
	if data, err := json.Marshal(fresh); err == nil {
		if err := ac.repos.Setting.SetValue(ctx, models.SettingTelegramBotInfo, string(data)); err != nil {
			log.Warnf("[Admin] Caching bot info failed: %v", err)
		}
	}
	return c.JSON(fiber.Map{"has_token": true, "bot": fresh})
}

// HandleChangePassword replaces the admin password.
func (ac *AdminController) HandleChangePassword(c *fiber.Ctx) error {
	var req struct {
		CurrentPassword string `json:"current_password" form:"current_password"`
		NewPassword     string `json:"new_password" form:"new_password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", err.Error())
	}

	err := middleware.ChangeAdminPassword(c.UserContext(), ac.repos.Setting, req.CurrentPassword, req.NewPassword)
	switch {
	case errors.Is(err, middleware.ErrWrongPassword):
		return jsonError(c, fiber.StatusForbidden, "wrong_password", err.Error())
	case errors.Is(err, middleware.ErrWeakPassword):
		return jsonError(c, fiber.StatusBadRequest, "weak_password", err.Error())
	case err != nil:
		log.Errorf("[Admin] Changing admin password failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "settings_not_saved")
	}
	return c.JSON(fiber.Map{"saved": true})
}
