package controllers

import (
	"context"
	"strings"

	"github.com/ManuelReschke/StripeHooks/app/repository"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/billing"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/jobqueue"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/mail"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/telegram"
)

// StripeAdmin is the part of the Stripe client the admin API needs.
type StripeAdmin interface {
	ProductNames(ctx context.Context) (map[string]string, error)
	EnsureWebhookEndpoint(ctx context.Context, url, storedSecret string) (secret string, created bool, err error)
}

// AdminController serves the JSON admin API below /api/admin.
type AdminController struct {
	repos   *repository.Repositories
	queue   jobqueue.Backend
	baseURL string

	newStripe func(apiKey string) StripeAdmin
	verifyBot func(ctx context.Context, token string) (*telegram.BotInfo, error)
	sendMail  func(ctx context.Context, cfg mail.Config, to, subject, body string) error
}

// NewAdminController creates the admin controller. baseURL is the public
// address Stripe delivers webhooks to.
func NewAdminController(repos *repository.Repositories, queue jobqueue.Backend, baseURL string) *AdminController {
	return &AdminController{
		repos:   repos,
		queue:   queue,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		newStripe: func(apiKey string) StripeAdmin {
			return billing.NewStripeClient(apiKey)
		},
		verifyBot: telegram.Verify,
		sendMail:  mail.SendMail,
	}
}

// WebhookURL is the endpoint registered at Stripe.
func (ac *AdminController) WebhookURL() string {
	return ac.baseURL + "/webhook/stripe"
}
