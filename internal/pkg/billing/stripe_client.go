package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"

	"github.com/ManuelReschke/StripeHooks/internal/pkg/env"
)

// ErrWebhookSecretMissing is returned when an endpoint already exists at
// Stripe but no signing secret is stored locally. Stripe only reveals the
// secret on creation, so the endpoint has to be recreated.
var ErrWebhookSecretMissing = errors.New("webhook endpoint exists but no signing secret is stored; delete it in the Stripe dashboard and recreate")

// MetadataLookup resolves display data for a payment. Lookups never fail;
// they degrade to their fallback values.
type MetadataLookup interface {
	ProductName(ctx context.Context, productID string) string
	CustomerInfo(ctx context.Context, customerID string) (name, email string)
}

// StripeClient talks to the Stripe API with a single account key.
type StripeClient struct {
	api *client.API
}

// NewStripeClient builds a client for apiKey. A non-empty STRIPE_API_URL
// overrides the API host, which tests point at an httptest server.
func NewStripeClient(apiKey string) *StripeClient {
	var backends *stripe.Backends
	if base := strings.TrimSpace(env.GetEnv("STRIPE_API_URL", "")); base != "" {
		backends = NewStripeBackends(base)
	}
	return NewStripeClientWithBackends(apiKey, backends)
}

// NewStripeClientWithBackends builds a client with explicit backends; nil
// selects the Stripe defaults.
func NewStripeClientWithBackends(apiKey string, backends *stripe.Backends) *StripeClient {
	api := &client.API{}
	api.Init(apiKey, backends)
	return &StripeClient{api: api}
}

// NewStripeBackends returns API backends pointed at baseURL without retries.
func NewStripeBackends(baseURL string) *stripe.Backends {
	return &stripe.Backends{
		API: stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(strings.TrimRight(baseURL, "/")),
			MaxNetworkRetries: stripe.Int64(0),
		}),
	}
}

// ProductName returns the product's name, or productID on any failure.
func (c *StripeClient) ProductName(ctx context.Context, productID string) string {
	if strings.TrimSpace(productID) == "" {
		return productID
	}
	params := &stripe.ProductParams{}
	params.Context = ctx
	p, err := c.api.Products.Get(productID, params)
	if err != nil {
		log.Debugf("[Stripe] Could not fetch product %s: %v", productID, err)
		return productID
	}
	if strings.TrimSpace(p.Name) == "" {
		return productID
	}
	return p.Name
}

// CustomerInfo returns the customer's name and email, empty on any failure.
func (c *StripeClient) CustomerInfo(ctx context.Context, customerID string) (string, string) {
	if strings.TrimSpace(customerID) == "" {
		return "", ""
	}
	params := &stripe.CustomerParams{}
	params.Context = ctx
	cust, err := c.api.Customers.Get(customerID, params)
	if err != nil {
		log.Debugf("[Stripe] Could not fetch customer %s: %v", customerID, err)
		return "", ""
	}
	return cust.Name, cust.Email
}

// ProductNames lists active products as id -> name for the admin API.
func (c *StripeClient) ProductNames(ctx context.Context) (map[string]string, error) {
	params := &stripe.ProductListParams{Active: stripe.Bool(true)}
	params.Limit = stripe.Int64(100)
	params.Context = ctx

	names := make(map[string]string)
	it := c.api.Products.List(params)
	for it.Next() {
		p := it.Product()
		names[p.ID] = p.Name
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return names, nil
}

// EnsureWebhookEndpoint makes sure a Stripe endpoint at url is subscribed to
// payment_intent.succeeded. An existing endpoint is updated in place and
// storedSecret is returned unchanged; otherwise a new endpoint is created and
// its signing secret returned with created == true.
func (c *StripeClient) EnsureWebhookEndpoint(ctx context.Context, url, storedSecret string) (string, bool, error) {
	events := stripe.StringSlice([]string{EventTypePaymentSucceeded})

	listParams := &stripe.WebhookEndpointListParams{}
	listParams.Limit = stripe.Int64(100)
	listParams.Context = ctx

	var existing *stripe.WebhookEndpoint
	it := c.api.WebhookEndpoints.List(listParams)
	for it.Next() {
		if ep := it.WebhookEndpoint(); ep.URL == url {
			existing = ep
			break
		}
	}
	if err := it.Err(); err != nil {
		return "", false, fmt.Errorf("list webhook endpoints: %w", err)
	}

	if existing != nil {
		params := &stripe.WebhookEndpointParams{EnabledEvents: events}
		params.Context = ctx
		if _, err := c.api.WebhookEndpoints.Update(existing.ID, params); err != nil {
			return "", false, fmt.Errorf("update webhook endpoint %s: %w", existing.ID, err)
		}
		if strings.TrimSpace(storedSecret) == "" {
			return "", false, ErrWebhookSecretMissing
		}
		return storedSecret, false, nil
	}

	params := &stripe.WebhookEndpointParams{
		URL:           stripe.String(url),
		EnabledEvents: events,
		Description:   stripe.String("Payment notifications"),
	}
	params.Context = ctx
	ep, err := c.api.WebhookEndpoints.New(params)
	if err != nil {
		return "", false, fmt.Errorf("create webhook endpoint: %w", err)
	}
	return ep.Secret, true, nil
}

// fallbackLookup is used when no API key is configured.
type fallbackLookup struct{}

func (fallbackLookup) ProductName(_ context.Context, productID string) string { return productID }

func (fallbackLookup) CustomerInfo(context.Context, string) (string, string) { return "", "" }

// LookupFromSettings returns a Stripe-backed lookup when apiKey is set and a
// fallback-only lookup otherwise.
func LookupFromSettings(apiKey string) MetadataLookup {
	if strings.TrimSpace(apiKey) == "" {
		return fallbackLookup{}
	}
	return NewStripeClient(apiKey)
}
