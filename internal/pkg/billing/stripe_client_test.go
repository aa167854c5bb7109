package billing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStripe struct {
	mu        sync.Mutex
	endpoints string
	created   int
	updated   int
}

func newFakeStripe(t *testing.T, f *fakeStripe) *StripeClient {
	t.Helper()
	if f.endpoints == "" {
		f.endpoints = `[]`
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/products/prod_A", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"prod_A","object":"product","name":"Course","active":true}`))
	})
	mux.HandleFunc("/v1/products", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"object":"list","url":"/v1/products","has_more":false,"data":[
			{"id":"prod_A","object":"product","name":"Course"},
			{"id":"prod_B","object":"product","name":"Ebook"}]}`))
	})
	mux.HandleFunc("/v1/customers/cus_1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"cus_1","object":"customer","name":"Ada","email":"ada@example.com"}`))
	})
	mux.HandleFunc("/v1/webhook_endpoints", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.Method == http.MethodPost {
			f.created++
			_, _ = w.Write([]byte(`{"id":"we_new","object":"webhook_endpoint","url":"https://shop.example.com/webhook/stripe","secret":"whsec_new"}`))
			return
		}
		_, _ = w.Write([]byte(`{"object":"list","url":"/v1/webhook_endpoints","has_more":false,"data":` + f.endpoints + `}`))
	})
	mux.HandleFunc("/v1/webhook_endpoints/we_old", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.updated++
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"id":"we_old","object":"webhook_endpoint","url":"https://shop.example.com/webhook/stripe"}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such resource"}}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewStripeClientWithBackends("sk_test_123", NewStripeBackends(srv.URL))
}

func TestStripeClient_Lookups(t *testing.T) {
	c := newFakeStripe(t, &fakeStripe{})
	ctx := context.Background()

	assert.Equal(t, "Course", c.ProductName(ctx, "prod_A"))
	assert.Equal(t, "prod_missing", c.ProductName(ctx, "prod_missing"), "lookup failures fall back to the id")

	name, email := c.CustomerInfo(ctx, "cus_1")
	assert.Equal(t, "Ada", name)
	assert.Equal(t, "ada@example.com", email)

	name, email = c.CustomerInfo(ctx, "cus_missing")
	assert.Empty(t, name)
	assert.Empty(t, email)

	names, err := c.ProductNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"prod_A": "Course", "prod_B": "Ebook"}, names)
}

func TestStripeClient_EnsureWebhookEndpoint_Create(t *testing.T) {
	f := &fakeStripe{}
	c := newFakeStripe(t, f)

	secret, created, err := c.EnsureWebhookEndpoint(context.Background(), "https://shop.example.com/webhook/stripe", "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "whsec_new", secret)
	assert.Equal(t, 1, f.created)
}

func TestStripeClient_EnsureWebhookEndpoint_Update(t *testing.T) {
	f := &fakeStripe{endpoints: `[{"id":"we_old","object":"webhook_endpoint","url":"https://shop.example.com/webhook/stripe"}]`}
	c := newFakeStripe(t, f)
	url := "https://shop.example.com/webhook/stripe"

	secret, created, err := c.EnsureWebhookEndpoint(context.Background(), url, "whsec_stored")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "whsec_stored", secret)
	assert.Equal(t, 1, f.updated)
	assert.Equal(t, 0, f.created)

	_, _, err = c.EnsureWebhookEndpoint(context.Background(), url, "")
	assert.ErrorIs(t, err, ErrWebhookSecretMissing)
}

func TestLookupFromSettings_NoKey(t *testing.T) {
	l := LookupFromSettings("  ")
	assert.Equal(t, "prod_A", l.ProductName(context.Background(), "prod_A"))
	name, email := l.CustomerInfo(context.Background(), "cus_1")
	assert.Empty(t, name)
	assert.Empty(t, email)
}
