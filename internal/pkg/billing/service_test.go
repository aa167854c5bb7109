package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/StripeHooks/app/models"
	"github.com/ManuelReschke/StripeHooks/app/repository"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/database"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/jobqueue"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/notify"
)

type fakeLookup struct {
	names     map[string]string
	customers map[string][2]string
}

func (f fakeLookup) ProductName(_ context.Context, id string) string {
	if n, ok := f.names[id]; ok {
		return n
	}
	return id
}

func (f fakeLookup) CustomerInfo(_ context.Context, id string) (string, string) {
	c := f.customers[id]
	return c[0], c[1]
}

type captureSender struct {
	mu   sync.Mutex
	sent []string
	msgs []notify.Message
	err  error
}

func (c *captureSender) Send(_ context.Context, dest string, msg notify.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, dest)
	c.msgs = append(c.msgs, msg)
	return c.err
}

type harness struct {
	repos *repository.Repositories
	email *captureSender
	chat  *captureSender
	svc   *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	h := &harness{
		repos: repository.NewRepositories(db),
		email: &captureSender{},
		chat:  &captureSender{},
	}
	lookup := fakeLookup{
		names:     map[string]string{"prod_A": "Course"},
		customers: map[string][2]string{"cus_1": {"Ada", "ada@example.com"}},
	}
	h.svc = NewService(h.repos,
		func(models.SettingsSnapshot) MetadataLookup { return lookup },
		func(models.SettingsSnapshot) *notify.Dispatcher {
			return notify.NewDispatcher(map[models.RuleChannel]notify.Sender{
				models.ChannelEmail:    h.email,
				models.ChannelTelegram: h.chat,
			}, 2)
		},
	)
	return h
}

func (h *harness) addRule(t *testing.T, ch models.RuleChannel, dest string) {
	t.Helper()
	_, err := h.repos.Rule.Add(context.Background(), &models.NotificationRule{ProductID: "prod_A", Channel: ch, Destination: dest})
	require.NoError(t, err)
}

func (h *harness) historyCount(t *testing.T, txID string) int64 {
	t.Helper()
	n, err := h.repos.History.CountByTransactionID(context.Background(), txID)
	require.NoError(t, err)
	return n
}

const scenarioEvent = `{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","amount":1999,"currency":"usd","metadata":{"product_id":"prod_A"}}}}`

func TestProcessEvent_Scenario(t *testing.T) {
	h := newHarness(t)
	h.addRule(t, models.ChannelEmail, "ops@example.com")

	res, err := h.svc.ProcessEvent(context.Background(), []byte(scenarioEvent))
	require.NoError(t, err)
	assert.True(t, res.Recorded)
	assert.Equal(t, 1, res.Rules)
	require.Len(t, res.Outcomes, 1)
	assert.True(t, res.Outcomes[0].OK())

	entry, err := h.repos.History.GetByTransactionID(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, "prod_A", entry.ProductID)
	assert.Equal(t, "Course", entry.ProductName)
	assert.Equal(t, int64(1999), entry.Amount)
	assert.Equal(t, "usd", entry.Currency)

	require.Len(t, h.email.msgs, 1)
	assert.Equal(t, []string{"ops@example.com"}, h.email.sent)
	assert.Equal(t, "Payment received for Course", h.email.msgs[0].Subject)
	assert.Contains(t, h.email.msgs[0].Body, "Amount: 19.99 USD")
	assert.Empty(t, h.chat.sent)
}

func TestProcessEvent_DuplicateDelivery(t *testing.T) {
	h := newHarness(t)
	h.addRule(t, models.ChannelTelegram, "12345")

	for i := 0; i < 3; i++ {
		res, err := h.svc.ProcessEvent(context.Background(), []byte(scenarioEvent))
		require.NoError(t, err)
		assert.Equal(t, i == 0, res.Recorded)
	}

	assert.Equal(t, int64(1), h.historyCount(t, "pi_1"))
	// the ledger is deduplicated, notifications are not
	assert.Len(t, h.chat.sent, 3)
}

func TestProcessEvent_ZeroRulesStillRecords(t *testing.T) {
	h := newHarness(t)

	res, err := h.svc.ProcessEvent(context.Background(), []byte(scenarioEvent))
	require.NoError(t, err)
	assert.True(t, res.Recorded)
	assert.Zero(t, res.Rules)
	assert.Empty(t, res.Outcomes)
	assert.Equal(t, int64(1), h.historyCount(t, "pi_1"))
	assert.Empty(t, h.email.sent)
	assert.Empty(t, h.chat.sent)
}

func TestProcessEvent_DisabledRulesAreSkipped(t *testing.T) {
	h := newHarness(t)
	rule := &models.NotificationRule{ProductID: "prod_A", Channel: models.ChannelEmail, Destination: "ops@example.com"}
	_, err := h.repos.Rule.Add(context.Background(), rule)
	require.NoError(t, err)
	_, err = h.repos.Rule.SetEnabled(context.Background(), rule.ID, false)
	require.NoError(t, err)

	res, err := h.svc.ProcessEvent(context.Background(), []byte(scenarioEvent))
	require.NoError(t, err)
	assert.Zero(t, res.Rules)
	assert.Empty(t, h.email.sent)
}

func TestProcessEvent_OneChannelFails(t *testing.T) {
	h := newHarness(t)
	h.email.err = errors.New("smtp: 535 authentication failed")
	h.addRule(t, models.ChannelEmail, "ops@example.com")
	h.addRule(t, models.ChannelTelegram, "12345")

	res, err := h.svc.ProcessEvent(context.Background(), []byte(scenarioEvent))
	require.NoError(t, err, "channel failures never fail the job")
	require.Len(t, res.Outcomes, 2)
	assert.False(t, res.Outcomes[0].OK())
	assert.True(t, res.Outcomes[1].OK())
	assert.Equal(t, []string{"ops@example.com"}, h.email.sent)
	assert.Equal(t, []string{"12345"}, h.chat.sent)
}

func TestProcessEvent_NoProductID(t *testing.T) {
	h := newHarness(t)
	h.addRule(t, models.ChannelEmail, "ops@example.com")

	body := `{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_9","amount":100,"metadata":{}}}}`
	_, err := h.svc.ProcessEvent(context.Background(), []byte(body))
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.Zero(t, h.historyCount(t, "pi_9"))
	assert.Empty(t, h.email.sent)
}

func TestProcessEvent_CustomerLookup(t *testing.T) {
	h := newHarness(t)
	h.addRule(t, models.ChannelTelegram, "12345")

	body := `{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_2","amount":500,"currency":"eur","customer":"cus_1","metadata":{"product_id":"prod_A"}}}}`
	_, err := h.svc.ProcessEvent(context.Background(), []byte(body))
	require.NoError(t, err)

	require.Len(t, h.chat.msgs, 1)
	assert.Contains(t, h.chat.msgs[0].Body, "Client name: Ada")
	assert.Contains(t, h.chat.msgs[0].Body, "Client email: ada@example.com")
	assert.Contains(t, h.chat.msgs[0].Body, "Amount: 5.00 EUR")
}

func TestHandlePaymentJob(t *testing.T) {
	h := newHarness(t)
	h.addRule(t, models.ChannelEmail, "ops@example.com")

	job := &jobqueue.Job{ID: "job-1", Payload: jobqueue.PaymentEventJobPayload{EventID: "evt_1", RawEvent: scenarioEvent}.ToMap()}
	require.NoError(t, h.svc.HandlePaymentJob(context.Background(), job))
	assert.Equal(t, int64(1), h.historyCount(t, "pi_1"))

	bad := &jobqueue.Job{ID: "job-2", Payload: jobqueue.PaymentEventJobPayload{
		EventID:  "evt_2",
		RawEvent: `{"id":"evt_2","type":"payment_intent.succeeded","data":{"object":{"id":"pi_x"}}}`,
	}.ToMap()}
	assert.NoError(t, h.svc.HandlePaymentJob(context.Background(), bad), "extraction failures are not retried")

	broken := &jobqueue.Job{ID: "job-3", Payload: map[string]interface{}{}}
	assert.NoError(t, h.svc.HandlePaymentJob(context.Background(), broken))
}

type failingSettings struct{ repository.SettingRepository }

func (failingSettings) Snapshot(context.Context) (models.SettingsSnapshot, error) {
	return models.SettingsSnapshot{}, fmt.Errorf("database is locked")
}

func TestHandlePaymentJob_RetriesSettingsFailure(t *testing.T) {
	h := newHarness(t)
	h.svc.settings = failingSettings{}

	job := &jobqueue.Job{ID: "job-1", Payload: jobqueue.PaymentEventJobPayload{EventID: "evt_1", RawEvent: scenarioEvent}.ToMap()}
	err := h.svc.HandlePaymentJob(context.Background(), job)
	assert.ErrorIs(t, err, ErrTemporary)
	assert.Zero(t, h.historyCount(t, "pi_1"))
}

type failingRules struct{ repository.RuleRepository }

func (failingRules) ListEnabledByProduct(context.Context, string) ([]models.NotificationRule, error) {
	return nil, errors.New("database is locked")
}

func TestHandlePaymentJob_RuleFailureRetryKeepsOneRow(t *testing.T) {
	h := newHarness(t)
	rules := h.svc.rules
	h.svc.rules = failingRules{rules}

	job := &jobqueue.Job{ID: "job-1", Payload: jobqueue.PaymentEventJobPayload{EventID: "evt_1", RawEvent: scenarioEvent}.ToMap()}
	err := h.svc.HandlePaymentJob(context.Background(), job)
	assert.ErrorIs(t, err, ErrTemporary)
	assert.Equal(t, int64(1), h.historyCount(t, "pi_1"), "history is written before rules are read")

	h.svc.rules = rules
	require.NoError(t, h.svc.HandlePaymentJob(context.Background(), job))
	assert.Equal(t, int64(1), h.historyCount(t, "pi_1"))
}
