package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/StripeHooks/app/models"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/database"
)

func newTestRepositories(t *testing.T) *Repositories {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewFactory(db).GetRepositories()
}

func TestSettingRepository_GetSetAndSnapshot(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	v, err := repos.Setting.GetValue(ctx, models.SettingWebhookSecret)
	require.NoError(t, err)
	assert.Equal(t, "", v, "missing key is an empty value, not an error")

	require.NoError(t, repos.Setting.SetValue(ctx, models.SettingWebhookSecret, "whsec_1"))
	require.NoError(t, repos.Setting.SetValue(ctx, models.SettingWebhookSecret, "whsec_2"))
	require.NoError(t, repos.Setting.SetValue(ctx, models.SettingSMTPPort, "2525"))

	v, err = repos.Setting.GetValue(ctx, models.SettingWebhookSecret)
	require.NoError(t, err)
	assert.Equal(t, "whsec_2", v)

	snap, err := repos.Setting.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "whsec_2", snap.WebhookSecret())
	assert.Equal(t, 2525, snap.Int(models.SettingSMTPPort, 25))
	assert.False(t, snap.Has(models.SettingSMTPHost))

	// later writes do not leak into an existing snapshot
	require.NoError(t, repos.Setting.SetValue(ctx, models.SettingWebhookSecret, "whsec_3"))
	assert.Equal(t, "whsec_2", snap.WebhookSecret())
}

func TestRuleRepository_AddIsIdempotent(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	first := &models.NotificationRule{ProductID: "prod_A", Channel: models.ChannelEmail, Destination: "ops@example.com"}
	created, err := repos.Rule.Add(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	require.NotZero(t, first.ID)

	dup := &models.NotificationRule{ProductID: "prod_A", Channel: models.ChannelEmail, Destination: "ops@example.com"}
	created, err = repos.Rule.Add(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, dup.ID)

	grouped, err := repos.Rule.ListAllGrouped(ctx)
	require.NoError(t, err)
	assert.Len(t, grouped["prod_A"], 1)
}

func TestRuleRepository_ListEnabledByProduct(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	email := &models.NotificationRule{ProductID: "prod_A", Channel: models.ChannelEmail, Destination: "a@example.com"}
	chat := &models.NotificationRule{ProductID: "prod_A", Channel: models.ChannelTelegram, Destination: "12345"}
	other := &models.NotificationRule{ProductID: "prod_B", Channel: models.ChannelTelegram, Destination: "12345"}
	for _, r := range []*models.NotificationRule{email, chat, other} {
		_, err := repos.Rule.Add(ctx, r)
		require.NoError(t, err)
	}

	rules, err := repos.Rule.ListEnabledByProduct(ctx, "prod_A")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, email.ID, rules[0].ID)
	assert.Equal(t, chat.ID, rules[1].ID)

	updated, err := repos.Rule.SetEnabled(ctx, email.ID, false)
	require.NoError(t, err)
	assert.True(t, updated)

	rules, err = repos.Rule.ListEnabledByProduct(ctx, "prod_A")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, chat.ID, rules[0].ID)

	rules, err = repos.Rule.ListEnabledByProduct(ctx, "prod_missing")
	require.NoError(t, err)
	assert.Empty(t, rules)

	deleted, err := repos.Rule.Delete(ctx, chat.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = repos.Rule.Delete(ctx, chat.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	updated, err = repos.Rule.SetEnabled(ctx, 9999, true)
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestHistoryRepository_InsertIfAbsent(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	entry := func() *models.PaymentHistory {
		return &models.PaymentHistory{
			ProductID:     "prod_A",
			ProductName:   "Course",
			Amount:        1999,
			Currency:      "usd",
			TransactionID: "pi_1",
			PaidAt:        1700000000,
		}
	}

	created, err := repos.History.InsertIfAbsent(ctx, entry())
	require.NoError(t, err)
	assert.True(t, created)

	for i := 0; i < 3; i++ {
		created, err = repos.History.InsertIfAbsent(ctx, entry())
		require.NoError(t, err)
		assert.False(t, created)
	}

	n, err := repos.History.CountByTransactionID(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stored, err := repos.History.GetByTransactionID(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, int64(1999), stored.Amount)
	assert.Equal(t, "usd", stored.Currency)
}

func TestHistoryRepository_InsertIfAbsentConcurrent(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		creates int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := repos.History.InsertIfAbsent(ctx, &models.PaymentHistory{
				ProductID: "prod_A", Amount: 500, Currency: "eur", TransactionID: "pi_race",
			})
			assert.NoError(t, err)
			if created {
				mu.Lock()
				creates++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, creates)
	n, err := repos.History.CountByTransactionID(ctx, "pi_race")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestHistoryRepository_Aggregates(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	rows := []models.PaymentHistory{
		{ProductID: "prod_A", ProductName: "Course", Amount: 1000, Currency: "usd", PaidAt: 100},
		{ProductID: "prod_A", ProductName: "Course", Amount: 2000, Currency: "usd", PaidAt: 200},
		{ProductID: "prod_A", ProductName: "Course", Amount: 700, Currency: "eur", PaidAt: 300},
		{ProductID: "prod_B", Amount: 5000, Currency: "usd", PaidAt: 400},
	}
	for i := range rows {
		rows[i].TransactionID = fmt.Sprintf("pi_%d", i)
		_, err := repos.History.InsertIfAbsent(ctx, &rows[i])
		require.NoError(t, err)
	}

	all, err := repos.History.Aggregates(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "prod_B", all[0].ProductID)
	assert.Equal(t, "prod_B", all[0].ProductName, "missing names fall back to the product id")
	assert.Equal(t, int64(5000), all[0].TotalAmount)
	assert.Equal(t, "prod_A", all[1].ProductID)
	assert.Equal(t, int64(2), all[1].Count)
	assert.Equal(t, int64(3000), all[1].TotalAmount)
	assert.Equal(t, "30.00", all[1].TotalDisplay())
	assert.Equal(t, "USD", all[1].CurrencyDisplay())

	start, end := int64(150), int64(300)
	ranged, err := repos.History.Aggregates(ctx, &start, &end)
	require.NoError(t, err)
	require.Len(t, ranged, 2)
	assert.Equal(t, int64(2000), ranged[0].TotalAmount)
	assert.Equal(t, "usd", ranged[0].Currency)
	assert.Equal(t, int64(700), ranged[1].TotalAmount)
}
