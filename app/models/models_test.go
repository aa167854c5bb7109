package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationRuleValidate(t *testing.T) {
	tests := []struct {
		name    string
		rule    NotificationRule
		wantErr bool
	}{
		{"email rule", NotificationRule{ProductID: "prod_A", Channel: ChannelEmail, Destination: "ops@example.com"}, false},
		{"telegram rule", NotificationRule{ProductID: "prod_A", Channel: ChannelTelegram, Destination: "-100123"}, false},
		{"bad email", NotificationRule{ProductID: "prod_A", Channel: ChannelEmail, Destination: "not-an-address"}, true},
		{"unknown channel", NotificationRule{ProductID: "prod_A", Channel: "sms", Destination: "+4912345"}, true},
		{"missing product", NotificationRule{Channel: ChannelTelegram, Destination: "1"}, true},
		{"missing destination", NotificationRule{ProductID: "prod_A", Channel: ChannelTelegram}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNotificationRuleNormalize(t *testing.T) {
	r := NotificationRule{ProductID: " prod_A ", Channel: " Email", Destination: " ops@example.com\n"}
	r.Normalize()
	assert.Equal(t, "prod_A", r.ProductID)
	assert.Equal(t, ChannelEmail, r.Channel)
	assert.Equal(t, "ops@example.com", r.Destination)
	require.NoError(t, r.Validate())
}

func TestSettingsSnapshot(t *testing.T) {
	src := map[string]string{
		SettingWebhookSecret: " whsec_abc ",
		SettingSMTPPort:      "oops",
		SettingSMTPHost:      "   ",
		SettingStripeAPIKey:  " sk_test_123:\n",
	}
	snap := NewSettingsSnapshot(src)
	src[SettingWebhookSecret] = "mutated"

	assert.Equal(t, "whsec_abc", snap.WebhookSecret())
	assert.Equal(t, 587, snap.Int(SettingSMTPPort, 587))
	assert.False(t, snap.Has(SettingSMTPHost), "blank values count as not configured")
	assert.Equal(t, "sk_test_123", snap.StripeAPIKey())
	assert.Equal(t, "", SettingsSnapshot{}.Value(SettingTelegramBotToken))
}

func TestNormalizeStripeKey(t *testing.T) {
	assert.Equal(t, "sk_live_x", NormalizeStripeKey("  sk_live_x  "))
	assert.Equal(t, "sk_live_x", NormalizeStripeKey("sk_live_x:"))
	assert.Equal(t, "a:b:", NormalizeStripeKey("a:b:"))
	assert.Equal(t, "", NormalizeStripeKey("  "))
}

func TestFormatMinorUnits(t *testing.T) {
	assert.Equal(t, "19.99", FormatMinorUnits(1999))
	assert.Equal(t, "20.00", FormatMinorUnits(2000))
	assert.Equal(t, "0.05", FormatMinorUnits(5))
	assert.Equal(t, "-1.50", FormatMinorUnits(-150))
}
