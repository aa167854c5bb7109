package models

import (
	"strconv"
	"strings"
	"time"
)

// Setting represents a system setting
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:setting_key;size:191;not null;uniqueIndex" json:"key" validate:"required,min=1,max=191"`
	Value     string    `gorm:"type:text" json:"value"`
	Type      string    `gorm:"size:50;not null;default:'string'" json:"type"` // string, secret, integer, json
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Setting keys read by the webhook pipeline and the admin API.
const (
	SettingStripeAPIKey      = "stripe_api_key"
	SettingWebhookSecret     = "webhook_secret"
	SettingSMTPHost          = "smtp_host"
	SettingSMTPPort          = "smtp_port"
	SettingSMTPSecurity      = "smtp_security"
	SettingSMTPUser          = "smtp_user"
	SettingSMTPPassword      = "smtp_password"
	SettingSMTPFromEmail     = "smtp_from_email"
	SettingTelegramBotToken  = "telegram_bot_token"
	SettingTelegramBotInfo   = "telegram_bot_info"
	SettingAdminPasswordHash = "admin_password_hash"
)

// SettingType returns the storage type recorded for key.
func SettingType(key string) string {
	switch key {
	case SettingStripeAPIKey, SettingWebhookSecret, SettingSMTPPassword,
		SettingTelegramBotToken, SettingAdminPasswordHash:
		return "secret"
	case SettingSMTPPort:
		return "integer"
	case SettingTelegramBotInfo:
		return "json"
	default:
		return "string"
	}
}

// SettingsSnapshot is a point-in-time copy of the settings table. It is loaded
// once per operation and handed to everything downstream, so a single webhook
// never sees a half-updated configuration.
type SettingsSnapshot struct {
	values map[string]string
}

// NewSettingsSnapshot copies values into a new snapshot.
func NewSettingsSnapshot(values map[string]string) SettingsSnapshot {
	cp := make(map[string]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return SettingsSnapshot{values: cp}
}

// Get returns the value for key and whether it is set to a non-blank value.
func (s SettingsSnapshot) Get(key string) (string, bool) {
	v, ok := s.values[key]
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// Value returns the value for key or "" when absent.
func (s SettingsSnapshot) Value(key string) string {
	v, _ := s.Get(key)
	return v
}

// Has reports whether key holds a non-blank value.
func (s SettingsSnapshot) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Int returns key parsed as an integer, or def when absent or malformed.
func (s SettingsSnapshot) Int(key string, def int) int {
	v, ok := s.Get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func (s SettingsSnapshot) WebhookSecret() string {
	return strings.TrimSpace(s.Value(SettingWebhookSecret))
}

func (s SettingsSnapshot) StripeAPIKey() string {
	return NormalizeStripeKey(s.Value(SettingStripeAPIKey))
}

func (s SettingsSnapshot) TelegramBotToken() string {
	return strings.TrimSpace(s.Value(SettingTelegramBotToken))
}

// NormalizeStripeKey strips whitespace and the stray trailing colon that
// copying from a `curl -u sk_...:` example leaves behind.
func NormalizeStripeKey(key string) string {
	key = strings.TrimSpace(key)
	if strings.HasSuffix(key, ":") && !strings.Contains(key[:len(key)-1], ":") {
		key = key[:len(key)-1]
	}
	return key
}
