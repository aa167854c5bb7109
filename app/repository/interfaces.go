package repository

import (
	"context"

	"github.com/ManuelReschke/StripeHooks/app/models"
	"gorm.io/gorm"
)

// SettingRepository defines the key/value settings store
type SettingRepository interface {
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
	Snapshot(ctx context.Context) (models.SettingsSnapshot, error)
}

// RuleRepository defines the notification rule store
type RuleRepository interface {
	ListEnabledByProduct(ctx context.Context, productID string) ([]models.NotificationRule, error)
	ListAllGrouped(ctx context.Context) (map[string][]models.NotificationRule, error)
	GetByID(ctx context.Context, id uint) (*models.NotificationRule, error)
	Add(ctx context.Context, rule *models.NotificationRule) (created bool, err error)
	Delete(ctx context.Context, id uint) (bool, error)
	SetEnabled(ctx context.Context, id uint, enabled bool) (bool, error)
}

// HistoryRepository defines the payment history ledger
type HistoryRepository interface {
	InsertIfAbsent(ctx context.Context, entry *models.PaymentHistory) (created bool, err error)
	GetByTransactionID(ctx context.Context, transactionID string) (*models.PaymentHistory, error)
	CountByTransactionID(ctx context.Context, transactionID string) (int64, error)
	Aggregates(ctx context.Context, startTS, endTS *int64) ([]models.PaymentAggregate, error)
}

// Repositories holds all repository instances
type Repositories struct {
	Setting SettingRepository
	Rule    RuleRepository
	History HistoryRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Setting: NewSettingRepository(db),
		Rule:    NewRuleRepository(db),
		History: NewHistoryRepository(db),
	}
}
