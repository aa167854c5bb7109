package repository

import (
	"context"

	"github.com/ManuelReschke/StripeHooks/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ruleRepository struct {
	db *gorm.DB
}

// NewRuleRepository creates a notification rule repository backed by GORM.
func NewRuleRepository(db *gorm.DB) RuleRepository {
	return &ruleRepository{db: db}
}

func (r *ruleRepository) ListEnabledByProduct(ctx context.Context, productID string) ([]models.NotificationRule, error) {
	var rules []models.NotificationRule
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND enabled = ?", productID, true).
		Order("id").
		Find(&rules).Error
	return rules, err
}

func (r *ruleRepository) ListAllGrouped(ctx context.Context) (map[string][]models.NotificationRule, error) {
	var rules []models.NotificationRule
	if err := r.db.WithContext(ctx).Order("product_id, id").Find(&rules).Error; err != nil {
		return nil, err
	}
	grouped := make(map[string][]models.NotificationRule)
	for _, rule := range rules {
		grouped[rule.ProductID] = append(grouped[rule.ProductID], rule)
	}
	return grouped, nil
}

func (r *ruleRepository) GetByID(ctx context.Context, id uint) (*models.NotificationRule, error) {
	var rule models.NotificationRule
	if err := r.db.WithContext(ctx).First(&rule, id).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// Add inserts an enabled rule. Adding an existing (product, channel, destination)
// is not an error: rule is filled with the stored row and created is false.
func (r *ruleRepository) Add(ctx context.Context, rule *models.NotificationRule) (bool, error) {
	rule.ID = 0
	rule.Enabled = true
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "product_id"},
			{Name: "channel"},
			{Name: "destination"},
		},
		DoNothing: true,
	}).Create(rule)
	if tx.Error != nil {
		return false, tx.Error
	}

	created := tx.RowsAffected > 0
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND channel = ? AND destination = ?", rule.ProductID, rule.Channel, rule.Destination).
		First(rule).Error; err != nil {
		return false, err
	}
	return created, nil
}

func (r *ruleRepository) Delete(ctx context.Context, id uint) (bool, error) {
	tx := r.db.WithContext(ctx).Delete(&models.NotificationRule{}, id)
	return tx.RowsAffected > 0, tx.Error
}

func (r *ruleRepository) SetEnabled(ctx context.Context, id uint, enabled bool) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.NotificationRule{}).Where("id = ?", id).Update("enabled", enabled)
	return tx.RowsAffected > 0, tx.Error
}
