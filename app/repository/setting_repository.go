package repository

import (
	"context"
	"errors"

	"github.com/ManuelReschke/StripeHooks/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// settingRepository implements the SettingRepository interface
type settingRepository struct {
	db *gorm.DB
}

// NewSettingRepository creates a new setting repository instance
func NewSettingRepository(db *gorm.DB) SettingRepository {
	return &settingRepository{db: db}
}

// GetValue retrieves a specific setting value by key; "" when not set.
func (r *settingRepository) GetValue(ctx context.Context, key string) (string, error) {
	var setting models.Setting
	err := r.db.WithContext(ctx).Where("setting_key = ?", key).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return setting.Value, nil
}

// SetValue creates or overwrites a setting.
func (r *settingRepository) SetValue(ctx context.Context, key, value string) error {
	setting := models.Setting{
		Key:   key,
		Value: value,
		Type:  models.SettingType(key),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "type", "updated_at"}),
	}).Create(&setting).Error
}

// Snapshot loads every setting at once.
func (r *settingRepository) Snapshot(ctx context.Context) (models.SettingsSnapshot, error) {
	var settings []models.Setting
	if err := r.db.WithContext(ctx).Find(&settings).Error; err != nil {
		return models.SettingsSnapshot{}, err
	}
	values := make(map[string]string, len(settings))
	for _, s := range settings {
		values[s.Key] = s.Value
	}
	return models.NewSettingsSnapshot(values), nil
}
