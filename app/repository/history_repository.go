package repository

import (
	"context"

	"github.com/ManuelReschke/StripeHooks/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type historyRepository struct {
	db *gorm.DB
}

// NewHistoryRepository creates a payment history repository backed by GORM.
func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

// InsertIfAbsent records entry unless its transaction id is already present.
// The unique index on transaction_id makes this safe for concurrent duplicate
// deliveries; the loser of the race sees created == false.
func (r *historyRepository) InsertIfAbsent(ctx context.Context, entry *models.PaymentHistory) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "transaction_id"}},
		DoNothing: true,
	}).Create(entry)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *historyRepository) GetByTransactionID(ctx context.Context, transactionID string) (*models.PaymentHistory, error) {
	var entry models.PaymentHistory
	if err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *historyRepository) CountByTransactionID(ctx context.Context, transactionID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.PaymentHistory{}).Where("transaction_id = ?", transactionID).Count(&n).Error
	return n, err
}

// Aggregates groups the ledger by product and currency. Nil bounds are open;
// both bounds are inclusive and compare against the provider timestamp.
func (r *historyRepository) Aggregates(ctx context.Context, startTS, endTS *int64) ([]models.PaymentAggregate, error) {
	q := r.db.WithContext(ctx).Model(&models.PaymentHistory{}).
		Select("product_id, MAX(product_name) AS product_name, COUNT(*) AS count, SUM(amount) AS total_amount, currency")
	if startTS != nil {
		q = q.Where("paid_at >= ?", *startTS)
	}
	if endTS != nil {
		q = q.Where("paid_at <= ?", *endTS)
	}

	var rows []models.PaymentAggregate
	err := q.Group("product_id, currency").Order("total_amount DESC").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].ProductName == "" {
			rows[i].ProductName = rows[i].ProductID
		}
	}
	return rows, nil
}
