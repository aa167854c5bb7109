package models

import (
	"fmt"
	"strings"
	"time"
)

// PaymentHistory is the analytics ledger: one row per Stripe transaction,
// written once and never updated.
type PaymentHistory struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ProductID     string    `gorm:"type:varchar(191);not null;index" json:"product_id"`
	ProductName   string    `gorm:"type:varchar(255)" json:"product_name"`
	Amount        int64     `gorm:"not null" json:"amount"`
	Currency      string    `gorm:"type:varchar(10);not null" json:"currency"`
	TransactionID string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"transaction_id"`
	PaidAt        int64     `gorm:"not null;default:0;index" json:"paid_at"`
	RecordedAt    time.Time `gorm:"autoCreateTime" json:"recorded_at"`
}

func (PaymentHistory) TableName() string {
	return "payment_history"
}

// PaymentAggregate is one (product, currency) group of the ledger.
type PaymentAggregate struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Count       int64  `json:"count"`
	TotalAmount int64  `json:"total_amount"`
	Currency    string `json:"currency"`
}

// TotalDisplay renders the total in major units, e.g. "19.99".
func (a PaymentAggregate) TotalDisplay() string {
	return FormatMinorUnits(a.TotalAmount)
}

// CurrencyDisplay returns the currency code uppercased, "USD" when unknown.
func (a PaymentAggregate) CurrencyDisplay() string {
	if a.Currency == "" {
		return "USD"
	}
	return strings.ToUpper(a.Currency)
}

// FormatMinorUnits divides by 100 and prints two decimals.
func FormatMinorUnits(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}
