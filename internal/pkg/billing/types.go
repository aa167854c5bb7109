package billing

import (
	"strings"
	"time"

	"github.com/ManuelReschke/StripeHooks/app/models"
)

// PaymentConfirmed is the provider-agnostic shape of a succeeded payment.
// It lives for one job and is never persisted as-is.
type PaymentConfirmed struct {
	ProductID     string
	ProductName   string
	TransactionID string
	AmountMinor   int64
	Currency      string
	CreatedAt     int64
	CustomerID    string
	CustomerName  string
	CustomerEmail string
}

// AmountDisplay renders the amount in major units, e.g. "19.99".
func (p PaymentConfirmed) AmountDisplay() string {
	return models.FormatMinorUnits(p.AmountMinor)
}

// CurrencyDisplay returns the currency uppercased, "USD" when unknown.
func (p PaymentConfirmed) CurrencyDisplay() string {
	if p.Currency == "" {
		return "USD"
	}
	return strings.ToUpper(p.Currency)
}

// DisplayName is the resolved product name, falling back to the id.
func (p PaymentConfirmed) DisplayName() string {
	if strings.TrimSpace(p.ProductName) != "" {
		return p.ProductName
	}
	return p.ProductID
}

// PaidAt formats the provider timestamp in UTC, or "N/A" when absent.
func (p PaymentConfirmed) PaidAt() string {
	if p.CreatedAt <= 0 {
		return "N/A"
	}
	return time.Unix(p.CreatedAt, 0).UTC().Format("2006-01-02 15:04:05 UTC")
}

// HistoryEntry converts the payment into its ledger row.
func (p PaymentConfirmed) HistoryEntry() *models.PaymentHistory {
	return &models.PaymentHistory{
		ProductID:     p.ProductID,
		ProductName:   p.DisplayName(),
		Amount:        p.AmountMinor,
		Currency:      strings.ToLower(p.Currency),
		TransactionID: p.TransactionID,
		PaidAt:        p.CreatedAt,
	}
}
