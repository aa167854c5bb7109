package billing

import (
	"fmt"
	"strings"

	"github.com/ManuelReschke/StripeHooks/internal/pkg/notify"
)

// BuildMessage renders the notification for a confirmed payment. The body is
// shared by chat and email; the subject is only used by email.
func BuildMessage(p PaymentConfirmed) notify.Message {
	name := p.DisplayName()

	var b strings.Builder
	b.WriteString("Payment received!\n\n")
	if p.CustomerName != "" {
		fmt.Fprintf(&b, "Client name: %s\n", p.CustomerName)
	}
	if p.CustomerEmail != "" {
		fmt.Fprintf(&b, "Client email: %s\n", p.CustomerEmail)
	}
	if name != p.ProductID {
		fmt.Fprintf(&b, "Product: %s (%s)\n", name, p.ProductID)
	} else {
		fmt.Fprintf(&b, "Product: %s\n", name)
	}
	fmt.Fprintf(&b, "Amount: %s %s\n", p.AmountDisplay(), p.CurrencyDisplay())
	fmt.Fprintf(&b, "Payment date: %s\n", p.PaidAt())
	fmt.Fprintf(&b, "Payment Intent: %s", p.TransactionID)

	return notify.Message{
		Subject: "Payment received for " + name,
		Body:    b.String(),
	}
}
