package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrUnsupportedEvent = errors.New("unsupported event type")
	ErrExtractionFailed = errors.New("could not extract payment from event")
)

// path is a sequence of map keys (string) and slice indexes (int).
type path []any

// Product id sources, first non-empty wins.
var productIDPaths = []path{
	{"data", "object", "payment_details", "order_reference"},
	{"data", "object", "metadata", "product_id"},
	{"data", "object", "metadata", "order_reference"},
}

var (
	chargeNamePaths = []path{
		{"charges", "data", 0, "billing_details", "name"},
	}
	chargeEmailPaths = []path{
		{"charges", "data", 0, "billing_details", "email"},
	}
	fallbackNamePaths = []path{
		{"shipping", "name"},
		{"metadata", "customer_name"},
		{"metadata", "name"},
	}
	fallbackEmailPaths = []path{
		{"receipt_email"},
		{"metadata", "customer_email"},
		{"metadata", "email"},
	}
)

func lookup(tree any, p path) (any, bool) {
	cur := tree
	for _, seg := range p {
		switch key := seg.(type) {
		case string:
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			if cur, ok = m[key]; !ok {
				return nil, false
			}
		case int:
			s, ok := cur.([]any)
			if !ok || key < 0 || key >= len(s) {
				return nil, false
			}
			cur = s[key]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

// scalarString renders strings and numbers; zero numbers and blank strings
// count as absent.
func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		if f, err := t.Float64(); err == nil && f == 0 {
			return ""
		}
		return t.String()
	case float64:
		if t == 0 {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

func firstString(tree any, paths []path) string {
	for _, p := range paths {
		if v, ok := lookup(tree, p); ok {
			if s := scalarString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func int64At(tree any, p path) int64 {
	v, ok := lookup(tree, p)
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return int64(f)
		}
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// ExtractProductID returns the product id or "" when no path yields one.
func ExtractProductID(ev *Event) string {
	if ev == nil {
		return ""
	}
	return firstString(ev.Tree, productIDPaths)
}

// ExtractPaymentConfirmed normalizes a payment_intent.succeeded event. Customer
// fields are filled from the payload only; a missing name or email with a
// CustomerID set is left for a live lookup. payload is used for the hash
// fallback when neither the PaymentIntent nor the event carries an id.
func ExtractPaymentConfirmed(ev *Event, payload []byte) (*PaymentConfirmed, error) {
	if !ev.IsPaymentSucceeded() {
		return nil, ErrUnsupportedEvent
	}

	productID := ExtractProductID(ev)
	if productID == "" {
		return nil, fmt.Errorf("%w: no product id in event %s", ErrExtractionFailed, ev.ID)
	}

	obj, _ := lookup(ev.Tree, path{"data", "object"})
	p := &PaymentConfirmed{
		ProductID:   productID,
		AmountMinor: int64At(obj, path{"amount"}),
		Currency:    strings.ToLower(firstString(obj, []path{{"currency"}})),
		CreatedAt:   int64At(obj, path{"created"}),
	}
	if p.AmountMinor < 0 {
		p.AmountMinor = 0
	}
	if p.Currency == "" {
		p.Currency = "usd"
	}

	p.TransactionID = firstString(obj, []path{{"id"}})
	if p.TransactionID == "" {
		p.TransactionID = strings.TrimSpace(ev.ID)
	}
	if p.TransactionID == "" {
		p.TransactionID = PayloadHash(payload)
	}

	p.CustomerName = firstString(obj, chargeNamePaths)
	p.CustomerEmail = firstString(obj, chargeEmailPaths)
	if p.CustomerName == "" {
		p.CustomerName = firstString(obj, fallbackNamePaths)
	}
	if p.CustomerEmail == "" {
		p.CustomerEmail = firstString(obj, fallbackEmailPaths)
	}

	switch c := valueAt(obj, path{"customer"}).(type) {
	case string:
		p.CustomerID = strings.TrimSpace(c)
	case map[string]any:
		p.CustomerID = firstString(c, []path{{"id"}})
		if p.CustomerName == "" {
			p.CustomerName = firstString(c, []path{{"name"}})
		}
		if p.CustomerEmail == "" {
			p.CustomerEmail = firstString(c, []path{{"email"}})
		}
	}

	return p, nil
}

func valueAt(tree any, p path) any {
	v, _ := lookup(tree, p)
	return v
}

// NeedsCustomerLookup reports whether a live customer lookup could fill gaps.
func (p PaymentConfirmed) NeedsCustomerLookup() bool {
	return p.CustomerID != "" && (p.CustomerName == "" || p.CustomerEmail == "")
}
