package billing

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v81"
)

// EventTypePaymentSucceeded is the only event type that triggers processing.
const EventTypePaymentSucceeded = string(stripe.EventTypePaymentIntentSucceeded)

// Event is an authenticated webhook envelope kept as a generic tree so that
// payload shapes from older API versions can still be read.
type Event struct {
	ID   string
	Type string
	Tree map[string]any
}

// ParseEvent decodes an already verified body. Numbers are kept as
// json.Number so amounts never pass through float64.
func ParseEvent(payload []byte) (*Event, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var tree map[string]any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if tree == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidPayload)
	}

	typ, _ := tree["type"].(string)
	if strings.TrimSpace(typ) == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrInvalidPayload)
	}
	id, _ := tree["id"].(string)

	return &Event{ID: id, Type: typ, Tree: tree}, nil
}

// IsPaymentSucceeded reports whether the event should be processed.
func (e *Event) IsPaymentSucceeded() bool {
	return e != nil && e.Type == EventTypePaymentSucceeded
}

// PayloadHash is the fallback idempotency key for events without any id.
func PayloadHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return "hash:" + hex.EncodeToString(sum[:])
}
