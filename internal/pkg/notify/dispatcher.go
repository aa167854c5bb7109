// Package notify fans a payment message out to the destinations of the
// matched notification rules.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/errgroup"

	"github.com/ManuelReschke/StripeHooks/app/models"
)

// DefaultConcurrency caps parallel sends for one payment.
const DefaultConcurrency = 4

// ErrNoSender is reported for rules whose channel has no sender.
var ErrNoSender = errors.New("no sender for channel")

// Message is the rendered notification. Subject is ignored by chat channels.
type Message struct {
	Subject string
	Body    string
}

// Sender delivers a message to one destination of its channel.
type Sender interface {
	Send(ctx context.Context, destination string, msg Message) error
}

// Outcome is the result of one rule's send.
type Outcome struct {
	RuleID      uint
	Channel     models.RuleChannel
	Destination string
	Err         error
}

// OK reports whether the send succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Dispatcher sends one message per rule. Failures stay in their Outcome.
type Dispatcher struct {
	senders map[models.RuleChannel]Sender
	limit   int
}

// NewDispatcher creates a dispatcher. limit <= 0 means DefaultConcurrency.
func NewDispatcher(senders map[models.RuleChannel]Sender, limit int) *Dispatcher {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	if senders == nil {
		senders = map[models.RuleChannel]Sender{}
	}
	return &Dispatcher{senders: senders, limit: limit}
}

// Dispatch attempts every rule, in parallel up to the limit, and returns the
// outcomes in rule order. It never fails as a whole.
func (d *Dispatcher) Dispatch(ctx context.Context, rules []models.NotificationRule, msg Message) []Outcome {
	outcomes := make([]Outcome, len(rules))

	// plain errgroup: a failing send must not cancel the others
	var g errgroup.Group
	g.SetLimit(d.limit)
	for i, rule := range rules {
		i, rule := i, rule
		g.Go(func() error {
			outcomes[i] = d.send(ctx, rule, msg)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		if o.OK() {
			log.Infof("[Notify] %s notification sent to %s (rule %d)", o.Channel, o.Destination, o.RuleID)
			continue
		}
		log.Errorf("[Notify] %s notification to %s failed (rule %d): %v", o.Channel, o.Destination, o.RuleID, o.Err)
	}
	return outcomes
}

func (d *Dispatcher) send(ctx context.Context, rule models.NotificationRule, msg Message) (out Outcome) {
	out = Outcome{RuleID: rule.ID, Channel: rule.Channel, Destination: rule.Destination}
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("sender panic: %v", r)
		}
	}()

	s, ok := d.senders[rule.Channel]
	if !ok || s == nil {
		out.Err = fmt.Errorf("%w %q", ErrNoSender, rule.Channel)
		return out
	}
	out.Err = s.Send(ctx, rule.Destination, msg)
	return out
}
