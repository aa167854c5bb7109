package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/StripeHooks/app/models"
	"github.com/ManuelReschke/StripeHooks/app/repository"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/jobqueue"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/notify"
)

// ErrTemporary marks failures that happened before any notification was
// sent. The history insert may already have run; it is idempotent, so
// running the job again is safe.
var ErrTemporary = errors.New("temporary failure")

// LookupFactory builds the metadata lookup for one settings snapshot.
type LookupFactory func(models.SettingsSnapshot) MetadataLookup

// DispatcherFactory builds the notification dispatcher for one settings snapshot.
type DispatcherFactory func(models.SettingsSnapshot) *notify.Dispatcher

// Service runs the deferred part of a payment webhook: record the payment,
// resolve rules and notify.
type Service struct {
	settings repository.SettingRepository
	rules    repository.RuleRepository
	history  repository.HistoryRepository

	lookups     LookupFactory
	dispatchers DispatcherFactory
}

// ProcessResult describes what one job did. Payment is nil when extraction
// failed or the event type is not handled.
type ProcessResult struct {
	Payment  *PaymentConfirmed
	Recorded bool
	Rules    int
	Outcomes []notify.Outcome
}

// NewService wires the pipeline. Nil factories select the Stripe lookup and
// the SMTP/Telegram dispatcher built from settings.
func NewService(repos *repository.Repositories, lookups LookupFactory, dispatchers DispatcherFactory) *Service {
	if lookups == nil {
		lookups = func(s models.SettingsSnapshot) MetadataLookup {
			return LookupFromSettings(s.StripeAPIKey())
		}
	}
	if dispatchers == nil {
		dispatchers = func(s models.SettingsSnapshot) *notify.Dispatcher {
			return notify.NewDispatcher(notify.SendersFromSettings(s), notify.DefaultConcurrency)
		}
	}
	return &Service{
		settings:    repos.Setting,
		rules:       repos.Rule,
		history:     repos.History,
		lookups:     lookups,
		dispatchers: dispatchers,
	}
}

// ProcessEvent handles one verified webhook body. Only errors wrapping
// ErrTemporary are worth retrying; extraction failures wrap
// ErrExtractionFailed and unsupported types ErrUnsupportedEvent.
func (s *Service) ProcessEvent(ctx context.Context, payload []byte) (*ProcessResult, error) {
	res := &ProcessResult{}

	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return res, fmt.Errorf("%w: load settings: %v", ErrTemporary, err)
	}

	ev, err := ParseEvent(payload)
	if err != nil {
		return res, err
	}
	payment, err := ExtractPaymentConfirmed(ev, payload)
	if err != nil {
		return res, err
	}
	res.Payment = payment

	lookup := s.lookups(snap)
	if payment.NeedsCustomerLookup() {
		name, email := lookup.CustomerInfo(ctx, payment.CustomerID)
		if payment.CustomerName == "" {
			payment.CustomerName = name
		}
		if payment.CustomerEmail == "" {
			payment.CustomerEmail = email
		}
	}
	payment.ProductName = lookup.ProductName(ctx, payment.ProductID)

	created, err := s.history.InsertIfAbsent(ctx, payment.HistoryEntry())
	switch {
	case err != nil:
		log.Errorf("[Payments] Failed to record %s for product %s: %v", payment.TransactionID, payment.ProductID, err)
	case created:
		res.Recorded = true
		log.Infof("[Payments] Recorded %s: %s %s for product %s", payment.TransactionID, payment.AmountDisplay(), payment.CurrencyDisplay(), payment.ProductID)
	default:
		log.Infof("[Payments] Transaction %s already recorded", payment.TransactionID)
	}

	rules, err := s.rules.ListEnabledByProduct(ctx, payment.ProductID)
	if err != nil {
		return res, fmt.Errorf("%w: load rules for %s: %v", ErrTemporary, payment.ProductID, err)
	}
	res.Rules = len(rules)
	if len(rules) == 0 {
		log.Infof("[Payments] No rules configured for product %s, skipping notifications", payment.ProductID)
		return res, nil
	}

	res.Outcomes = s.dispatchers(snap).Dispatch(ctx, rules, BuildMessage(*payment))
	return res, nil
}

// HandlePaymentJob is the job queue entry point for payment events. It only
// asks for a retry when ProcessEvent reports a temporary failure.
func (s *Service) HandlePaymentJob(ctx context.Context, job *jobqueue.Job) error {
	payload, err := jobqueue.PaymentEventJobPayloadFromMap(job.Payload)
	if err != nil {
		log.Errorf("[Payments] Job %s has an invalid payload: %v", job.ID, err)
		return nil
	}

	_, err = s.ProcessEvent(ctx, []byte(payload.RawEvent))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTemporary):
		return err
	case errors.Is(err, ErrExtractionFailed):
		log.Warnf("[Payments] Dropping event %s: %v", payload.EventID, err)
	case errors.Is(err, ErrUnsupportedEvent):
		log.Infof("[Payments] Ignoring event %s: %v", payload.EventID, err)
	default:
		log.Errorf("[Payments] Event %s failed: %v", payload.EventID, err)
	}
	return nil
}
