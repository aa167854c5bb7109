package statistics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/StripeHooks/app/models"
	"github.com/ManuelReschke/StripeHooks/app/repository"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/cache"
)

const (
	CacheKeyProductNames = "statistics:product_names"
	CacheExpiration      = 5 * time.Minute
)

// ProductNamer lists the account's products as id -> name.
type ProductNamer interface {
	ProductNames(ctx context.Context) (map[string]string, error)
}

// Report is the payment history summary for one window.
type Report struct {
	Range Range                     `json:"range"`
	Rows  []models.PaymentAggregate `json:"rows"`
}

// BuildReport aggregates the ledger for r. Rows whose stored name is missing
// or just the product id get the live product name when namer is set; a
// failing namer only costs the nicer names.
func BuildReport(ctx context.Context, history repository.HistoryRepository, namer ProductNamer, r Range) (*Report, error) {
	rows, err := history.Aggregates(ctx, r.Start, r.End)
	if err != nil {
		return nil, fmt.Errorf("aggregate payment history: %w", err)
	}
	if rows == nil {
		rows = []models.PaymentAggregate{}
	}

	if namer != nil && needsNames(rows) {
		names := productNames(ctx, namer)
		for i := range rows {
			if rows[i].ProductName != "" && rows[i].ProductName != rows[i].ProductID {
				continue
			}
			if n, ok := names[rows[i].ProductID]; ok && n != "" {
				rows[i].ProductName = n
			}
		}
	}

	return &Report{Range: r, Rows: rows}, nil
}

func needsNames(rows []models.PaymentAggregate) bool {
	for _, row := range rows {
		if row.ProductName == "" || row.ProductName == row.ProductID {
			return true
		}
	}
	return false
}

// productNames reads the product list from cache, falling back to the namer.
func productNames(ctx context.Context, namer ProductNamer) map[string]string {
	if val, err := cache.Get(ctx, CacheKeyProductNames); err == nil {
		var names map[string]string
		if json.Unmarshal([]byte(val), &names) == nil {
			return names
		}
	} else if !errors.Is(err, cache.ErrDisabled) && !errors.Is(err, redis.Nil) {
		log.Warnf("[Statistics] Reading cached product names failed: %v", err)
	}

	names, err := namer.ProductNames(ctx)
	if err != nil {
		log.Warnf("[Statistics] Listing products failed: %v", err)
		return nil
	}

	if data, err := json.Marshal(names); err == nil {
		if err := cache.Set(ctx, CacheKeyProductNames, data, CacheExpiration); err != nil && !errors.Is(err, cache.ErrDisabled) {
			log.Warnf("[Statistics] Caching product names failed: %v", err)
		}
	}
	return names
}

// InvalidateProductNames drops the cached product list, e.g. after the
// Stripe key changed.
func InvalidateProductNames(ctx context.Context) {
	if err := cache.Delete(ctx, CacheKeyProductNames); err != nil && !errors.Is(err, cache.ErrDisabled) {
		log.Warnf("[Statistics] Clearing product names failed: %v", err)
	}
}
