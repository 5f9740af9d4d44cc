package repurchase

import (
	"context"
	"fmt"
	"slices"
	"time"

	"bagatelle/backend/internal/cache"
	"bagatelle/backend/internal/domain"
	"bagatelle/backend/internal/store"
)

const (
	lookbackDays   = 365
	windowPastDays = 30
	windowNextDays = 15
)

// Engine predicts which past sales are about to run out, so the shop can
// reach out before the customer buys elsewhere. The whole feed is recomputed
// per calendar day and cached under a day-stamped key.
type Engine struct {
	cache    cache.SuggestionCache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewEngine(cacheStore cache.SuggestionCache, cacheTTL time.Duration) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopSuggestionCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Minute
	}

	return &Engine{
		cache:    cacheStore,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// Suggestions scans the past year of sales and flags each one where any
// line's predicted exhaustion date falls inside the contact window: later
// than 30 days ago, earlier than 15 days from now, both ends exclusive.
func (e *Engine) Suggestions(ctx context.Context, repo store.Repository) (*domain.RepurchaseFeed, error) {
	today := domain.DateOf(e.now())
	cacheKey := "loyalty:repurchase:" + today.Format("2006-01-02")
	if cached, ok, err := e.cache.Get(ctx, cacheKey); err == nil && ok {
		return cached, nil
	}

	sales, err := repo.FindSalesByDateRange(ctx, today.AddDate(0, 0, -lookbackDays), e.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("repurchase scan: %w", err)
	}

	productIDs := make([]string, 0, len(sales)*2)
	for _, sale := range sales {
		for _, line := range sale.Lines {
			productIDs = append(productIDs, line.ProductID)
		}
	}
	products, err := repo.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("repurchase scan: %w", err)
	}

	windowStart := today.AddDate(0, 0, -windowPastDays)
	windowEnd := today.AddDate(0, 0, windowNextDays)

	suggestions := make([]domain.RepurchaseSuggestion, 0, 16)
	customers := map[string]*domain.Customer{}
	for _, sale := range sales {
		exhaustion, ok := exhaustionWithin(sale, products, windowStart, windowEnd)
		if !ok {
			continue
		}

		customer, cached := customers[sale.CustomerID]
		if !cached {
			customer, err = repo.GetCustomer(ctx, sale.CustomerID)
			if err != nil {
				// Customer removed since the sale; skip quietly.
				customer = nil
			}
			customers[sale.CustomerID] = customer
		}
		if customer == nil {
			continue
		}

		names := make([]string, 0, len(sale.Lines))
		for _, line := range sale.Lines {
			if p, ok := products[line.ProductID]; ok {
				names = append(names, p.Name)
			}
		}

		suggestions = append(suggestions, domain.RepurchaseSuggestion{
			SaleID:              sale.ID,
			CustomerID:          customer.ID,
			CustomerName:        customer.FullName,
			CustomerPhone:       customer.Phone,
			SoldAt:              sale.SoldAt,
			Products:            names,
			PredictedExhaustion: exhaustion,
		})
	}

	slices.SortFunc(suggestions, func(a, b domain.RepurchaseSuggestion) int {
		if a.PredictedExhaustion.Equal(b.PredictedExhaustion) {
			return cmpString(a.SaleID, b.SaleID)
		}
		if a.PredictedExhaustion.Before(b.PredictedExhaustion) {
			return -1
		}
		return 1
	})

	feed := &domain.RepurchaseFeed{
		GeneratedAt: today.Format("2006-01-02"),
		Suggestions: suggestions,
	}
	_ = e.cache.Set(ctx, cacheKey, feed, e.cacheTTL)
	return feed, nil
}

// exhaustionWithin checks every line of the sale against the contact window
// and reports the earliest exhaustion date that lands inside it. One in-window
// line is enough to flag the sale; lines that ran out long ago or still have
// plenty left do not veto the others. A bigger bottle lasts longer, and buying
// multiples of the same product stretches the line's duration proportionally.
func exhaustionWithin(sale domain.Sale, products map[string]domain.Product, windowStart, windowEnd time.Time) (time.Time, bool) {
	soldOn := domain.DateOf(sale.SoldAt)
	flagged := time.Time{}
	for _, line := range sale.Lines {
		product, ok := products[line.ProductID]
		if !ok {
			continue
		}
		qty := line.Quantity
		if qty < 1 {
			qty = 1
		}
		days := estimateDaysOfUse(product.VolumeMagnitude()) * qty
		candidate := soldOn.AddDate(0, 0, days)
		if !candidate.After(windowStart) || !candidate.Before(windowEnd) {
			continue
		}
		if flagged.IsZero() || candidate.Before(flagged) {
			flagged = candidate
		}
	}
	return flagged, !flagged.IsZero()
}

func estimateDaysOfUse(volumeMagnitude int) int {
	switch {
	case volumeMagnitude <= 0:
		return 90
	case volumeMagnitude <= 30:
		return 30
	case volumeMagnitude <= 50:
		return 60
	case volumeMagnitude <= 100:
		return 90
	case volumeMagnitude <= 150:
		return 120
	default:
		return 150
	}
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}
