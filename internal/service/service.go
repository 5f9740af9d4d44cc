package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"bagatelle/backend/internal/cashback"
	"bagatelle/backend/internal/domain"
	"bagatelle/backend/internal/money"
	"bagatelle/backend/internal/repurchase"
	"bagatelle/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const expiringWindowDays = 7

type Service struct {
	repo      store.Repository
	engine    *cashback.Engine
	suggester *repurchase.Engine
}

func New(repo store.Repository, engine *cashback.Engine, suggester *repurchase.Engine) *Service {
	if engine == nil {
		engine = cashback.NewEngine()
	}

	return &Service{
		repo:      repo,
		engine:    engine,
		suggester: suggester,
	}
}

// RegisterSale runs the whole sale as one unit: price the lines from the
// catalog, redeem requested cashback against the ledger, persist the sale and
// accrue new cashback on the final total. Any failure rolls everything back;
// a sale never half-lands.
func (s *Service) RegisterSale(ctx context.Context, req domain.RegisterSaleRequest) (domain.Sale, error) {
	if req.CustomerID == "" || len(req.Lines) == 0 {
		return domain.Sale{}, store.ErrInvalidInput
	}

	requested := money.Zero()
	if req.Cashback != nil {
		requested = *req.Cashback
	}
	if requested.IsNegative() {
		return domain.Sale{}, fmt.Errorf("%w: cashback amount cannot be negative", store.ErrInvalidInput)
	}

	productIDs := make([]string, 0, len(req.Lines))
	for _, line := range req.Lines {
		if line.Quantity < 1 {
			return domain.Sale{}, fmt.Errorf("%w: quantity must be at least 1", store.ErrInvalidInput)
		}
		productIDs = append(productIDs, line.ProductID)
	}

	var saved domain.Sale
	err := s.repo.Atomically(ctx, func(repo store.Repository) error {
		customer, err := repo.GetCustomer(ctx, req.CustomerID)
		if err != nil {
			return err
		}

		products, err := repo.GetProductsByIDs(ctx, productIDs)
		if err != nil {
			return err
		}

		lines := make([]domain.SaleLine, 0, len(req.Lines))
		gross := money.Zero()
		for _, line := range req.Lines {
			product, ok := products[line.ProductID]
			if !ok {
				return fmt.Errorf("%w: product %s", store.ErrNotFound, line.ProductID)
			}
			priced := domain.SaleLine{
				ProductID: product.ID,
				Quantity:  line.Quantity,
				UnitPrice: product.Price,
			}
			lines = append(lines, priced)
			gross = gross.Add(priced.Subtotal())
		}

		if requested.Cmp(gross) > 0 {
			return fmt.Errorf("%w: cashback %s exceeds sale total %s", store.ErrInvalidInput, requested, gross)
		}

		if err := s.engine.Redeem(ctx, repo, customer.ID, requested); err != nil {
			return err
		}

		sale := domain.Sale{
			CustomerID:   customer.ID,
			SoldAt:       time.Now().UTC(),
			Lines:        lines,
			CashbackUsed: requested,
			Total:        gross.Sub(requested),
		}
		created, err := repo.CreateSale(ctx, sale)
		if err != nil {
			return err
		}

		if _, err := s.engine.Accrue(ctx, repo, *created); err != nil {
			return err
		}

		saved = *created
		return nil
	})
	if err != nil {
		return domain.Sale{}, err
	}

	log.Printf("[service] sale registered id=%s customer=%s total=%s cashback_used=%s", saved.ID, saved.CustomerID, saved.Total, saved.CashbackUsed)
	return saved, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context) ([]domain.Sale, error) {
	return s.repo.FindSalesByDateRange(ctx, time.Time{}, time.Now().UTC())
}

func (s *Service) SalesByCustomer(ctx context.Context, customerID string) ([]domain.Sale, error) {
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	return s.repo.FindSalesByCustomer(ctx, customerID)
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	taxID := strings.TrimSpace(req.TaxID)
	if !validTaxID(taxID) {
		return domain.Customer{}, fmt.Errorf("%w: tax id must be 11 digits", store.ErrInvalidInput)
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		TaxID:           taxID,
		FullName:        strings.TrimSpace(req.FullName),
		Phone:           strings.TrimSpace(req.Phone),
		Email:           strings.TrimSpace(req.Email),
		CashbackBalance: money.Zero(),
	})
	if err != nil {
		return domain.Customer{}, err
	}
	return *created, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerUpdateRequest) (domain.Customer, error) {
	existing, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}

	updated := *existing
	if req.TaxID != nil {
		taxID := strings.TrimSpace(*req.TaxID)
		if !validTaxID(taxID) {
			return domain.Customer{}, fmt.Errorf("%w: tax id must be 11 digits", store.ErrInvalidInput)
		}
		updated.TaxID = taxID
	}
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return domain.Customer{}, store.ErrInvalidInput
		}
		updated.FullName = name
	}
	if req.Phone != nil {
		updated.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Email != nil {
		updated.Email = strings.TrimSpace(*req.Email)
	}

	saved, err := s.repo.UpdateCustomer(ctx, updated)
	if err != nil {
		return domain.Customer{}, err
	}
	return *saved, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) GetCustomerByTaxID(ctx context.Context, taxID string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomerByTaxID(ctx, taxID)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

// DeleteCustomer removes the account together with its ledger entries and
// sales history.
func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}
	return s.repo.DeleteCustomer(ctx, id)
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) SearchCustomers(ctx context.Context, term string) ([]domain.Customer, error) {
	return s.repo.SearchCustomers(ctx, term)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" || !req.Price.IsPositive() {
		return domain.Product{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:   name,
		Brand:  strings.TrimSpace(req.Brand),
		Volume: strings.TrimSpace(req.Volume),
		Price:  req.Price,
	})
	if err != nil {
		return domain.Product{}, err
	}
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Brand != nil {
		updated.Brand = strings.TrimSpace(*req.Brand)
	}
	if req.Volume != nil {
		updated.Volume = strings.TrimSpace(*req.Volume)
	}
	if req.Price != nil {
		if !req.Price.IsPositive() {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Price = *req.Price
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}
	return s.repo.DeleteProduct(ctx, id)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) SearchProducts(ctx context.Context, term string) ([]domain.Product, error) {
	return s.repo.SearchProducts(ctx, term)
}

// CustomerBalance computes the live redeemable balance from open ledger
// entries. When the cached balance has drifted (expired entries are never
// written back), the cache is reconciled in passing.
func (s *Service) CustomerBalance(ctx context.Context, customerID string) (domain.BalanceResponse, error) {
	customer, err := s.repo.GetCustomer(ctx, customerID)
	if err != nil {
		return domain.BalanceResponse{}, err
	}

	available, err := s.engine.AvailableBalance(ctx, s.repo, customerID)
	if err != nil {
		return domain.BalanceResponse{}, err
	}

	if !customer.CashbackBalance.Equal(available) {
		customer.CashbackBalance = available
		if _, err := s.repo.UpdateCustomer(ctx, *customer); err != nil {
			log.Printf("[service] WARN: failed to reconcile cached balance customer=%s: %v", customerID, err)
		}
	}

	return domain.BalanceResponse{CustomerID: customerID, Available: available}, nil
}

func (s *Service) CustomerLedger(ctx context.Context, customerID string) ([]domain.CashbackEntry, error) {
	return s.repo.FindLedgerByCustomer(ctx, customerID)
}

// ExpiringCashback lists unconsumed entries that expire within the next seven
// days, joined with the contact details needed for a reminder call.
func (s *Service) ExpiringCashback(ctx context.Context) (domain.ExpiringCashbackResponse, error) {
	today := domain.DateOf(time.Now())
	entries, err := s.repo.FindLedgerExpiringBetween(ctx, today, today.AddDate(0, 0, expiringWindowDays))
	if err != nil {
		return domain.ExpiringCashbackResponse{}, err
	}

	items := make([]domain.ExpiringCashback, 0, len(entries))
	customers := map[string]*domain.Customer{}
	for _, entry := range entries {
		customer, cached := customers[entry.CustomerID]
		if !cached {
			customer, err = s.repo.GetCustomer(ctx, entry.CustomerID)
			if err != nil {
				customer = nil
			}
			customers[entry.CustomerID] = customer
		}
		if customer == nil {
			continue
		}
		items = append(items, domain.ExpiringCashback{
			Entry:         entry,
			CustomerName:  customer.FullName,
			CustomerPhone: customer.Phone,
		})
	}

	return domain.ExpiringCashbackResponse{
		GeneratedAt: today.Format("2006-01-02"),
		Items:       items,
	}, nil
}

func (s *Service) RepurchaseSuggestions(ctx context.Context) (domain.RepurchaseFeed, error) {
	if s.suggester == nil {
		return domain.RepurchaseFeed{}, errors.New("repurchase engine not configured")
	}
	feed, err := s.suggester.Suggestions(ctx, s.repo)
	if err != nil {
		return domain.RepurchaseFeed{}, err
	}
	return *feed, nil
}

func validTaxID(taxID string) bool {
	if len(taxID) != 11 {
		return false
	}
	for _, r := range taxID {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
