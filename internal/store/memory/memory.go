package memory

import (
	"cmp"
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"bagatelle/backend/internal/domain"
	"bagatelle/backend/internal/money"
	"bagatelle/backend/internal/store"
	"bagatelle/backend/internal/xid"
)

// Store is the in-memory Repository used for dev/demo mode and tests. All
// state lives in a single dataset guarded by one RWMutex; Atomically snapshots
// the dataset and restores it when the transaction function fails.
type Store struct {
	mu   sync.RWMutex
	data *dataset
}

type dataset struct {
	customers        map[string]domain.Customer
	customersByTaxID map[string]string
	products         map[string]domain.Product
	ledger           map[string][]domain.CashbackEntry
	ledgerSeq        int64
	sales            map[string]domain.Sale
	usersByUsername  map[string]domain.UserAccount
}

func newDataset() *dataset {
	return &dataset{
		customers:        make(map[string]domain.Customer),
		customersByTaxID: make(map[string]string),
		products:         make(map[string]domain.Product),
		ledger:           make(map[string][]domain.CashbackEntry),
		sales:            make(map[string]domain.Sale),
		usersByUsername:  make(map[string]domain.UserAccount),
	}
}

func (d *dataset) clone() *dataset {
	dup := &dataset{
		customers:        make(map[string]domain.Customer, len(d.customers)),
		customersByTaxID: make(map[string]string, len(d.customersByTaxID)),
		products:         make(map[string]domain.Product, len(d.products)),
		ledger:           make(map[string][]domain.CashbackEntry, len(d.ledger)),
		ledgerSeq:        d.ledgerSeq,
		sales:            make(map[string]domain.Sale, len(d.sales)),
		usersByUsername:  make(map[string]domain.UserAccount, len(d.usersByUsername)),
	}
	for id, c := range d.customers {
		dup.customers[id] = c
	}
	for taxID, id := range d.customersByTaxID {
		dup.customersByTaxID[taxID] = id
	}
	for id, p := range d.products {
		dup.products[id] = p
	}
	for customerID, entries := range d.ledger {
		copied := make([]domain.CashbackEntry, len(entries))
		copy(copied, entries)
		dup.ledger[customerID] = copied
	}
	for id, sale := range d.sales {
		dup.sales[id] = cloneSale(sale)
	}
	for username, user := range d.usersByUsername {
		dup.usersByUsername[username] = user
	}
	return dup
}

func New() *Store {
	return &Store{data: newDataset()}
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_ATTENDANT_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	attendantPwd := envOr("SEED_ATTENDANT_PASSWORD", "attendant123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_ATTENDANT_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_ATTENDANT_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"attendant", attendantPwd, "attendant"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	s := New()
	s.data.usersByUsername = seedUsers()

	now := time.Now().UTC()
	for _, p := range []domain.Product{
		{Name: "Amber Nuit Eau de Parfum", Brand: "Bagatelle", Volume: "100ml", Price: money.MustParse("289.90")},
		{Name: "Amber Nuit Eau de Parfum", Brand: "Bagatelle", Volume: "50ml", Price: money.MustParse("189.90")},
		{Name: "Vetiver Sauvage", Brand: "Maison Verde", Volume: "75ml", Price: money.MustParse("349.00")},
		{Name: "Fleur Blanche Body Splash", Brand: "Bagatelle", Volume: "200ml", Price: money.MustParse("89.90")},
		{Name: "Rose Ancienne Travel Spray", Brand: "Maison Verde", Volume: "10ml", Price: money.MustParse("59.90")},
		{Name: "Citrus Mediterraneo", Brand: "Lumi", Volume: "120ml", Price: money.MustParse("219.50")},
	} {
		p.ID = xid.New("prd")
		p.CreatedAt = now
		s.data.products[p.ID] = p
	}
	return s
}

func (s *Store) Atomically(_ context.Context, fn func(store.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(&txStore{data: s.data}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *Store) read() *txStore  { return &txStore{data: s.data} }
func (s *Store) write() *txStore { return &txStore{data: s.data} }

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write().CreateCustomer(ctx, customer)
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetCustomer(ctx, id)
}

func (s *Store) GetCustomerByTaxID(ctx context.Context, taxID string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetCustomerByTaxID(ctx, taxID)
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write().UpdateCustomer(ctx, customer)
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write().DeleteCustomer(ctx, id)
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListCustomers(ctx)
}

func (s *Store) SearchCustomers(ctx context.Context, term string) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().SearchCustomers(ctx, term)
}

func (s *Store) CustomerExistsByTaxID(ctx context.Context, taxID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().CustomerExistsByTaxID(ctx, taxID)
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write().CreateProduct(ctx, product)
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetProduct(ctx, id)
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetProductsByIDs(ctx, ids)
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write().UpdateProduct(ctx, product)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write().DeleteProduct(ctx, id)
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListProducts(ctx)
}

func (s *Store) SearchProducts(ctx context.Context, term string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().SearchProducts(ctx, term)
}

func (s *Store) CreateLedgerEntry(ctx context.Context, entry domain.CashbackEntry) (*domain.CashbackEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write().CreateLedgerEntry(ctx, entry)
}

func (s *Store) UpdateLedgerEntry(ctx context.Context, entry domain.CashbackEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write().UpdateLedgerEntry(ctx, entry)
}

func (s *Store) FindOpenLedgerEntries(ctx context.Context, customerID string, asOf time.Time) ([]domain.CashbackEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().FindOpenLedgerEntries(ctx, customerID, asOf)
}

func (s *Store) FindLedgerByCustomer(ctx context.Context, customerID string) ([]domain.CashbackEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().FindLedgerByCustomer(ctx, customerID)
}

func (s *Store) FindLedgerExpiringBetween(ctx context.Context, from time.Time, to time.Time) ([]domain.CashbackEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().FindLedgerExpiringBetween(ctx, from, to)
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write().CreateSale(ctx, sale)
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetSale(ctx, id)
}

func (s *Store) FindSalesByCustomer(ctx context.Context, customerID string) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().FindSalesByCustomer(ctx, customerID)
}

func (s *Store) FindSalesByDateRange(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().FindSalesByDateRange(ctx, from, to)
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write().CreateUser(ctx, user)
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListUsers(ctx)
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write().UpdateUserPassword(ctx, username, password)
}

// txStore is the lock-free view handed to Atomically callbacks. The enclosing
// Store already holds the write lock, so all methods touch the dataset
// directly. Nested Atomically calls join the transaction in flight.
type txStore struct {
	data *dataset
}

func (t *txStore) Atomically(_ context.Context, fn func(store.Repository) error) error {
	return fn(t)
}

func (t *txStore) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	customer.TaxID = strings.TrimSpace(customer.TaxID)
	customer.FullName = strings.TrimSpace(customer.FullName)
	if customer.TaxID == "" || customer.FullName == "" {
		return nil, store.ErrInvalidInput
	}
	if _, exists := t.data.customersByTaxID[customer.TaxID]; exists {
		return nil, store.ErrConflict
	}
	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	t.data.customers[customer.ID] = customer
	t.data.customersByTaxID[customer.TaxID] = customer.ID
	created := customer
	return &created, nil
}

func (t *txStore) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	customer, exists := t.data.customers[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyCustomer := customer
	return &copyCustomer, nil
}

func (t *txStore) GetCustomerByTaxID(_ context.Context, taxID string) (*domain.Customer, error) {
	id, exists := t.data.customersByTaxID[strings.TrimSpace(taxID)]
	if !exists {
		return nil, store.ErrNotFound
	}
	customer := t.data.customers[id]
	copyCustomer := customer
	return &copyCustomer, nil
}

func (t *txStore) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	customer.TaxID = strings.TrimSpace(customer.TaxID)
	customer.FullName = strings.TrimSpace(customer.FullName)
	if customer.TaxID == "" || customer.FullName == "" {
		return nil, store.ErrInvalidInput
	}
	current, exists := t.data.customers[customer.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if customer.TaxID != current.TaxID {
		if _, taken := t.data.customersByTaxID[customer.TaxID]; taken {
			return nil, store.ErrConflict
		}
		delete(t.data.customersByTaxID, current.TaxID)
		t.data.customersByTaxID[customer.TaxID] = customer.ID
	}
	customer.CreatedAt = current.CreatedAt
	t.data.customers[customer.ID] = customer
	updated := customer
	return &updated, nil
}

func (t *txStore) DeleteCustomer(_ context.Context, id string) error {
	customer, exists := t.data.customers[id]
	if !exists {
		return store.ErrNotFound
	}
	delete(t.data.customers, id)
	delete(t.data.customersByTaxID, customer.TaxID)
	delete(t.data.ledger, id)
	for saleID, sale := range t.data.sales {
		if sale.CustomerID == id {
			delete(t.data.sales, saleID)
		}
	}
	return nil
}

func (t *txStore) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	customers := make([]domain.Customer, 0, len(t.data.customers))
	for _, c := range t.data.customers {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		if a.FullName == b.FullName {
			return cmpString(a.ID, b.ID)
		}
		return cmpString(a.FullName, b.FullName)
	})
	return customers, nil
}

func (t *txStore) SearchCustomers(ctx context.Context, term string) ([]domain.Customer, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return t.ListCustomers(ctx)
	}
	customers := make([]domain.Customer, 0, 16)
	for _, c := range t.data.customers {
		if strings.Contains(strings.ToLower(c.FullName), term) || strings.Contains(c.TaxID, term) {
			customers = append(customers, c)
		}
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		if a.FullName == b.FullName {
			return cmpString(a.ID, b.ID)
		}
		return cmpString(a.FullName, b.FullName)
	})
	return customers, nil
}

func (t *txStore) CustomerExistsByTaxID(_ context.Context, taxID string) (bool, error) {
	_, exists := t.data.customersByTaxID[strings.TrimSpace(taxID)]
	return exists, nil
}

func (t *txStore) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" || !product.Price.IsPositive() {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	t.data.products[product.ID] = product
	created := product
	return &created, nil
}

func (t *txStore) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	product, exists := t.data.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (t *txStore) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.data.products[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

func (t *txStore) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" || !product.Price.IsPositive() {
		return nil, store.ErrInvalidInput
	}
	current, exists := t.data.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	product.CreatedAt = current.CreatedAt
	t.data.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (t *txStore) DeleteProduct(_ context.Context, id string) error {
	if _, exists := t.data.products[id]; !exists {
		return store.ErrNotFound
	}
	delete(t.data.products, id)
	return nil
}

func (t *txStore) ListProducts(_ context.Context) ([]domain.Product, error) {
	products := make([]domain.Product, 0, len(t.data.products))
	for _, p := range t.data.products {
		products = append(products, p)
	}
	slices.SortFunc(products, compareProductByName)
	return products, nil
}

func (t *txStore) SearchProducts(ctx context.Context, term string) ([]domain.Product, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return t.ListProducts(ctx)
	}
	products := make([]domain.Product, 0, 16)
	for _, p := range t.data.products {
		if strings.Contains(strings.ToLower(p.Name), term) || strings.Contains(strings.ToLower(p.Brand), term) {
			products = append(products, p)
		}
	}
	slices.SortFunc(products, compareProductByName)
	return products, nil
}

func (t *txStore) CreateLedgerEntry(_ context.Context, entry domain.CashbackEntry) (*domain.CashbackEntry, error) {
	if entry.CustomerID == "" || !entry.Amount.IsPositive() {
		return nil, store.ErrInvalidInput
	}
	if _, exists := t.data.customers[entry.CustomerID]; !exists {
		return nil, store.ErrNotFound
	}
	if entry.ID == "" {
		entry.ID = xid.New("cb")
	}
	t.data.ledgerSeq++
	entry.Seq = t.data.ledgerSeq
	t.data.ledger[entry.CustomerID] = append(t.data.ledger[entry.CustomerID], entry)
	created := entry
	return &created, nil
}

func (t *txStore) UpdateLedgerEntry(_ context.Context, entry domain.CashbackEntry) error {
	entries := t.data.ledger[entry.CustomerID]
	for i := range entries {
		if entries[i].ID == entry.ID {
			entries[i] = entry
			return nil
		}
	}
	return store.ErrNotFound
}

func (t *txStore) FindOpenLedgerEntries(_ context.Context, customerID string, asOf time.Time) ([]domain.CashbackEntry, error) {
	result := make([]domain.CashbackEntry, 0, 8)
	for _, entry := range t.data.ledger[customerID] {
		if entry.Consumed || entry.ExpiredAt(asOf) {
			continue
		}
		result = append(result, entry)
	}
	slices.SortFunc(result, compareEntryByExpiry)
	return result, nil
}

func (t *txStore) FindLedgerByCustomer(_ context.Context, customerID string) ([]domain.CashbackEntry, error) {
	if _, exists := t.data.customers[customerID]; !exists {
		return nil, store.ErrNotFound
	}
	entries := t.data.ledger[customerID]
	result := make([]domain.CashbackEntry, len(entries))
	copy(result, entries)
	slices.SortFunc(result, func(a, b domain.CashbackEntry) int {
		if a.IssuedOn.Equal(b.IssuedOn) {
			return cmp.Compare(b.Seq, a.Seq)
		}
		if a.IssuedOn.After(b.IssuedOn) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (t *txStore) FindLedgerExpiringBetween(_ context.Context, from time.Time, to time.Time) ([]domain.CashbackEntry, error) {
	result := make([]domain.CashbackEntry, 0, 16)
	for _, entries := range t.data.ledger {
		for _, entry := range entries {
			if entry.Consumed {
				continue
			}
			if entry.ExpiresOn.Before(from) || entry.ExpiresOn.After(to) {
				continue
			}
			result = append(result, entry)
		}
	}
	slices.SortFunc(result, compareEntryByExpiry)
	return result, nil
}

func (t *txStore) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.CustomerID == "" || len(sale.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}
	if _, exists := t.data.customers[sale.CustomerID]; !exists {
		return nil, store.ErrNotFound
	}
	if sale.ID == "" {
		sale.ID = xid.New("sal")
	}
	if sale.SoldAt.IsZero() {
		sale.SoldAt = time.Now().UTC()
	}
	t.data.sales[sale.ID] = cloneSale(sale)
	created := cloneSale(sale)
	return &created, nil
}

func (t *txStore) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	sale, exists := t.data.sales[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySale := cloneSale(sale)
	return &copySale, nil
}

func (t *txStore) FindSalesByCustomer(_ context.Context, customerID string) ([]domain.Sale, error) {
	result := make([]domain.Sale, 0, 8)
	for _, sale := range t.data.sales {
		if sale.CustomerID != customerID {
			continue
		}
		result = append(result, cloneSale(sale))
	}
	slices.SortFunc(result, compareSaleNewestFirst)
	return result, nil
}

func (t *txStore) FindSalesByDateRange(_ context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	result := make([]domain.Sale, 0, 16)
	for _, sale := range t.data.sales {
		if sale.SoldAt.Before(from) || sale.SoldAt.After(to) {
			continue
		}
		result = append(result, cloneSale(sale))
	}
	slices.SortFunc(result, compareSaleNewestFirst)
	return result, nil
}

func (t *txStore) CreateUser(_ context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := t.data.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "attendant"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	t.data.usersByUsername[user.Username] = user
	return nil
}

func (t *txStore) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	users := make([]domain.UserAccount, 0, len(t.data.usersByUsername))
	for _, user := range t.data.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (t *txStore) UpdateUserPassword(_ context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := t.data.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	t.data.usersByUsername[username] = user
	return nil
}

func compareEntryByExpiry(a domain.CashbackEntry, b domain.CashbackEntry) int {
	if a.ExpiresOn.Equal(b.ExpiresOn) {
		return cmp.Compare(a.Seq, b.Seq)
	}
	if a.ExpiresOn.Before(b.ExpiresOn) {
		return -1
	}
	return 1
}

func compareSaleNewestFirst(a domain.Sale, b domain.Sale) int {
	if a.SoldAt.Equal(b.SoldAt) {
		return cmpString(b.ID, a.ID)
	}
	if a.SoldAt.After(b.SoldAt) {
		return -1
	}
	return 1
}

func compareProductByName(a domain.Product, b domain.Product) int {
	if a.Name == b.Name {
		return cmpString(a.ID, b.ID)
	}
	return cmpString(a.Name, b.Name)
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

func cloneSale(src domain.Sale) domain.Sale {
	dup := src
	lines := make([]domain.SaleLine, len(src.Lines))
	copy(lines, src.Lines)
	dup.Lines = lines
	return dup
}
