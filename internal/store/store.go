package store

import (
	"context"
	"errors"
	"time"

	"bagatelle/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("already exists")
)

// Repository is the persistence contract for the loyalty ledger. Each entity
// lives in its own keyed store; relationships are identifiers resolved through
// these methods rather than object graphs.
//
// Atomically runs fn against a transactional view of the repository. If fn
// returns an error, every mutation made through that view is rolled back.
// The postgres implementation opens a serializable transaction; the in-memory
// implementation holds the write lock and restores a snapshot on failure.
// Nested calls join the enclosing transaction.
type Repository interface {
	Atomically(ctx context.Context, fn func(Repository) error) error

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	GetCustomerByTaxID(ctx context.Context, taxID string) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	SearchCustomers(ctx context.Context, term string) ([]domain.Customer, error)
	CustomerExistsByTaxID(ctx context.Context, taxID string) (bool, error)

	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	ListProducts(ctx context.Context) ([]domain.Product, error)
	SearchProducts(ctx context.Context, term string) ([]domain.Product, error)

	CreateLedgerEntry(ctx context.Context, entry domain.CashbackEntry) (*domain.CashbackEntry, error)
	UpdateLedgerEntry(ctx context.Context, entry domain.CashbackEntry) error
	// FindOpenLedgerEntries returns unconsumed, unexpired entries for the
	// customer ordered by expiry ascending with a stable creation-order
	// tie-break, so redemption drains the most urgent credit first.
	FindOpenLedgerEntries(ctx context.Context, customerID string, asOf time.Time) ([]domain.CashbackEntry, error)
	FindLedgerByCustomer(ctx context.Context, customerID string) ([]domain.CashbackEntry, error)
	FindLedgerExpiringBetween(ctx context.Context, from time.Time, to time.Time) ([]domain.CashbackEntry, error)

	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	FindSalesByCustomer(ctx context.Context, customerID string) ([]domain.Sale, error)
	FindSalesByDateRange(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
