package cashback

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"bagatelle/backend/internal/domain"
	"bagatelle/backend/internal/money"
	"bagatelle/backend/internal/store"
)

// Rate is the fraction of a sale's final total granted back as cashback.
var Rate = decimal.RequireFromString("0.05")

var ErrInsufficientBalance = errors.New("insufficient cashback balance")

// ErrLedgerDesync signals that the cached balance allowed a redemption the
// open ledger entries could not cover. It is an internal fault, not a client
// error, and any enclosing transaction must roll back.
var ErrLedgerDesync = errors.New("cashback ledger out of sync with cached balance")

// InsufficientBalanceError reports a redemption attempt that exceeds what the
// customer has available right now.
type InsufficientBalanceError struct {
	Available money.Money
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient cashback balance: %s available", e.Available)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// Engine owns the cashback ledger rules: accrual on completed sales,
// expiry-ordered redemption, and live balance computation. It mutates only
// through the Repository handed to each call, so callers control transaction
// scope.
type Engine struct {
	now func() time.Time
}

func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// Accrue grants Rate of the sale total as a new ledger entry and adds it to
// the customer's cached balance. Amounts below one cent after rounding are
// suppressed entirely; no entry is written. Returns the created entry, or nil
// when suppressed.
func (e *Engine) Accrue(ctx context.Context, repo store.Repository, sale domain.Sale) (*domain.CashbackEntry, error) {
	amount := sale.Total.MulRate(Rate)
	if amount.Cmp(money.MustParse("0.01")) < 0 {
		return nil, nil
	}

	entry := domain.NewCashbackEntry(sale.CustomerID, sale.ID, amount, e.now().UTC())
	created, err := repo.CreateLedgerEntry(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("accrue cashback: %w", err)
	}

	customer, err := repo.GetCustomer(ctx, sale.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("accrue cashback: %w", err)
	}
	customer.CashbackBalance = customer.CashbackBalance.Add(amount)
	if _, err := repo.UpdateCustomer(ctx, *customer); err != nil {
		return nil, fmt.Errorf("accrue cashback: %w", err)
	}
	return created, nil
}

// Redeem consumes amount from the customer's open ledger entries, draining the
// entry closest to expiry first. A zero or negative amount is a no-op. Asking
// for more than the live available balance fails with InsufficientBalanceError
// and leaves the ledger untouched.
func (e *Engine) Redeem(ctx context.Context, repo store.Repository, customerID string, amount money.Money) error {
	if !amount.IsPositive() {
		return nil
	}

	available, err := e.AvailableBalance(ctx, repo, customerID)
	if err != nil {
		return fmt.Errorf("redeem cashback: %w", err)
	}
	if amount.Cmp(available) > 0 {
		return &InsufficientBalanceError{Available: available}
	}

	today := domain.DateOf(e.now())
	entries, err := repo.FindOpenLedgerEntries(ctx, customerID, today)
	if err != nil {
		return fmt.Errorf("redeem cashback: %w", err)
	}

	remaining := amount
	for _, entry := range entries {
		if !remaining.IsPositive() {
			break
		}
		take := entry.AvailableAt(today).Min(remaining)
		if !take.IsPositive() {
			continue
		}
		entry.ConsumedAmount = entry.ConsumedAmount.Add(take)
		entry.Consumed = entry.ConsumedAmount.Cmp(entry.Amount) >= 0
		if err := repo.UpdateLedgerEntry(ctx, entry); err != nil {
			return fmt.Errorf("redeem cashback: %w", err)
		}
		remaining = remaining.Sub(take)
	}
	if !remaining.IsZero() {
		return ErrLedgerDesync
	}

	customer, err := repo.GetCustomer(ctx, customerID)
	if err != nil {
		return fmt.Errorf("redeem cashback: %w", err)
	}
	customer.CashbackBalance = customer.CashbackBalance.Sub(amount)
	if customer.CashbackBalance.IsNegative() {
		log.Printf("[cashback] WARN: cached balance for customer=%s went negative after redeeming %s; reconciling to zero", customerID, amount)
		customer.CashbackBalance = money.Zero()
	}
	if _, err := repo.UpdateCustomer(ctx, *customer); err != nil {
		return fmt.Errorf("redeem cashback: %w", err)
	}
	return nil
}

// AvailableBalance sums the redeemable remainder of every open ledger entry.
// The customer's cached balance is a display shortcut; this is the ground
// truth used for redemption decisions.
func (e *Engine) AvailableBalance(ctx context.Context, repo store.Repository, customerID string) (money.Money, error) {
	today := domain.DateOf(e.now())
	entries, err := repo.FindOpenLedgerEntries(ctx, customerID, today)
	if err != nil {
		return money.Zero(), fmt.Errorf("available balance: %w", err)
	}
	total := money.Zero()
	for _, entry := range entries {
		total = total.Add(entry.AvailableAt(today))
	}
	return total, nil
}
