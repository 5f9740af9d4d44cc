package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"bagatelle/backend/internal/domain"
	"bagatelle/backend/internal/money"
	"bagatelle/backend/internal/store"
)

func TestAtomicallyRollsBackLedgerConsumption(t *testing.T) {
	databaseURL := os.Getenv("BAGATELLE_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set BAGATELLE_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	customerID := fmt.Sprintf("cus-redeem-it-%d", stamp)
	taxID := fmt.Sprintf("%011d", stamp%100000000000)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM cashback_entries WHERE customer_id = $1`, customerID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, customerID)
	})

	if _, err := s.CreateCustomer(ctx, domain.Customer{
		ID:       customerID,
		TaxID:    taxID,
		FullName: "Integration Redeem",
	}); err != nil {
		t.Fatalf("create customer: %v", err)
	}

	entry, err := s.CreateLedgerEntry(ctx, domain.NewCashbackEntry(customerID, "", money.MustParse("4.00"), time.Now().UTC()))
	if err != nil {
		t.Fatalf("create ledger entry: %v", err)
	}

	wantErr := fmt.Errorf("forced failure")
	err = s.Atomically(ctx, func(repo store.Repository) error {
		consumed := *entry
		consumed.ConsumedAmount = money.MustParse("4.00")
		consumed.Consumed = true
		if err := repo.UpdateLedgerEntry(ctx, consumed); err != nil {
			return err
		}
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("expected forced failure to surface, got %v", err)
	}

	open, err := s.FindOpenLedgerEntries(ctx, customerID, time.Now().UTC())
	if err != nil {
		t.Fatalf("find open entries: %v", err)
	}
	if len(open) != 1 || !open[0].ConsumedAmount.IsZero() {
		t.Fatalf("expected consumption rolled back, got %+v", open)
	}
}
