package reconsync

import (
	"context"
	"time"

	"gorm.io/gorm"

	"bitbucket.org/storyfount/finance_backend/models"
	"bitbucket.org/storyfount/finance_backend/money"
)

// LedgerStore is the slice of persistence the sync executor needs. Kept
// small so the executor's semantics can be exercised without a database.
type LedgerStore interface {
	// CreateFromProcessor seeds (or revives) a ledger row from the
	// processor's authoritative amount. Returns false when the row was
	// already in that state.
	CreateFromProcessor(ctx context.Context, customerId string, amountCents money.Cents) (bool, error)
	// UpdateAmount overwrites only the cached amount field.
	UpdateAmount(ctx context.Context, customerId string, amountCents money.Cents) (bool, error)
	// MarkCancelled deactivates a stale row, preserving it for audit.
	MarkCancelled(ctx context.Context, customerId string) (bool, error)
	// ActiveAmountsByCustomerIds batch-reads the active rows for a set of
	// customers, keyed by customer id. Customers with no active row are
	// absent from the result.
	ActiveAmountsByCustomerIds(ctx context.Context, customerIds []string) (map[string]money.Cents, error)
}

type gormLedgerStore struct {
	db *gorm.DB
}

func NewLedgerStore(db *gorm.DB) LedgerStore {
	return &gormLedgerStore{db: db}
}

func (s *gormLedgerStore) CreateFromProcessor(ctx context.Context, customerId string, amountCents money.Cents) (bool, error) {
	return models.UpsertFromProcessor(ctx, s.db, customerId, amountCents)
}

func (s *gormLedgerStore) UpdateAmount(ctx context.Context, customerId string, amountCents money.Cents) (bool, error) {
	return models.UpdateLedgerAmount(ctx, s.db, customerId, amountCents)
}

func (s *gormLedgerStore) MarkCancelled(ctx context.Context, customerId string) (bool, error) {
	return models.MarkLedgerCancelled(ctx, s.db, customerId, time.Now().UTC())
}

func (s *gormLedgerStore) ActiveAmountsByCustomerIds(ctx context.Context, customerIds []string) (map[string]money.Cents, error) {
	rows, err := models.GetLedgerSubscriptionsByCustomerIds(ctx, s.db, customerIds)
	if err != nil {
		return nil, err
	}
	amounts := make(map[string]money.Cents, len(rows))
	for _, row := range rows {
		if row.Status == models.SubscriptionStatusActive {
			amounts[row.CustomerId] = row.AmountCents
		}
	}
	return amounts, nil
}
