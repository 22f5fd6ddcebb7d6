package ports

import (
	"context"
	"errors"

	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/core/domain/model/shipment"
	"tracking/internal/core/domain/model/transaction"

	"github.com/shopspring/decimal"
)

// ErrDuplicateTransaction is returned by TransactionRepository.Add when the
// merchant reference already exists. Settlement treats it as success: the
// charge was applied by a concurrent or earlier attempt.
var ErrDuplicateTransaction = errors.New("transaction with this merchant reference already exists")

// TransactionRepository defines the persistence contract for wallet ledger
// entries.
type TransactionRepository interface {
	// Add persists a new transaction. Returns ErrDuplicateTransaction when
	// the store's uniqueness constraint on the merchant reference rejects
	// the row.
	Add(ctx context.Context, aggregate *transaction.Transaction) error

	// HasCompleted reports whether a completed transaction already exists
	// for the (shipment, charge type) pair. This is the settlement engine's
	// exactly-once existence check.
	HasCompleted(ctx context.Context, shipmentID kernel.UUID, chargeType shipment.ChargeType) (bool, error)

	// GetByShipment retrieves all transactions recorded for a shipment.
	GetByShipment(ctx context.Context, shipmentID kernel.UUID) ([]*transaction.Transaction, error)
}

// WalletRepository adjusts user wallet balances. The transaction log above is
// the audit trail; this is the balance side of the same settlement.
type WalletRepository interface {
	// AdjustBalance applies a signed delta to the user's wallet balance,
	// creating the wallet row on first use.
	AdjustBalance(ctx context.Context, userID kernel.UUID, delta decimal.Decimal) error

	// Balance returns the user's current wallet balance.
	Balance(ctx context.Context, userID kernel.UUID) (decimal.Decimal, error)
}
