package billingrepo

import (
	"context"
	"errors"
	"time"

	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/core/domain/model/shipment"
	"tracking/internal/core/domain/model/transaction"
	"tracking/internal/core/ports"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTransactionRepository implements TransactionRepository using GORM.
type GormTransactionRepository struct {
	db      *gorm.DB
	tracker aggregateTracker
}

// aggregateTracker defines the interface for tracking aggregates.
type aggregateTracker interface {
	TrackAggregate(id kernel.UUID, aggregate any)
}

// NewGormTransactionRepository creates a new GORM ledger repository.
func NewGormTransactionRepository(db *gorm.DB, tracker aggregateTracker) *GormTransactionRepository {
	return &GormTransactionRepository{
		db:      db,
		tracker: tracker,
	}
}

// Add saves a new ledger entry. A merchant reference collision surfaces as
// ports.ErrDuplicateTransaction so settlement can treat it as already done.
func (r *GormTransactionRepository) Add(ctx context.Context, aggregate *transaction.Transaction) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto := fromDomain(aggregate)
	if err := r.db.WithContext(ctx).Create(&dto).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ports.ErrDuplicateTransaction
		}
		return err
	}

	r.tracker.TrackAggregate(aggregate.ID(), aggregate)
	return nil
}

// HasCompleted reports whether a completed ledger entry already exists for
// the (shipment, charge type) pair.
func (r *GormTransactionRepository) HasCompleted(
	ctx context.Context,
	shipmentID kernel.UUID,
	chargeType shipment.ChargeType,
) (bool, error) {
	if err := shipmentID.Validate(); err != nil {
		return false, err
	}
	if err := chargeType.Validate(); err != nil {
		return false, err
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&TransactionDTO{}).
		Where("shipment_id = ?", shipmentID.Bytes()).
		Where("charge_type = ?", chargeType.Code()).
		Where("status = ?", transaction.StatusCompleted.String()).
		Count(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// GetByShipment retrieves all ledger entries recorded for a shipment.
func (r *GormTransactionRepository) GetByShipment(
	ctx context.Context,
	shipmentID kernel.UUID,
) ([]*transaction.Transaction, error) {
	if err := shipmentID.Validate(); err != nil {
		return nil, err
	}

	var dtos []TransactionDTO
	err := r.db.WithContext(ctx).
		Where("shipment_id = ?", shipmentID.Bytes()).
		Order("created_at ASC").
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}

	transactions := make([]*transaction.Transaction, 0, len(dtos))
	for _, dto := range dtos {
		t, tErr := toDomain(dto)
		if tErr != nil {
			return nil, tErr
		}
		transactions = append(transactions, t)
	}

	return transactions, nil
}

// GormWalletRepository implements WalletRepository using GORM.
type GormWalletRepository struct {
	db *gorm.DB
}

// NewGormWalletRepository creates a new GORM wallet repository.
func NewGormWalletRepository(db *gorm.DB) *GormWalletRepository {
	return &GormWalletRepository{db: db}
}

// AdjustBalance applies a signed delta to the user's wallet, creating the
// wallet row on first use. The adjustment is a single upsert so concurrent
// settlements serialize on the row instead of losing updates.
func (r *GormWalletRepository) AdjustBalance(
	ctx context.Context,
	userID kernel.UUID,
	delta decimal.Decimal,
) error {
	if err := userID.Validate(); err != nil {
		return err
	}

	dto := WalletDTO{
		UserID:    userID.Bytes(),
		Balance:   delta,
		UpdatedAt: time.Now().UTC(),
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"balance":    gorm.Expr("wallets.balance + EXCLUDED.balance"),
				"updated_at": gorm.Expr("EXCLUDED.updated_at"),
			}),
		}).
		Create(&dto).Error
}

// Balance returns the user's current wallet balance. A user with no wallet
// row yet has a zero balance.
func (r *GormWalletRepository) Balance(
	ctx context.Context,
	userID kernel.UUID,
) (decimal.Decimal, error) {
	if err := userID.Validate(); err != nil {
		return decimal.Zero, err
	}

	var dto WalletDTO
	err := r.db.WithContext(ctx).First(&dto, "user_id = ?", userID.Bytes()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}

	return dto.Balance, nil
}
