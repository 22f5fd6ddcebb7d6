// Package billingrepo provides data transfer objects and mapping functions
// for wallet ledger persistence. The unique constraint on merchant_ref is
// the durable half of the exactly-once settlement guarantee: a concurrent
// duplicate settle collides here instead of double-moving money.
package billingrepo

import (
	"time"

	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/core/domain/model/shipment"
	"tracking/internal/core/domain/model/transaction"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionDTO represents the database structure for persisting wallet
// ledger entries.
type TransactionDTO struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	ShipmentID  uuid.UUID `gorm:"type:uuid;index"`
	UserID      uuid.UUID `gorm:"type:uuid;index"`
	ChargeType  string
	Amount      decimal.Decimal `gorm:"type:numeric(12,2)"`
	Status      string
	MerchantRef string `gorm:"uniqueIndex"`
	CreatedAt   time.Time
}

// TableName specifies the database table name for ledger entries.
func (TransactionDTO) TableName() string {
	return "transactions"
}

// WalletDTO represents the per-user wallet balance row.
type WalletDTO struct {
	UserID    uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Balance   decimal.Decimal `gorm:"type:numeric(14,2)"`
	UpdatedAt time.Time
}

// TableName specifies the database table name for wallets.
func (WalletDTO) TableName() string {
	return "wallets"
}

// fromDomain converts a transaction domain aggregate to its database representation.
func fromDomain(aggregate *transaction.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:          aggregate.ID().Bytes(),
		ShipmentID:  aggregate.ShipmentID().Bytes(),
		UserID:      aggregate.UserID().Bytes(),
		ChargeType:  aggregate.ChargeType().Code(),
		Amount:      aggregate.Amount(),
		Status:      aggregate.Status().String(),
		MerchantRef: aggregate.MerchantRef(),
		CreatedAt:   aggregate.CreatedAt(),
	}
}

// toDomain converts a database DTO to a transaction domain aggregate.
func toDomain(dto TransactionDTO) (*transaction.Transaction, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return nil, err
	}
	shipmentID, err := kernel.UUIDFromBytes(dto.ShipmentID[:])
	if err != nil {
		return nil, err
	}
	userID, err := kernel.UUIDFromBytes(dto.UserID[:])
	if err != nil {
		return nil, err
	}
	chargeType, err := shipment.ChargeTypeFromCode(dto.ChargeType)
	if err != nil {
		return nil, err
	}
	status, err := statusFromString(dto.Status)
	if err != nil {
		return nil, err
	}

	return transaction.RestoreTransaction(
		id,
		shipmentID,
		userID,
		chargeType,
		dto.Amount,
		status,
		dto.MerchantRef,
		dto.CreatedAt,
	)
}

// statusFromString parses a persisted transaction status name.
func statusFromString(raw string) (transaction.Status, error) {
	for _, status := range []transaction.Status{
		transaction.StatusPending,
		transaction.StatusCompleted,
		transaction.StatusFailed,
	} {
		if status.String() == raw {
			return status, nil
		}
	}
	return transaction.StatusUnknown, transaction.StatusUnknown.Validate()
}
