package transaction

import (
	"errors"
	"fmt"
	"time"

	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/core/domain/model/shipment"
	"tracking/internal/pkg/errs"

	"github.com/shopspring/decimal"
)

// ErrTransactionIsNotConstructed is returned when a Transaction instance was
// not created through NewTransaction or RestoreTransaction.
var ErrTransactionIsNotConstructed = errors.New(
	"Transaction must be created via NewTransaction constructor")

// Status represents the lifecycle state of a wallet transaction.
type Status int

const (
	// StatusUnknown represents an invalid or undefined status.
	StatusUnknown Status = iota

	// StatusPending is reserved for asynchronously settled transactions.
	StatusPending

	// StatusCompleted means the wallet balance has been adjusted.
	// At most one completed transaction may exist per (shipment, charge type).
	StatusCompleted

	// StatusFailed means the adjustment was attempted and did not apply.
	StatusFailed
)

func getStatusStrings() map[Status]string {
	return map[Status]string{
		StatusUnknown:   "UNKNOWN",
		StatusPending:   "PENDING",
		StatusCompleted: "COMPLETED",
		StatusFailed:    "FAILED",
	}
}

// Validate checks if the Status value is valid.
func (s Status) Validate() error {
	if s != StatusPending && s != StatusCompleted && s != StatusFailed {
		return errs.NewValueIsInvalidErrorWithCause("transaction status is invalid",
			fmt.Errorf("%d is not a valid transaction status", s))
	}
	return nil
}

// String returns the human-readable name of the status.
func (s Status) String() string {
	if str, ok := getStatusStrings()[s]; ok {
		return str
	}
	return "UNKNOWN"
}

// Transaction is one ledger entry recording a charge settled against a user
// wallet for a shipment. The merchant reference is derived deterministically
// from the charge type and the shipment identity, so a concurrent duplicate
// create collides on the store's uniqueness constraint instead of
// double-applying money movement.
type Transaction struct {
	id          kernel.UUID
	shipmentID  kernel.UUID
	userID      kernel.UUID
	chargeType  shipment.ChargeType
	amount      decimal.Decimal
	status      Status
	merchantRef string
	createdAt   time.Time

	isConstructed bool
}

// MerchantRef derives the unique merchant reference for a charge on a
// shipment: the charge code plus the AWB when one exists, the shipment id
// otherwise. Deterministic so every retry produces the same reference.
func MerchantRef(chargeType shipment.ChargeType, awb *string, shipmentID kernel.UUID) string {
	ref := shipmentID.String()
	if awb != nil && *awb != "" {
		ref = *awb
	}
	return fmt.Sprintf("%s-%s", chargeType.Code(), ref)
}

// NewTransaction creates a completed wallet transaction for a settled charge.
// amount carries its sign: negative for debits, positive for credits.
func NewTransaction(
	id kernel.UUID,
	shipmentID kernel.UUID,
	userID kernel.UUID,
	chargeType shipment.ChargeType,
	amount decimal.Decimal,
	merchantRef string,
	createdAt time.Time,
) (*Transaction, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if err := shipmentID.Validate(); err != nil {
		return nil, err
	}
	if err := userID.Validate(); err != nil {
		return nil, err
	}
	if err := chargeType.Validate(); err != nil {
		return nil, err
	}
	if merchantRef == "" {
		return nil, errs.NewValueIsRequiredError("merchantRef")
	}

	return &Transaction{
		id:            id,
		shipmentID:    shipmentID,
		userID:        userID,
		chargeType:    chargeType,
		amount:        amount,
		status:        StatusCompleted,
		merchantRef:   merchantRef,
		createdAt:     createdAt.UTC(),
		isConstructed: true,
	}, nil
}

// RestoreTransaction reconstructs a transaction from persistence.
func RestoreTransaction(
	id kernel.UUID,
	shipmentID kernel.UUID,
	userID kernel.UUID,
	chargeType shipment.ChargeType,
	amount decimal.Decimal,
	status Status,
	merchantRef string,
	createdAt time.Time,
) (*Transaction, error) {
	t, err := NewTransaction(id, shipmentID, userID, chargeType, amount, merchantRef, createdAt)
	if err != nil {
		return nil, err
	}
	if err = status.Validate(); err != nil {
		return nil, err
	}
	t.status = status
	return t, nil
}

// Validate ensures the Transaction was created through a constructor.
func (t *Transaction) Validate() error {
	if t == nil || !t.isConstructed {
		return ErrTransactionIsNotConstructed
	}
	return nil
}

// ID returns the transaction's unique identifier.
func (t *Transaction) ID() kernel.UUID {
	return t.id
}

// ShipmentID returns the shipment this transaction settles a charge for.
func (t *Transaction) ShipmentID() kernel.UUID {
	return t.shipmentID
}

// UserID returns the wallet owner.
func (t *Transaction) UserID() kernel.UUID {
	return t.userID
}

// ChargeType returns the charge this transaction settles.
func (t *Transaction) ChargeType() shipment.ChargeType {
	return t.chargeType
}

// Amount returns the signed amount: negative debits, positive credits.
func (t *Transaction) Amount() decimal.Decimal {
	return t.amount
}

// Status returns the transaction status.
func (t *Transaction) Status() Status {
	return t.status
}

// MerchantRef returns the unique, deterministically derived reference.
func (t *Transaction) MerchantRef() string {
	return t.merchantRef
}

// CreatedAt returns when the transaction was created, in UTC.
func (t *Transaction) CreatedAt() time.Time {
	return t.createdAt
}
