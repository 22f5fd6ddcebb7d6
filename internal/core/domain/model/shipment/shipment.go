package shipment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/pkg/errs"
)

var (
	// ErrShipmentIsNotConstructed is returned when a Shipment instance was not
	// created through NewShipment or RestoreShipment.
	ErrShipmentIsNotConstructed = errors.New(
		"Shipment must be created via NewShipment or RestoreShipment constructor")

	// ErrShipmentIsFinal is returned when tracking tries to transition a
	// shipment out of a terminal status.
	ErrShipmentIsFinal = errors.New("shipment is in a final status and cannot transition")
)

// Shipment is the aggregate root tracking one parcel booked with an external
// carrier, from carrier assignment through delivery or return.
//
// Invariants:
//   - bucket is always derived from status; the two never disagree after a write
//   - transition timestamps are stamped once, on the transition that earns them
//   - charge amounts are immutable; only processed flags flip, and only forward
//   - a shipment in a final status never transitions again
//
// Status, bucket and transition dates are mutated only by tracking
// reconciliation (ApplyTracking, RecordNDR); processed flags only by charge
// settlement (MarkChargeProcessed). Shipments are never deleted.
type Shipment struct {
	id      kernel.UUID
	orderID kernel.UUID
	userID  kernel.UUID

	// carrierCode identifies the vendor adapter used for tracking, e.g. "velocity".
	carrierCode string

	// awb is the carrier-assigned tracking number; nil until the carrier issues one.
	awb *string

	paymentMode PaymentMode

	status Status
	bucket Bucket

	pickedUpAt     *time.Time
	deliveredAt    *time.Time
	rtoDeliveredAt *time.Time

	ndrReason   *string
	ndrRaisedAt *time.Time

	charges   Charges
	processed ProcessedCharges

	isConstructed bool
}

// ProcessedCharges records which charge types have been settled.
// A set flag is the aggregate-local half of the exactly-once settlement
// guarantee; the ledger's completed-transaction check is the durable half.
type ProcessedCharges struct {
	Forward             bool
	COD                 bool
	RTO                 bool
	ForwardExcessWeight bool
	RTOExcessWeight     bool
	CODReversal         bool
}

// NewShipment creates a shipment at the moment a carrier is assigned.
// The shipment starts in New status with no charges processed.
func NewShipment(
	id kernel.UUID,
	orderID kernel.UUID,
	userID kernel.UUID,
	carrierCode string,
	awb *string,
	paymentMode PaymentMode,
	charges Charges,
) (*Shipment, error) {
	s := &Shipment{
		status:        New,
		bucket:        BucketOf(New),
		isConstructed: true,
	}

	if err := errors.Join(
		s.setID(id),
		s.setOrderID(orderID),
		s.setUserID(userID),
		s.setCarrierCode(carrierCode),
		s.setAWB(awb),
		s.setPaymentMode(paymentMode),
		s.setCharges(charges),
	); err != nil {
		return nil, err
	}

	return s, nil
}

// RestoreShipment reconstructs a shipment from persistence.
// Unlike NewShipment it accepts the full persisted state, but it still
// re-derives the bucket from the status so a corrupted row cannot smuggle a
// divergent bucket back into the domain.
func RestoreShipment(
	id kernel.UUID,
	orderID kernel.UUID,
	userID kernel.UUID,
	carrierCode string,
	awb *string,
	paymentMode PaymentMode,
	status Status,
	charges Charges,
	processed ProcessedCharges,
	pickedUpAt, deliveredAt, rtoDeliveredAt *time.Time,
	ndrReason *string,
	ndrRaisedAt *time.Time,
) (*Shipment, error) {
	s, err := NewShipment(id, orderID, userID, carrierCode, awb, paymentMode, charges)
	if err != nil {
		return nil, err
	}

	if err = status.Validate(); err != nil {
		return nil, err
	}

	s.status = status
	s.bucket = BucketOf(status)
	s.processed = processed
	s.pickedUpAt = pickedUpAt
	s.deliveredAt = deliveredAt
	s.rtoDeliveredAt = rtoDeliveredAt
	s.ndrReason = ndrReason
	s.ndrRaisedAt = ndrRaisedAt

	return s, nil
}

// Validate ensures the Shipment was created through a constructor.
func (s *Shipment) Validate() error {
	if s == nil || !s.isConstructed {
		return ErrShipmentIsNotConstructed
	}
	return nil
}

// IsEqual compares two shipments by their unique identifiers.
func (s *Shipment) IsEqual(other *Shipment) bool {
	return other != nil && s.id.IsEqual(other.id)
}

// ID returns the shipment's unique identifier.
func (s *Shipment) ID() kernel.UUID {
	return s.id
}

// OrderID returns the identifier of the order this shipment fulfils.
func (s *Shipment) OrderID() kernel.UUID {
	return s.orderID
}

// UserID returns the owning seller whose wallet settles this shipment's charges.
func (s *Shipment) UserID() kernel.UUID {
	return s.userID
}

// CarrierCode returns the carrier identity used to resolve a vendor adapter.
func (s *Shipment) CarrierCode() string {
	return s.carrierCode
}

// AWB returns the carrier tracking number, or nil if not yet issued.
func (s *Shipment) AWB() *string {
	return s.awb
}

// PaymentMode returns the order's payment mode.
func (s *Shipment) PaymentMode() PaymentMode {
	return s.paymentMode
}

// Status returns the current fine-grained status.
func (s *Shipment) Status() Status {
	return s.status
}

// Bucket returns the coarse bucket derived from the current status.
func (s *Shipment) Bucket() Bucket {
	return s.bucket
}

// PickedUpAt returns when the carrier collected the parcel, if it has.
func (s *Shipment) PickedUpAt() *time.Time {
	return s.pickedUpAt
}

// DeliveredAt returns when the parcel was delivered, if it was.
func (s *Shipment) DeliveredAt() *time.Time {
	return s.deliveredAt
}

// RTODeliveredAt returns when a returned parcel reached the seller, if it did.
func (s *Shipment) RTODeliveredAt() *time.Time {
	return s.rtoDeliveredAt
}

// NDRReason returns the carrier's reason for the latest failed delivery attempt.
func (s *Shipment) NDRReason() *string {
	return s.ndrReason
}

// NDRRaisedAt returns when the latest non-delivery report was raised.
func (s *Shipment) NDRRaisedAt() *time.Time {
	return s.ndrRaisedAt
}

// Charges returns the configured charge amounts.
func (s *Shipment) Charges() Charges {
	return s.charges
}

// Processed returns the per-charge-type settlement flags.
func (s *Shipment) Processed() ProcessedCharges {
	return s.processed
}

// ApplyTracking transitions the shipment to newStatus as reported by the
// carrier at time at, re-deriving the bucket and stamping the transition
// date the new status earns. Applying the current status again is a no-op.
// Transitions out of a final status are rejected.
func (s *Shipment) ApplyTracking(newStatus Status, at time.Time) error {
	if err := newStatus.Validate(); err != nil {
		return err
	}

	if newStatus == s.status {
		return nil
	}

	if s.status.IsFinal() {
		return fmt.Errorf("%w: %s -> %s", ErrShipmentIsFinal, s.status, newStatus)
	}

	s.status = newStatus
	s.bucket = BucketOf(newStatus)

	at = at.UTC()
	switch newStatus {
	case PickedUp:
		if s.pickedUpAt == nil {
			s.pickedUpAt = &at
		}
	case Delivered:
		if s.deliveredAt == nil {
			s.deliveredAt = &at
		}
	case RTODelivered:
		if s.rtoDeliveredAt == nil {
			s.rtoDeliveredAt = &at
		}
	}

	return nil
}

// RecordNDR stores the carrier's non-delivery reason for seller follow-up.
// Overwrites any previous reason: only the latest attempt matters.
func (s *Shipment) RecordNDR(reason string, at time.Time) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return
	}
	at = at.UTC()
	s.ndrReason = &reason
	s.ndrRaisedAt = &at
}

// ChargeProcessed reports whether the given charge type has been settled.
func (s *Shipment) ChargeProcessed(t ChargeType) bool {
	switch t {
	case ChargeForward:
		return s.processed.Forward
	case ChargeCOD:
		return s.processed.COD
	case ChargeRTO:
		return s.processed.RTO
	case ChargeForwardExcessWeight:
		return s.processed.ForwardExcessWeight
	case ChargeRTOExcessWeight:
		return s.processed.RTOExcessWeight
	case ChargeCODReversal:
		return s.processed.CODReversal
	default:
		return false
	}
}

// MarkChargeProcessed flips the settled flag for the given charge type.
// The flag only moves forward; settlement never clears it.
func (s *Shipment) MarkChargeProcessed(t ChargeType) error {
	if err := t.Validate(); err != nil {
		return err
	}

	switch t {
	case ChargeForward:
		s.processed.Forward = true
	case ChargeCOD:
		s.processed.COD = true
	case ChargeRTO:
		s.processed.RTO = true
	case ChargeForwardExcessWeight:
		s.processed.ForwardExcessWeight = true
	case ChargeRTOExcessWeight:
		s.processed.RTOExcessWeight = true
	case ChargeCODReversal:
		s.processed.CODReversal = true
	}

	return nil
}

// setID validates and sets the shipment's unique identifier.
func (s *Shipment) setID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	s.id = id
	return nil
}

// setOrderID validates and sets the fulfilled order's identifier.
func (s *Shipment) setOrderID(orderID kernel.UUID) error {
	if err := orderID.Validate(); err != nil {
		return err
	}
	s.orderID = orderID
	return nil
}

// setUserID validates and sets the owning seller's identifier.
func (s *Shipment) setUserID(userID kernel.UUID) error {
	if err := userID.Validate(); err != nil {
		return err
	}
	s.userID = userID
	return nil
}

// setCarrierCode validates and sets the carrier identity.
func (s *Shipment) setCarrierCode(carrierCode string) error {
	if strings.TrimSpace(carrierCode) == "" {
		return errs.NewValueIsRequiredError("carrierCode")
	}
	s.carrierCode = carrierCode
	return nil
}

// setAWB sets the optional carrier tracking number.
// An empty string is normalized to nil so "has AWB" checks stay simple.
func (s *Shipment) setAWB(awb *string) error {
	if awb == nil || strings.TrimSpace(*awb) == "" {
		s.awb = nil
		return nil
	}
	trimmed := strings.TrimSpace(*awb)
	s.awb = &trimmed
	return nil
}

// setPaymentMode validates and sets the payment mode.
func (s *Shipment) setPaymentMode(mode PaymentMode) error {
	if err := mode.Validate(); err != nil {
		return err
	}
	s.paymentMode = mode
	return nil
}

// setCharges validates and sets the configured charge amounts.
func (s *Shipment) setCharges(charges Charges) error {
	if err := charges.Validate(); err != nil {
		return err
	}
	s.charges = charges
	return nil
}
