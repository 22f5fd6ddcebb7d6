package shipment

import (
	"fmt"

	"tracking/internal/pkg/errs"

	"github.com/shopspring/decimal"
)

// ChargeType is the closed set of monetary charges settled against a user
// wallet over a shipment's lifecycle. Each variant carries its own
// eligibility rule, amount source and direction, so adding a charge type
// means adding one constant and extending the three switch statements below
// (all of which fail loudly on an unknown variant).
type ChargeType int

const (
	// ChargeForward is the base freight charge, debited once the shipment exists.
	ChargeForward ChargeType = iota + 1

	// ChargeCOD is the cash-on-delivery handling fee, debited for COD shipments.
	ChargeCOD

	// ChargeRTO is the return freight charge, debited when a shipment enters
	// the RTO bucket.
	ChargeRTO

	// ChargeForwardExcessWeight is the forward-leg weight discrepancy charge.
	ChargeForwardExcessWeight

	// ChargeRTOExcessWeight is the return-leg weight discrepancy charge,
	// debited only for RTO shipments.
	ChargeRTOExcessWeight

	// ChargeCODReversal credits the collectible COD amount back to the seller
	// when a COD shipment is returned instead of delivered.
	ChargeCODReversal
)

// AllChargeTypes returns every charge type in settlement order.
// The settlement engine iterates this slice so a new variant is picked up
// automatically once added here.
func AllChargeTypes() []ChargeType {
	return []ChargeType{
		ChargeForward,
		ChargeCOD,
		ChargeRTO,
		ChargeForwardExcessWeight,
		ChargeRTOExcessWeight,
		ChargeCODReversal,
	}
}

// Validate checks if the ChargeType value is valid.
func (t ChargeType) Validate() error {
	switch t {
	case ChargeForward, ChargeCOD, ChargeRTO,
		ChargeForwardExcessWeight, ChargeRTOExcessWeight, ChargeCODReversal:
		return nil
	default:
		return errs.NewValueIsInvalidErrorWithCause("charge type is invalid",
			fmt.Errorf("%d is not a valid charge type", t))
	}
}

// Code returns the stable short code used in merchant references and
// persisted transaction rows. Codes never change once released: merchant
// reference uniqueness depends on them.
func (t ChargeType) Code() string {
	switch t {
	case ChargeForward:
		return "FW"
	case ChargeCOD:
		return "COD"
	case ChargeRTO:
		return "RTO"
	case ChargeForwardExcessWeight:
		return "FW_EXCESS"
	case ChargeRTOExcessWeight:
		return "RTO_EXCESS"
	case ChargeCODReversal:
		return "COD_REVERSAL"
	default:
		return "UNKNOWN"
	}
}

// ChargeTypeFromCode parses a persisted charge code back into its type.
func ChargeTypeFromCode(code string) (ChargeType, error) {
	for _, t := range AllChargeTypes() {
		if t.Code() == code {
			return t, nil
		}
	}
	return 0, errs.NewValueIsInvalidErrorWithCause("charge type is invalid",
		fmt.Errorf("%q is not a valid charge code", code))
}

// String returns the human-readable name of the charge type.
func (t ChargeType) String() string {
	switch t {
	case ChargeForward:
		return "Forward"
	case ChargeCOD:
		return "COD"
	case ChargeRTO:
		return "RTO"
	case ChargeForwardExcessWeight:
		return "ForwardExcessWeight"
	case ChargeRTOExcessWeight:
		return "RTOExcessWeight"
	case ChargeCODReversal:
		return "CODReversal"
	default:
		return "Unknown"
	}
}

// IsCredit reports whether settling this charge credits the wallet.
// Only the COD reversal is a credit; every other charge debits.
func (t ChargeType) IsCredit() bool {
	return t == ChargeCODReversal
}

// Amount returns the monetary amount this charge settles for the given
// shipment. The COD reversal settles the collectible order value; all other
// variants settle their configured fee.
func (t ChargeType) Amount(s *Shipment) decimal.Decimal {
	switch t {
	case ChargeForward:
		return s.charges.Forward
	case ChargeCOD:
		return s.charges.COD
	case ChargeRTO:
		return s.charges.RTO
	case ChargeForwardExcessWeight:
		return s.charges.ForwardExcessWeight
	case ChargeRTOExcessWeight:
		return s.charges.RTOExcessWeight
	case ChargeCODReversal:
		return s.charges.CODCollectible
	default:
		return decimal.Zero
	}
}

// Eligible reports whether this charge should be settled for the shipment
// right now. A charge already marked processed is never eligible again:
// that flag, together with the completed-transaction check in the
// settlement engine, is what makes settlement idempotent.
func (t ChargeType) Eligible(s *Shipment) bool {
	if s.ChargeProcessed(t) {
		return false
	}

	switch t {
	case ChargeForward, ChargeForwardExcessWeight:
		return t.Amount(s).IsPositive()
	case ChargeCOD:
		return s.paymentMode == COD && t.Amount(s).IsPositive()
	case ChargeRTO, ChargeRTOExcessWeight:
		return s.bucket == BucketRTO && t.Amount(s).IsPositive()
	case ChargeCODReversal:
		return s.paymentMode == COD && s.bucket == BucketRTO
	default:
		return false
	}
}

// Charges holds the per-charge-type amounts configured for a shipment at
// booking time. Amounts are immutable after construction; only the
// processed flags on the shipment change as charges settle.
type Charges struct {
	Forward             decimal.Decimal
	COD                 decimal.Decimal
	RTO                 decimal.Decimal
	ForwardExcessWeight decimal.Decimal
	RTOExcessWeight     decimal.Decimal

	// CODCollectible is the order value the carrier collects on delivery,
	// credited back via ChargeCODReversal when the shipment RTOs.
	CODCollectible decimal.Decimal
}

// Validate rejects negative charge amounts.
func (c Charges) Validate() error {
	for name, amount := range map[string]decimal.Decimal{
		"forward charge":        c.Forward,
		"cod charge":            c.COD,
		"rto charge":            c.RTO,
		"forward excess charge": c.ForwardExcessWeight,
		"rto excess charge":     c.RTOExcessWeight,
		"cod collectible":       c.CODCollectible,
	} {
		if amount.IsNegative() {
			return errs.NewValueIsInvalidErrorWithCause(name,
				fmt.Errorf("%s is negative", amount))
		}
	}
	return nil
}
