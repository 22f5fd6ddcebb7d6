package shipment

import (
	"fmt"

	"tracking/internal/pkg/errs"
)

// PaymentMode describes how the buyer pays for the order carried by a shipment.
type PaymentMode int

const (
	// PaymentUnknown represents an invalid or undefined payment mode.
	PaymentUnknown PaymentMode = iota

	// Prepaid means the order was paid online at checkout.
	Prepaid

	// COD means cash on delivery: the carrier collects the order value
	// and remits it later, which is what the COD charge and the COD
	// reversal credit settle against.
	COD
)

func getPaymentModeStrings() map[PaymentMode]string {
	return map[PaymentMode]string{
		PaymentUnknown: "UNKNOWN",
		Prepaid:        "PREPAID",
		COD:            "COD",
	}
}

// Validate checks if the PaymentMode value is valid.
func (m PaymentMode) Validate() error {
	if m != Prepaid && m != COD {
		return errs.NewValueIsInvalidErrorWithCause("payment mode is invalid",
			fmt.Errorf("%d is not a valid payment mode", m))
	}
	return nil
}

// String returns the human-readable name of the payment mode.
func (m PaymentMode) String() string {
	if str, ok := getPaymentModeStrings()[m]; ok {
		return str
	}
	return "UNKNOWN"
}
