// Package transaction provides the wallet ledger entry recorded when a
// shipment charge settles.
//
// The package includes:
//   - Transaction: One signed wallet adjustment with a unique merchant reference
//   - Status: The transaction lifecycle (pending, completed, failed)
//   - MerchantRef: The deterministic reference derivation that turns retries
//     into uniqueness-constraint collisions instead of double charges
//
// Key business rules:
//   - At most one completed transaction exists per (shipment, charge type)
//   - Debits carry negative amounts, credits positive
//   - Merchant references are derived, never generated, so redelivered
//     settlement jobs reproduce the same reference
package transaction
