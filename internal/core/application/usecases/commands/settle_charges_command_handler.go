package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/core/domain/model/shipment"
	"tracking/internal/core/domain/model/transaction"
	"tracking/internal/core/ports"
)

// ChargeResult reports the settlement outcome for one charge type.
type ChargeResult struct {
	ChargeType shipment.ChargeType

	// Applied is true when this call created the ledger transaction.
	Applied bool

	// AlreadyProcessed is true when a completed transaction already existed,
	// or a concurrent attempt won the merchant-reference race. Either way
	// the charge is settled and this call changed no balances.
	AlreadyProcessed bool
}

// SettleChargesCommandHandler is the charge settlement engine. Jobs deliver
// at least once, so the engine converts redelivery into idempotent money
// movement with two independent guards:
//
//  1. An existence check for a completed transaction on the (shipment,
//     charge type) pair, which short-circuits the common redelivery case.
//  2. A merchant reference derived deterministically from the charge type
//     and the shipment identity, so a concurrent duplicate create collides
//     with the store's uniqueness constraint instead of double-charging.
//
// Processed flags flip only after the transaction lands; a failure leaves
// the flag unset and the charge safe to retry.
type SettleChargesCommandHandler struct {
	uowFactory BillingUoWFactory
	logger     *slog.Logger
}

// NewSettleChargesCommandHandler creates the settlement engine.
func NewSettleChargesCommandHandler(uowFactory BillingUoWFactory, logger *slog.Logger) SettleChargesCommandHandler {
	return SettleChargesCommandHandler{
		uowFactory: uowFactory,
		logger:     logger.With("component", "settle_charges_handler"),
	}
}

// Handle settles every eligible charge for the shipment.
// Each charge type commits in its own transaction so one failing charge
// never rolls back an already-applied one.
func (h *SettleChargesCommandHandler) Handle(
	ctx context.Context,
	cmd SettleChargesCommand,
) ([]ChargeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	uow := h.uowFactory.Create()
	aggregate, err := uow.ShipmentRepository().Get(ctx, cmd.ShipmentID())
	if err != nil {
		return nil, err
	}

	results := make([]ChargeResult, 0, len(shipment.AllChargeTypes()))
	for _, chargeType := range shipment.AllChargeTypes() {
		if !chargeType.Eligible(aggregate) {
			continue
		}

		chargeResult, settleErr := h.settleCharge(ctx, aggregate, chargeType)
		if settleErr != nil {
			return results, settleErr
		}
		results = append(results, chargeResult)
	}

	return results, nil
}

// settleCharge applies one charge type atomically: ledger row, wallet
// adjustment and processed flag commit together or not at all.
func (h *SettleChargesCommandHandler) settleCharge(
	ctx context.Context,
	aggregate *shipment.Shipment,
	chargeType shipment.ChargeType,
) (ChargeResult, error) {
	result := ChargeResult{ChargeType: chargeType}

	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return result, err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	exists, err := uow.TransactionRepository().HasCompleted(ctx, aggregate.ID(), chargeType)
	if err != nil {
		return result, err
	}
	if exists {
		result.AlreadyProcessed = true
		return result, h.markProcessed(ctx, uow, aggregate, chargeType)
	}

	amount := chargeType.Amount(aggregate)
	if !chargeType.IsCredit() {
		amount = amount.Neg()
	}

	entry, err := transaction.NewTransaction(
		kernel.NewUUID(),
		aggregate.ID(),
		aggregate.UserID(),
		chargeType,
		amount,
		transaction.MerchantRef(chargeType, aggregate.AWB(), aggregate.ID()),
		time.Now(),
	)
	if err != nil {
		return result, err
	}

	if err = uow.TransactionRepository().Add(ctx, entry); err != nil {
		if errors.Is(err, ports.ErrDuplicateTransaction) {
			// A concurrent attempt won the race; the charge is applied.
			result.AlreadyProcessed = true
			return result, h.markProcessed(ctx, uow, aggregate, chargeType)
		}
		return result, err
	}

	if err = uow.WalletRepository().AdjustBalance(ctx, aggregate.UserID(), amount); err != nil {
		return result, err
	}

	// The aggregate flag keeps eligibility honest within this run; the store
	// write touches only the flag column so it cannot clobber a status the
	// flush job moved in the meantime.
	if err = aggregate.MarkChargeProcessed(chargeType); err != nil {
		return result, err
	}
	if err = uow.ShipmentRepository().MarkChargeProcessed(ctx, aggregate.ID(), chargeType); err != nil {
		return result, err
	}

	if err = uow.Commit(ctx); err != nil {
		return result, err
	}

	h.logger.InfoContext(ctx, "charge settled",
		"shipment_id", aggregate.ID().String(),
		"charge_type", chargeType.String(),
		"amount", amount.String(),
	)

	result.Applied = true
	return result, nil
}

// markProcessed records the processed flag for a charge that settled in an
// earlier or concurrent attempt, so eligibility stops re-selecting it.
func (h *SettleChargesCommandHandler) markProcessed(
	ctx context.Context,
	uow BillingUoW,
	aggregate *shipment.Shipment,
	chargeType shipment.ChargeType,
) error {
	if err := aggregate.MarkChargeProcessed(chargeType); err != nil {
		return err
	}
	if err := uow.ShipmentRepository().MarkChargeProcessed(ctx, aggregate.ID(), chargeType); err != nil {
		return err
	}
	return uow.Commit(ctx)
}
