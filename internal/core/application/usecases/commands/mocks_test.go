package commands_test

import (
	"context"
	"testing"
	"time"

	"tracking/internal/core/application/usecases/commands"
	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/core/domain/model/shipment"
	"tracking/internal/core/domain/model/transaction"
	"tracking/internal/core/ports"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Shared mocks for the handler tests in this package. The cache, buffer and
// queue ports take no context because their redis client does not either.

type MockShipmentRepo struct{ mock.Mock }

func (m *MockShipmentRepo) Add(ctx context.Context, aggregate *shipment.Shipment) error {
	args := m.Called(ctx, aggregate)
	return args.Error(0)
}

func (m *MockShipmentRepo) Update(ctx context.Context, aggregate *shipment.Shipment) error {
	args := m.Called(ctx, aggregate)
	return args.Error(0)
}

func (m *MockShipmentRepo) Get(ctx context.Context, id kernel.UUID) (*shipment.Shipment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shipment.Shipment), args.Error(1)
}

func (m *MockShipmentRepo) GetTrackingCandidates(ctx context.Context, limit int) ([]shipment.TrackingCandidate, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]shipment.TrackingCandidate), args.Error(1)
}

func (m *MockShipmentRepo) BulkUpdateStatus(ctx context.Context, ids []kernel.UUID, status shipment.Status) error {
	args := m.Called(ctx, ids, status)
	return args.Error(0)
}

func (m *MockShipmentRepo) StampTransitionDate(ctx context.Context, id kernel.UUID, status shipment.Status, at time.Time) error {
	args := m.Called(ctx, id, status, at)
	return args.Error(0)
}

func (m *MockShipmentRepo) MarkChargeProcessed(ctx context.Context, id kernel.UUID, chargeType shipment.ChargeType) error {
	args := m.Called(ctx, id, chargeType)
	return args.Error(0)
}

func (m *MockShipmentRepo) GetRTOPendingCharges(ctx context.Context, limit int) ([]kernel.UUID, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]kernel.UUID), args.Error(1)
}

type MockEventRepo struct{ mock.Mock }

func (m *MockEventRepo) AddBatch(ctx context.Context, events []*shipment.Event) (int, error) {
	args := m.Called(ctx, events)
	return args.Int(0), args.Error(1)
}

func (m *MockEventRepo) ExistingKeys(ctx context.Context, shipmentID kernel.UUID) (map[string]struct{}, error) {
	args := m.Called(ctx, shipmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]struct{}), args.Error(1)
}

func (m *MockEventRepo) GetByShipment(ctx context.Context, shipmentID kernel.UUID) ([]*shipment.Event, error) {
	args := m.Called(ctx, shipmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*shipment.Event), args.Error(1)
}

type MockTransactionRepo struct{ mock.Mock }

func (m *MockTransactionRepo) Add(ctx context.Context, aggregate *transaction.Transaction) error {
	args := m.Called(ctx, aggregate)
	return args.Error(0)
}

func (m *MockTransactionRepo) HasCompleted(ctx context.Context, shipmentID kernel.UUID, chargeType shipment.ChargeType) (bool, error) {
	args := m.Called(ctx, shipmentID, chargeType)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransactionRepo) GetByShipment(ctx context.Context, shipmentID kernel.UUID) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, shipmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Transaction), args.Error(1)
}

type MockWalletRepo struct{ mock.Mock }

func (m *MockWalletRepo) AdjustBalance(ctx context.Context, userID kernel.UUID, delta decimal.Decimal) error {
	args := m.Called(ctx, userID, delta)
	return args.Error(0)
}

func (m *MockWalletRepo) Balance(ctx context.Context, userID kernel.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type MockTrackingUoW struct{ mock.Mock }

func (m *MockTrackingUoW) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTrackingUoW) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTrackingUoW) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTrackingUoW) ShipmentRepository() ports.ShipmentRepository {
	args := m.Called()
	return args.Get(0).(ports.ShipmentRepository)
}

func (m *MockTrackingUoW) EventRepository() ports.EventRepository {
	args := m.Called()
	return args.Get(0).(ports.EventRepository)
}

type MockTrackingUoWFactory struct{ mock.Mock }

func (m *MockTrackingUoWFactory) Create() commands.TrackingUoW {
	args := m.Called()
	return args.Get(0).(commands.TrackingUoW)
}

type MockBillingUoW struct{ mock.Mock }

func (m *MockBillingUoW) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockBillingUoW) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockBillingUoW) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockBillingUoW) ShipmentRepository() ports.ShipmentRepository {
	args := m.Called()
	return args.Get(0).(ports.ShipmentRepository)
}

func (m *MockBillingUoW) TransactionRepository() ports.TransactionRepository {
	args := m.Called()
	return args.Get(0).(ports.TransactionRepository)
}

func (m *MockBillingUoW) WalletRepository() ports.WalletRepository {
	args := m.Called()
	return args.Get(0).(ports.WalletRepository)
}

type MockBillingUoWFactory struct{ mock.Mock }

func (m *MockBillingUoWFactory) Create() commands.BillingUoW {
	args := m.Called()
	return args.Get(0).(commands.BillingUoW)
}

type MockProviderRegistry struct{ mock.Mock }

func (m *MockProviderRegistry) Resolve(carrierCode string) (ports.TrackingProvider, error) {
	args := m.Called(carrierCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ports.TrackingProvider), args.Error(1)
}

type MockTrackingProvider struct{ mock.Mock }

func (m *MockTrackingProvider) Track(ctx context.Context, req ports.TrackRequest) (ports.TrackResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(ports.TrackResult), args.Error(1)
}

type MockTrackingCache struct{ mock.Mock }

func (m *MockTrackingCache) AcquireProcessing(id kernel.UUID, ttl time.Duration) (bool, error) {
	args := m.Called(id, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockTrackingCache) ReleaseProcessing(id kernel.UUID) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockTrackingCache) MarkChecked(id kernel.UUID, snapshot ports.CheckedSnapshot, ttl time.Duration) error {
	args := m.Called(id, snapshot, ttl)
	return args.Error(0)
}

func (m *MockTrackingCache) LastChecked(id kernel.UUID) (*ports.CheckedSnapshot, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.CheckedSnapshot), args.Error(1)
}

func (m *MockTrackingCache) IncrRetry(id kernel.UUID, ttl time.Duration) (int, error) {
	args := m.Called(id, ttl)
	return args.Int(0), args.Error(1)
}

func (m *MockTrackingCache) ClearRetry(id kernel.UUID) error {
	args := m.Called(id)
	return args.Error(0)
}

type MockTrackingBuffer struct{ mock.Mock }

func (m *MockTrackingBuffer) PushStatusUpdate(update ports.StatusUpdate) error {
	args := m.Called(update)
	return args.Error(0)
}

func (m *MockTrackingBuffer) PeekStatusUpdates(limit int) ([]ports.StatusUpdate, int, error) {
	args := m.Called(limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]ports.StatusUpdate), args.Int(1), args.Error(2)
}

func (m *MockTrackingBuffer) DiscardStatusUpdates(n int) error {
	args := m.Called(n)
	return args.Error(0)
}

func (m *MockTrackingBuffer) PushEvents(events []ports.PendingEvent) error {
	args := m.Called(events)
	return args.Error(0)
}

func (m *MockTrackingBuffer) PeekEvents(limit int) ([]ports.PendingEvent, int, error) {
	args := m.Called(limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]ports.PendingEvent), args.Int(1), args.Error(2)
}

func (m *MockTrackingBuffer) DiscardEvents(n int) error {
	args := m.Called(n)
	return args.Error(0)
}

type MockJobQueue struct{ mock.Mock }

func (m *MockJobQueue) Enqueue(queue, jobType string, payload any, opts ports.EnqueueOptions) error {
	args := m.Called(queue, jobType, payload, opts)
	return args.Error(0)
}

func (m *MockJobQueue) Dequeue(queue string, now time.Time, limit int) ([]ports.Job, error) {
	args := m.Called(queue, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ports.Job), args.Error(1)
}

func (m *MockJobQueue) Ack(queue, jobID string) error {
	args := m.Called(queue, jobID)
	return args.Error(0)
}

func (m *MockJobQueue) Fail(queue, jobID string) (bool, error) {
	args := m.Called(queue, jobID)
	return args.Bool(0), args.Error(1)
}

func (m *MockJobQueue) ReclaimStalled(queue string, now time.Time) (int, error) {
	args := m.Called(queue, now)
	return args.Int(0), args.Error(1)
}

// restoreTestShipment builds a COD shipment in the given status with every
// charge amount populated, so any test can pick the transitions it needs.
func restoreTestShipment(t *testing.T, status shipment.Status) *shipment.Shipment {
	t.Helper()

	awb := "AWB123456"
	charges := shipment.Charges{
		Forward:             decimal.NewFromInt(50),
		COD:                 decimal.NewFromInt(30),
		RTO:                 decimal.NewFromInt(40),
		ForwardExcessWeight: decimal.NewFromInt(10),
		RTOExcessWeight:     decimal.NewFromInt(15),
		CODCollectible:      decimal.NewFromInt(500),
	}

	aggregate, err := shipment.RestoreShipment(
		kernel.NewUUID(), kernel.NewUUID(), kernel.NewUUID(),
		"velocity", &awb, shipment.COD, status, charges,
		shipment.ProcessedCharges{}, nil, nil, nil, nil, nil,
	)
	require.NoError(t, err)
	return aggregate
}
