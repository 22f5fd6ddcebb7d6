package shipmentrepo_test

import (
	"context"
	"testing"
	"time"

	"tracking/internal/adapters/out/postgres/shipmentrepo"
	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/core/domain/model/shipment"
	"tracking/internal/pkg/errs"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	postgresdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// MockAggregateTracker is a mock implementation of aggregateTracker interface.
type MockAggregateTracker struct {
	mock.Mock
}

func (m *MockAggregateTracker) TrackAggregate(id kernel.UUID, aggregate any) {
	m.Called(id, aggregate)
}

// ShipmentRepositoryIntegrationTestSuite provides integration tests for
// ShipmentRepository using PostgreSQL containers to verify database
// persistence behavior.
type ShipmentRepositoryIntegrationTestSuite struct {
	suite.Suite
	container  *postgres.PostgresContainer
	db         *gorm.DB
	repository *shipmentrepo.GormShipmentRepository
	tracker    *MockAggregateTracker
}

func (suite *ShipmentRepositoryIntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	// Start PostgreSQL container
	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	suite.Require().NoError(err)
	suite.container = container

	// Get connection string and connect to database
	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	suite.Require().NoError(err)

	db, err := gorm.Open(postgresdriver.Open(connStr), &gorm.Config{})
	suite.Require().NoError(err)
	suite.db = db

	// Auto-migrate the schema
	suite.Require().NoError(db.AutoMigrate(&shipmentrepo.ShipmentDTO{}))
}

func (suite *ShipmentRepositoryIntegrationTestSuite) SetupTest() {
	// Clean the database before each test
	suite.Require().NoError(suite.db.Exec("TRUNCATE TABLE shipments").Error)

	// Create fresh repository and tracker for each test
	suite.tracker = new(MockAggregateTracker)
	suite.repository = shipmentrepo.NewGormShipmentRepository(suite.db, suite.tracker)
}

func (suite *ShipmentRepositoryIntegrationTestSuite) TearDownSuite() {
	if suite.container != nil {
		suite.Require().NoError(suite.container.Terminate(context.Background()))
	}
}

func (suite *ShipmentRepositoryIntegrationTestSuite) TestAdd_ValidShipment_Success() {
	ctx := context.Background()

	aggregate := suite.createTestShipment("AWB100", shipment.InTransit, shipment.COD)
	suite.tracker.On("TrackAggregate", aggregate.ID(), aggregate).Once()

	err := suite.repository.Add(ctx, aggregate)
	suite.Require().NoError(err)

	suite.assertShipmentCount(1)
	suite.tracker.AssertExpectations(suite.T())
}

func (suite *ShipmentRepositoryIntegrationTestSuite) TestGet_ExistingShipment_RoundTripsAllFields() {
	ctx := context.Background()

	reason := "Consignee not available"
	raisedAt := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	pickedUpAt := time.Date(2026, 3, 8, 9, 30, 0, 0, time.UTC)

	awb := "AWB200"
	original, err := shipment.RestoreShipment(
		kernel.NewUUID(), kernel.NewUUID(), kernel.NewUUID(),
		"velocity", &awb, shipment.COD, shipment.NDR,
		suite.testCharges(),
		shipment.ProcessedCharges{Forward: true},
		&pickedUpAt, nil, nil,
		&reason, &raisedAt,
	)
	suite.Require().NoError(err)

	suite.tracker.On("TrackAggregate", original.ID(), original).Once()
	suite.Require().NoError(suite.repository.Add(ctx, original))

	retrieved, err := suite.repository.Get(ctx, original.ID())
	suite.Require().NoError(err)

	suite.Equal(original.ID(), retrieved.ID())
	suite.Equal(original.OrderID(), retrieved.OrderID())
	suite.Equal(original.UserID(), retrieved.UserID())
	suite.Equal("velocity", retrieved.CarrierCode())
	suite.Require().NotNil(retrieved.AWB())
	suite.Equal("AWB200", *retrieved.AWB())
	suite.Equal(shipment.COD, retrieved.PaymentMode())
	suite.Equal(shipment.NDR, retrieved.Status())
	suite.Equal(shipment.BucketNDR, retrieved.Bucket())

	suite.True(retrieved.Charges().Forward.Equal(decimal.NewFromInt(50)))
	suite.True(retrieved.Charges().CODCollectible.Equal(decimal.NewFromInt(500)))
	suite.True(retrieved.Processed().Forward)
	suite.False(retrieved.Processed().COD)

	suite.Require().NotNil(retrieved.PickedUpAt())
	suite.True(pickedUpAt.Equal(*retrieved.PickedUpAt()))
	suite.Nil(retrieved.DeliveredAt())
	suite.Require().NotNil(retrieved.NDRReason())
	suite.Equal(reason, *retrieved.NDRReason())
	suite.Require().NotNil(retrieved.NDRRaisedAt())
	suite.True(raisedAt.Equal(*retrieved.NDRRaisedAt()))

	suite.tracker.AssertExpectations(suite.T())
}

func (suite *ShipmentRepositoryIntegrationTestSuite) TestGet_NonExistentShipment_ReturnsNotFoundError() {
	ctx := context.Background()

	retrieved, err := suite.repository.Get(ctx, kernel.NewUUID())

	suite.Nil(retrieved)
	suite.Require().Error(err)

	suite.Require().ErrorIs(err, errs.ErrObjectNotFound)

	suite.tracker.AssertExpectations(suite.T())
}

func (suite *ShipmentRepositoryIntegrationTestSuite) TestUpdate_StatusAndSettlementFlags() {
	ctx := context.Background()

	original := suite.createTestShipment("AWB300", shipment.InTransit, shipment.Prepaid)
	suite.tracker.On("TrackAggregate", original.ID(), original).Once()
	suite.Require().NoError(suite.repository.Add(ctx, original))

	deliveredAt := time.Date(2026, 3, 12, 16, 45, 0, 0, time.UTC)
	suite.Require().NoError(original.ApplyTracking(shipment.Delivered, deliveredAt))
	suite.Require().NoError(original.MarkChargeProcessed(shipment.ChargeForward))

	suite.tracker.On("TrackAggregate", original.ID(), original).Once()
	suite.Require().NoError(suite.repository.Update(ctx, original))

	retrieved, err := suite.repository.Get(ctx, original.ID())
	suite.Require().NoError(err)

	suite.Equal(shipment.Delivered, retrieved.Status())
	suite.Equal(shipment.BucketDelivered, retrieved.Bucket())
	suite.True(retrieved.Processed().Forward)
	suite.Require().NotNil(retrieved.DeliveredAt())
	suite.True(deliveredAt.Equal(*retrieved.DeliveredAt()))

	suite.tracker.AssertExpectations(suite.T())
}

func (suite *ShipmentRepositoryIntegrationTestSuite) TestUpdate_NonExistentShipment_ReturnsError() {
	ctx := context.Background()

	phantom := suite.createTestShipment("AWB400", shipment.InTransit, shipment.Prepaid)

	err := suite.repository.Update(ctx, phantom)
	suite.Require().Error(err)
	suite.Require().ErrorIs(err, gorm.ErrRecordNotFound)

	suite.tracker.AssertExpectations(suite.T())
}

func (suite *ShipmentRepositoryIntegrationTestSuite) TestMarkChargeProcessed_TouchesOnlyTheFlag() {
	ctx := context.Background()

	aggregate := suite.addShipment("AWB310", shipment.RTOInTransit, shipment.Prepaid)

	// A concurrent flush pass moves the status after settlement loaded its
	// snapshot; marking the charge must not undo that move.
	err := suite.repository.BulkUpdateStatus(ctx, []kernel.UUID{aggregate.ID()}, shipment.RTODelivered)
	suite.Require().NoError(err)

	err = suite.repository.MarkChargeProcessed(ctx, aggregate.ID(), shipment.ChargeRTO)
	suite.Require().NoError(err)

	retrieved, err := suite.repository.Get(ctx, aggregate.ID())
	suite.Require().NoError(err)
	suite.True(retrieved.Processed().RTO)
	suite.False(retrieved.Processed().Forward)
	suite.Equal(shipment.RTODelivered, retrieved.Status())
	suite.Equal(shipment.BucketRTO, retrieved.Bucket())

	suite.tracker.AssertExpectations(suite.T())
}

func (suite *ShipmentRepositoryIntegrationTestSuite) TestMarkChargeProcessed_NonExistentShipment_ReturnsError() {
	err := suite.repository.MarkChargeProcessed(context.Background(), kernel.NewUUID(), shipment.ChargeForward)
	suite.Require().ErrorIs(err, gorm.ErrRecordNotFound)
}

func (suite *ShipmentRepositoryIntegrationTestSuite) TestGetTrackingCandidates_FiltersAndOrdering() {
	ctx := context.Background()

	// Eligible, refreshed longest ago
	stale := suite.addShipment("AWB500", shipment.InTransit, shipment.Prepaid)
	// Eligible, refreshed more recently
	fresh := suite.addShipment("AWB501", shipment.OutForDelivery, shipment.COD)
	// Terminal status, never a candidate
	suite.addShipment("AWB502", shipment.Delivered, shipment.Prepaid)
	// No AWB, nothing to ask the carrier about
	suite.addShipmentWithoutAWB(shipment.New)

	suite.setUpdatedAt(stale.ID(), time.Now().Add(-6*time.Hour))
	suite.setUpdatedAt(fresh.ID(), time.Now().Add(-1*time.Hour))

	candidates, err := suite.repository.GetTrackingCandidates(ctx, 10)
	suite.Require().NoError(err)

	suite.Require().Len(candidates, 2)
	suite.Equal(stale.ID(), candidates[0].ID)
	suite.Equal(fresh.ID(), candidates[1].ID)
	suite.Equal("AWB500", candidates[0].AWB)
	suite.Equal(shipment.InTransit, candidates[0].Status)
	suite.Equal(shipment.BucketInTransit, candidates[0].Bucket)

	suite.tracker.AssertExpectations(suite.T())
}

func (suite *ShipmentRepositoryIntegrationTestSuite) TestGetTrackingCandidates_LimitCapsSelection() {
	ctx := context.Background()

	first := suite.addShipment("AWB510", shipment.InTransit, shipment.Prepaid)
	second := suite.addShipment("AWB511", shipment.InTransit, shipment.Prepaid)

	suite.setUpdatedAt(first.ID(), time.Now().Add(-3*time.Hour))
	suite.setUpdatedAt(second.ID(), time.Now().Add(-2*time.Hour))

	candidates, err := suite.repository.GetTrackingCandidates(ctx, 1)
	suite.Require().NoError(err)

	suite.Require().Len(candidates, 1)
	suite.Equal(first.ID(), candidates[0].ID)

	suite.tracker.AssertExpectations(suite.T())
}

func (suite *ShipmentRepositoryIntegrationTestSuite) TestBulkUpdateStatus_MovesStatusAndBucket() {
	ctx := context.Background()

	first := suite.addShipment("AWB600", shipment.InTransit, shipment.Prepaid)
	second := suite.addShipment("AWB601", shipment.InTransit, shipment.Prepaid)
	untouched := suite.addShipment("AWB602", shipment.PickedUp, shipment.Prepaid)

	err := suite.repository.BulkUpdateStatus(
		ctx,
		[]kernel.UUID{first.ID(), second.ID()},
		shipment.Delivered,
	)
	suite.Require().NoError(err)

	for _, id := range []kernel.UUID{first.ID(), second.ID()} {
		retrieved, getErr := suite.repository.Get(ctx, id)
		suite.Require().NoError(getErr)
		suite.Equal(shipment.Delivered, retrieved.Status())
		suite.Equal(shipment.BucketDelivered, retrieved.Bucket())
	}

	remaining, err := suite.repository.Get(ctx, untouched.ID())
	suite.Require().NoError(err)
	suite.Equal(shipment.PickedUp, remaining.Status())

	suite.tracker.AssertExpectations(suite.T())
}

func (suite *ShipmentRepositoryIntegrationTestSuite) TestBulkUpdateStatus_EmptyIDsIsNoOp() {
	err := suite.repository.BulkUpdateStatus(context.Background(), nil, shipment.Delivered)
	suite.Require().NoError(err)
}

func (suite *ShipmentRepositoryIntegrationTestSuite) TestStampTransitionDate_StampsOnce() {
	ctx := context.Background()

	aggregate := suite.addShipment("AWB700", shipment.InTransit, shipment.Prepaid)

	firstScan := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	err := suite.repository.StampTransitionDate(ctx, aggregate.ID(), shipment.Delivered, firstScan)
	suite.Require().NoError(err)

	// A later redelivered scan must not move the original stamp
	err = suite.repository.StampTransitionDate(ctx, aggregate.ID(), shipment.Delivered, firstScan.Add(48*time.Hour))
	suite.Require().NoError(err)

	retrieved, err := suite.repository.Get(ctx, aggregate.ID())
	suite.Require().NoError(err)
	suite.Require().NotNil(retrieved.DeliveredAt())
	suite.True(firstScan.Equal(*retrieved.DeliveredAt()))

	suite.tracker.AssertExpectations(suite.T())
}

func (suite *ShipmentRepositoryIntegrationTestSuite) TestStampTransitionDate_UndatedStatusIsNoOp() {
	ctx := context.Background()

	aggregate := suite.addShipment("AWB701", shipment.InTransit, shipment.Prepaid)

	err := suite.repository.StampTransitionDate(ctx, aggregate.ID(), shipment.NDR, time.Now())
	suite.Require().NoError(err)

	retrieved, err := suite.repository.Get(ctx, aggregate.ID())
	suite.Require().NoError(err)
	suite.Nil(retrieved.PickedUpAt())
	suite.Nil(retrieved.DeliveredAt())
	suite.Nil(retrieved.RTODeliveredAt())

	suite.tracker.AssertExpectations(suite.T())
}

func (suite *ShipmentRepositoryIntegrationTestSuite) TestGetRTOPendingCharges_SelectsUnsettledRTOShipments() {
	ctx := context.Background()

	// RTO with an unsettled RTO charge
	pendingRTO := suite.addShipment("AWB800", shipment.RTOInTransit, shipment.Prepaid)

	// RTO on COD with the reversal still owed, even with zero charges configured
	awb := "AWB801"
	pendingReversal, err := shipment.RestoreShipment(
		kernel.NewUUID(), kernel.NewUUID(), kernel.NewUUID(),
		"velocity", &awb, shipment.COD, shipment.RTODelivered,
		shipment.Charges{CODCollectible: decimal.NewFromInt(500)},
		shipment.ProcessedCharges{},
		nil, nil, nil, nil, nil,
	)
	suite.Require().NoError(err)
	suite.tracker.On("TrackAggregate", pendingReversal.ID(), pendingReversal).Once()
	suite.Require().NoError(suite.repository.Add(ctx, pendingReversal))

	// RTO already fully settled
	awbSettled := "AWB802"
	settled, err := shipment.RestoreShipment(
		kernel.NewUUID(), kernel.NewUUID(), kernel.NewUUID(),
		"velocity", &awbSettled, shipment.Prepaid, shipment.RTODelivered,
		suite.testCharges(),
		shipment.ProcessedCharges{RTO: true, RTOExcessWeight: true, CODReversal: true},
		nil, nil, nil, nil, nil,
	)
	suite.Require().NoError(err)
	suite.tracker.On("TrackAggregate", settled.ID(), settled).Once()
	suite.Require().NoError(suite.repository.Add(ctx, settled))

	// Not in the RTO bucket at all
	suite.addShipment("AWB803", shipment.Delivered, shipment.COD)

	suite.setUpdatedAt(pendingRTO.ID(), time.Now().Add(-4*time.Hour))
	suite.setUpdatedAt(pendingReversal.ID(), time.Now().Add(-2*time.Hour))

	ids, err := suite.repository.GetRTOPendingCharges(ctx, 10)
	suite.Require().NoError(err)

	suite.Require().Len(ids, 2)
	suite.Equal(pendingRTO.ID(), ids[0])
	suite.Equal(pendingReversal.ID(), ids[1])

	suite.tracker.AssertExpectations(suite.T())
}

// createTestShipment builds a shipment with the full charge configuration.
func (suite *ShipmentRepositoryIntegrationTestSuite) createTestShipment(
	awb string, status shipment.Status, mode shipment.PaymentMode,
) *shipment.Shipment {
	aggregate, err := shipment.RestoreShipment(
		kernel.NewUUID(), kernel.NewUUID(), kernel.NewUUID(),
		"velocity", &awb, mode, status,
		suite.testCharges(),
		shipment.ProcessedCharges{},
		nil, nil, nil, nil, nil,
	)
	suite.Require().NoError(err)
	return aggregate
}

// addShipment persists a test shipment and returns it.
func (suite *ShipmentRepositoryIntegrationTestSuite) addShipment(
	awb string, status shipment.Status, mode shipment.PaymentMode,
) *shipment.Shipment {
	aggregate := suite.createTestShipment(awb, status, mode)
	suite.tracker.On("TrackAggregate", aggregate.ID(), aggregate).Once()
	suite.Require().NoError(suite.repository.Add(context.Background(), aggregate))
	return aggregate
}

// addShipmentWithoutAWB persists a shipment that has not been assigned an AWB yet.
func (suite *ShipmentRepositoryIntegrationTestSuite) addShipmentWithoutAWB(
	status shipment.Status,
) *shipment.Shipment {
	aggregate, err := shipment.RestoreShipment(
		kernel.NewUUID(), kernel.NewUUID(), kernel.NewUUID(),
		"velocity", nil, shipment.Prepaid, status,
		suite.testCharges(),
		shipment.ProcessedCharges{},
		nil, nil, nil, nil, nil,
	)
	suite.Require().NoError(err)
	suite.tracker.On("TrackAggregate", aggregate.ID(), aggregate).Once()
	suite.Require().NoError(suite.repository.Add(context.Background(), aggregate))
	return aggregate
}

func (suite *ShipmentRepositoryIntegrationTestSuite) testCharges() shipment.Charges {
	return shipment.Charges{
		Forward:             decimal.NewFromInt(50),
		COD:                 decimal.NewFromInt(30),
		RTO:                 decimal.NewFromInt(40),
		ForwardExcessWeight: decimal.NewFromInt(10),
		RTOExcessWeight:     decimal.NewFromInt(15),
		CODCollectible:      decimal.NewFromInt(500),
	}
}

// setUpdatedAt pins a shipment's refresh timestamp so ordering tests are deterministic.
func (suite *ShipmentRepositoryIntegrationTestSuite) setUpdatedAt(id kernel.UUID, at time.Time) {
	err := suite.db.Exec("UPDATE shipments SET updated_at = ? WHERE id = ?", at, id.Bytes()).Error
	suite.Require().NoError(err)
}

func (suite *ShipmentRepositoryIntegrationTestSuite) assertShipmentCount(expected int) {
	var count int64
	err := suite.db.Model(&shipmentrepo.ShipmentDTO{}).Count(&count).Error
	suite.Require().NoError(err)
	suite.Equal(int64(expected), count)
}

func TestShipmentRepositoryIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(ShipmentRepositoryIntegrationTestSuite))
}
