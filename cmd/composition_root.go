package cmd

import (
	"log/slog"
	"strconv"
	"time"

	"tracking/internal/adapters/out/postgres"
	trackingredis "tracking/internal/adapters/out/redis"
	"tracking/internal/adapters/out/tracking"
	"tracking/internal/core/application/usecases/commands"
	"tracking/internal/core/application/usecases/queries"
	"tracking/internal/core/ports"
	"tracking/internal/jobs"

	"github.com/go-redis/redis"
	"gorm.io/gorm"
)

const carrierAPITimeout = 15 * time.Second

// CompositionRoot wires adapters into handlers. Every Create method hands
// out a ready handler; shared infrastructure (db, redis, registry) is built
// once here.
type CompositionRoot struct {
	config     Config
	gormDB     *gorm.DB
	uowFactory postgres.GormUnitOfWorkFactory

	registry ports.ProviderRegistry
	cache    ports.TrackingCache
	buffer   ports.TrackingBuffer
	queue    ports.JobQueue

	logger *slog.Logger
}

// NewCompositionRoot builds the shared infrastructure from open connections.
func NewCompositionRoot(
	config Config,
	gormDB *gorm.DB,
	redisClient *redis.Client,
	logger *slog.Logger,
) CompositionRoot {
	providers := map[string]ports.TrackingProvider{}
	if config.CarrierAPIURL != "" {
		// Aggregator-fronted carriers all ride the same adapter.
		aggregator := tracking.NewHTTPProvider(
			config.CarrierAPIURL, config.CarrierAPIToken, carrierAPITimeout)
		for _, code := range []string{"velocity", "bluedart", "delhivery", "ekart"} {
			providers[code] = aggregator
		}
	}

	return CompositionRoot{
		config:     config,
		gormDB:     gormDB,
		uowFactory: *postgres.NewGormUnitOfWorkFactory(gormDB),
		registry:   tracking.NewRegistry(providers),
		cache:      trackingredis.NewTrackingCache(redisClient),
		buffer:     trackingredis.NewTrackingBuffer(redisClient),
		queue:      trackingredis.NewJobQueue(redisClient),
		logger:     logger,
	}
}

// JobQueue exposes the durable queue for the job manager.
func (c *CompositionRoot) JobQueue() ports.JobQueue {
	return c.queue
}

// TrackingUoWFactory adapts the gorm unit of work to the reconciliation scope.
func (c *CompositionRoot) TrackingUoWFactory() commands.TrackingUoWFactory {
	return FuncTrackingUoWFactory(func() commands.TrackingUoW {
		return c.uowFactory.Create()
	})
}

// CreateTrackShipmentCommandHandler builds the per-shipment reconciler.
func (c *CompositionRoot) CreateTrackShipmentCommandHandler() commands.TrackShipmentCommandHandler {
	return commands.NewTrackShipmentCommandHandler(
		c.TrackingUoWFactory(),
		c.registry,
		c.cache,
		c.buffer,
		c.queue,
		commands.DefaultTrackingPolicy(),
		c.logger,
	)
}

// CreateTrackBatchCommandHandler builds the sweep handler.
func (c *CompositionRoot) CreateTrackBatchCommandHandler() commands.TrackBatchCommandHandler {
	trackHandler := c.CreateTrackShipmentCommandHandler()
	return commands.NewTrackBatchCommandHandler(
		c.TrackingUoWFactory(),
		&trackHandler,
		c.logger,
	)
}

// CreateFetchNDRDetailsCommandHandler builds the NDR detail handler.
func (c *CompositionRoot) CreateFetchNDRDetailsCommandHandler() commands.FetchNDRDetailsCommandHandler {
	return commands.NewFetchNDRDetailsCommandHandler(
		c.TrackingUoWFactory(),
		c.registry,
		c.logger,
	)
}

// CreateSettleChargesCommandHandler builds the charge settlement engine.
func (c *CompositionRoot) CreateSettleChargesCommandHandler() commands.SettleChargesCommandHandler {
	var f commands.BillingUoWFactory = FuncBillingUoWFactory(func() commands.BillingUoW {
		return c.uowFactory.Create()
	})
	return commands.NewSettleChargesCommandHandler(f, c.logger)
}

// CreateFlushTrackingBuffersCommandHandler builds the write-behind flush handler.
func (c *CompositionRoot) CreateFlushTrackingBuffersCommandHandler() commands.FlushTrackingBuffersCommandHandler {
	return commands.NewFlushTrackingBuffersCommandHandler(
		c.TrackingUoWFactory(),
		c.buffer,
		c.logger,
	)
}

// CreateGetShipmentTrackingQueryHandler builds the tracking view query handler.
func (c *CompositionRoot) CreateGetShipmentTrackingQueryHandler() queries.GetShipmentTrackingQueryHandler {
	return queries.NewGetShipmentTrackingQueryHandler(c.gormDB)
}

// CreateJobManager builds the background job manager with all its jobs.
func (c *CompositionRoot) CreateJobManager() *jobs.JobManager {
	worker := jobs.DefaultWorkerConfig()
	if interval := c.durationSetting(c.config.FlushInterval); interval > 0 {
		worker.FlushInterval = interval
	}

	return jobs.NewJobManager(
		c.TrackingUoWFactory(),
		c.queue,
		c.CreateTrackBatchCommandHandler(),
		c.CreateTrackShipmentCommandHandler(),
		c.CreateFetchNDRDetailsCommandHandler(),
		c.CreateSettleChargesCommandHandler(),
		c.CreateFlushTrackingBuffersCommandHandler(),
		jobs.ManagerConfig{
			SweepSchedule:    c.SweepSchedule(),
			RTOSweepSchedule: c.RTOSweepSchedule(),
			BatchSize:        c.BatchSize(),
			Concurrency:      c.Concurrency(),
			Worker:           worker,
		},
		c.logger,
	)
}

// SweepSchedule returns the tracking sweep cron expression (six fields,
// seconds first), defaulting to every five minutes.
func (c *CompositionRoot) SweepSchedule() string {
	if c.config.SweepSchedule != "" {
		return c.config.SweepSchedule
	}
	return "0 */5 * * * *"
}

// RTOSweepSchedule returns the RTO charge sweep cron expression, defaulting
// to the top of every hour.
func (c *CompositionRoot) RTOSweepSchedule() string {
	if c.config.RTOSweepSchedule != "" {
		return c.config.RTOSweepSchedule
	}
	return "0 0 * * * *"
}

// BatchSize returns the sweep batch size, defaulting to 50.
func (c *CompositionRoot) BatchSize() int {
	return c.intSetting(c.config.TrackingBatchSize, 50)
}

// Concurrency returns the sweep fan-out limit, defaulting to 5.
func (c *CompositionRoot) Concurrency() int {
	return c.intSetting(c.config.TrackingConcurrency, 5)
}

func (c *CompositionRoot) intSetting(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func (c *CompositionRoot) durationSetting(raw string) time.Duration {
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return value
}

type FuncTrackingUoWFactory func() commands.TrackingUoW

func (f FuncTrackingUoWFactory) Create() commands.TrackingUoW {
	return f()
}

type FuncBillingUoWFactory func() commands.BillingUoW

func (f FuncBillingUoWFactory) Create() commands.BillingUoW {
	return f()
}
