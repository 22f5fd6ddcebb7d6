package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"tracking/cmd"
	httpin "tracking/internal/adapters/in/http"
	"tracking/internal/adapters/out/postgres/billingrepo"
	"tracking/internal/adapters/out/postgres/eventrepo"
	"tracking/internal/adapters/out/postgres/shipmentrepo"

	"github.com/go-redis/redis"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	configs := getConfigs(logger)

	gormDB, err := openDatabase(configs)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	redisClient, err := openRedis(configs)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	root := cmd.NewCompositionRoot(configs, gormDB, redisClient, logger)

	jobManager := root.CreateJobManager()
	if err = jobManager.StartAll(); err != nil {
		logger.Error("failed to start background jobs", "error", err)
		os.Exit(1)
	}
	defer jobManager.StopAll()

	startWebServer(&root, configs.HTTPPort)
}

func getConfigs(logger *slog.Logger) cmd.Config {
	if err := godotenv.Load(".env"); err != nil {
		logger.Info("no .env file, relying on process environment")
	}

	return cmd.Config{
		HTTPPort:   os.Getenv("HTTP_PORT"),
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSslMode:  os.Getenv("DB_SSLMODE"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       os.Getenv("REDIS_DB"),

		CarrierAPIURL:   os.Getenv("CARRIER_API_URL"),
		CarrierAPIToken: os.Getenv("CARRIER_API_TOKEN"),

		TrackingBatchSize:   os.Getenv("TRACKING_BATCH_SIZE"),
		TrackingConcurrency: os.Getenv("TRACKING_CONCURRENCY"),
		SweepSchedule:       os.Getenv("SWEEP_SCHEDULE"),
		RTOSweepSchedule:    os.Getenv("RTO_SWEEP_SCHEDULE"),
		FlushInterval:       os.Getenv("FLUSH_INTERVAL"),
	}
}

// openDatabase connects to postgres and migrates the schema.
// TranslateError turns driver duplicate-key errors into gorm.ErrDuplicatedKey,
// which the ledger repository relies on for settlement idempotency.
func openDatabase(configs cmd.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		configs.DBHost, configs.DBPort, configs.DBUser,
		configs.DBPassword, configs.DBName, configs.DBSslMode)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&shipmentrepo.ShipmentDTO{},
		&eventrepo.EventDTO{},
		&billingrepo.TransactionDTO{},
		&billingrepo.WalletDTO{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}

func openRedis(configs cmd.Config) (*redis.Client, error) {
	db, _ := strconv.Atoi(configs.RedisDB)

	client := redis.NewClient(&redis.Options{
		Addr:     configs.RedisAddr,
		Password: configs.RedisPassword,
		DB:       db,
	})
	if err := client.Ping().Err(); err != nil {
		return nil, err
	}

	return client, nil
}

func startWebServer(root *cmd.CompositionRoot, port string) {
	e := echo.New()
	e.Use(middleware.Recover())

	server := httpin.NewServer(
		root.CreateTrackShipmentCommandHandler(),
		root.CreateTrackBatchCommandHandler(),
		root.CreateGetShipmentTrackingQueryHandler(),
		root.BatchSize(),
		root.Concurrency(),
	)
	server.RegisterRoutes(e)

	e.Logger.Fatal(e.Start(fmt.Sprintf("0.0.0.0:%s", port)))
}
