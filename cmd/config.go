package cmd

// Config carries the environment-sourced settings for the tracking service.
// Values stay strings at this layer; the composition root parses what it needs.
type Config struct {
	HTTPPort   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string

	RedisAddr     string
	RedisPassword string
	RedisDB       string

	CarrierAPIURL   string
	CarrierAPIToken string

	TrackingBatchSize   string
	TrackingConcurrency string
	SweepSchedule       string
	RTOSweepSchedule    string
	FlushInterval       string
}
