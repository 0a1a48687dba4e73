package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "roomly"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort = "8080"

	DefaultPublicBaseURL = "http://localhost:8080"

	DefaultBookingWindowDays  = 30
	DefaultServiceHoursStart  = "08:00"
	DefaultServiceHoursEnd    = "22:00"
	DefaultSlotGranularityMin = 1
	DefaultAdmissionLockWait  = 3 * time.Second

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultKafkaBookingsTopic = "roomly.bookings"

	DefaultPaginationLimit = 100
)
