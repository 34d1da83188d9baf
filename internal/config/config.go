package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Reservation ReservationConfig
	Analytics   AnalyticsConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	TicketReserved  string
	TicketConfirmed string
	TicketCanceled  string
}

type ReservationConfig struct {
	// WriteRetries bounds the ticket-write retry loop after a successful
	// capacity reserve; ReleaseRetries bounds the compensating release.
	WriteRetries   int
	ReleaseRetries int
	RetryBackoff   time.Duration
	LockTTL        time.Duration
}

type AnalyticsConfig struct {
	// MaxEventIDsPerQuery bounds the size of event-id IN clauses; organizer
	// fan-out chunks above this.
	MaxEventIDsPerQuery int
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8086"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:          getEnv("POSTGRES_DSN", ""),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_ADDR", "localhost:9092")},
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Topics: TopicConfig{
				TicketReserved:  getEnv("KAFKA_TOPIC_RESERVED", "ticketly.ticket.reserved"),
				TicketConfirmed: getEnv("KAFKA_TOPIC_CONFIRMED", "ticketly.ticket.confirmed"),
				TicketCanceled:  getEnv("KAFKA_TOPIC_CANCELED", "ticketly.ticket.canceled"),
			},
		},
		Reservation: ReservationConfig{
			WriteRetries:   getEnvInt("RESERVATION_WRITE_RETRIES", 3),
			ReleaseRetries: getEnvInt("RESERVATION_RELEASE_RETRIES", 3),
			RetryBackoff:   time.Duration(getEnvInt("RESERVATION_RETRY_BACKOFF_MS", 50)) * time.Millisecond,
			LockTTL:        time.Duration(getEnvInt("TICKET_LOCK_TTL_SECONDS", 30)) * time.Second,
		},
		Analytics: AnalyticsConfig{
			MaxEventIDsPerQuery: getEnvInt("ANALYTICS_MAX_EVENT_IDS", 100),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
