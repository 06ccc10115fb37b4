package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Payment  PaymentConfig
	Tickets  TicketConfig
	Log      LogConfig
}

type AppConfig struct {
	Name string
	// Env is "development", "staging" or "production". Error detail is only
	// returned to clients in development.
	Env string
}

func (a AppConfig) IsDevelopment() bool {
	return strings.EqualFold(a.Env, "development")
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	DSN           string
	MaxOpenConns  int
	MaxIdleConns  int
	MaxLifetime   time.Duration
	ConnectTries  int
	AutoMigrate   bool
	MigrationsDir string
	SeedData      bool
}

type RedisConfig struct {
	Enabled bool
	Addr    string
	DB      int
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topics  TopicConfig
}

type TopicConfig struct {
	PurchaseApproved string
}

type AuthConfig struct {
	// Mode is "oidc" (verified against Issuer) or "unverified" (claims are
	// read without checking the signature, local development only).
	Mode   string
	Issuer string
}

type PaymentConfig struct {
	LockTTL        time.Duration
	GatewayLatency time.Duration
	DeclineMethods []string
	// MaxAmount of 0 disables the amount ceiling.
	MaxAmount     string
	NotifyTimeout time.Duration
}

type TicketConfig struct {
	QRSecret string
	QRSize   int
}

type LogConfig struct {
	Dir   string
	Level string
}

func Load() *Config {
	return &Config{
		App: AppConfig{
			Name: getEnv("APP_NAME", "ms-checkout"),
			Env:  getEnv("APP_ENV", "production"),
		},
		Server: ServerConfig{
			Port:            getEnv("PORT", ":8084"),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),
		},
		Database: DatabaseConfig{
			DSN:           getEnv("POSTGRES_DSN", ""),
			MaxOpenConns:  getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:   time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			ConnectTries:  getEnvInt("DB_CONNECT_RETRIES", 5),
			AutoMigrate:   getEnvBool("DB_AUTO_MIGRATE", true),
			MigrationsDir: getEnv("DB_MIGRATIONS_DIR", "./migrations"),
			SeedData:      getEnvBool("DB_SEED_DATA", false),
		},
		Redis: RedisConfig{
			Enabled: getEnvBool("REDIS_ENABLED", true),
			Addr:    getEnv("REDIS_ADDR", "localhost:6379"),
			DB:      getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Brokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topics: TopicConfig{
				PurchaseApproved: getEnv("KAFKA_TOPIC_PURCHASE_APPROVED", "ticketing.purchase.approved"),
			},
		},
		Auth: AuthConfig{
			Mode:   getEnv("AUTH_MODE", "oidc"),
			Issuer: getEnv("OIDC_ISSUER", ""),
		},
		Payment: PaymentConfig{
			LockTTL:        time.Duration(getEnvInt("PAYMENT_LOCK_TTL_SECONDS", 30)) * time.Second,
			GatewayLatency: getEnvDuration("PAYMENT_GATEWAY_LATENCY", 0),
			DeclineMethods: getEnvList("PAYMENT_DECLINE_METHODS", []string{"declined_card"}),
			MaxAmount:      getEnv("PAYMENT_MAX_AMOUNT", "0"),
			NotifyTimeout:  getEnvDuration("PAYMENT_NOTIFY_TIMEOUT", 5*time.Second),
		},
		Tickets: TicketConfig{
			QRSecret: getEnv("QR_SECRET", "change-me"),
			QRSize:   getEnvInt("QR_SIZE", 256),
		},
		Log: LogConfig{
			Dir:   getEnv("LOG_DIR", "logs"),
			Level: getEnv("LOG_LEVEL", "info"),
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping empty entries.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
