package app

import "time"

// Config contains the runtime configuration loaded from environment
// variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	AutoMigrate bool

	// RedisAddr switches the revocation registry to the shared Redis
	// implementation when set.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	BcryptCost int

	// If true, /readyz returns 503 unless the database is configured and
	// reachable.
	ReadinessRequireDB bool

	// If true, TICKETD_TOKEN_HMAC_KEY must be set (>= 32 bytes) and
	// refresh-token hashing must be HMAC-based.
	RequireTokenHMAC bool

	MetricsEnabled bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("TICKETD_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("TICKETD_LOG_LEVEL", "info"),
		LogFormat: EnvString("TICKETD_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("TICKETD_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("TICKETD_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("TICKETD_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("TICKETD_HTTP_IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    EnvInt("TICKETD_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("TICKETD_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("TICKETD_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("TICKETD_DB_MIN_CONNS", 0),
		AutoMigrate: EnvBool("TICKETD_AUTO_MIGRATE", false),

		RedisAddr:     EnvString("TICKETD_REDIS_ADDR", ""),
		RedisPassword: EnvString("TICKETD_REDIS_PASSWORD", ""),
		RedisDB:       EnvInt("TICKETD_REDIS_DB", 0),

		BcryptCost: EnvInt("TICKETD_BCRYPT_COST", 12),

		ReadinessRequireDB: EnvBool("TICKETD_READINESS_REQUIRE_DB", false),
		RequireTokenHMAC:   EnvBool("TICKETD_REQUIRE_TOKEN_HMAC", false),
		MetricsEnabled:     EnvBool("TICKETD_METRICS_ENABLED", true),
	}
}
