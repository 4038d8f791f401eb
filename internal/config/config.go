package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	Redis     RedisConfig     `mapstructure:"redis"     validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth"      validate:"required"`
	Worker    WorkerConfig    `mapstructure:"worker"    validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Providers ProvidersConfig `mapstructure:"providers" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// RedisConfig contains the settings for the priority queue's Redis backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"      validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"        validate:"gte=0"`
	QueueKey string `mapstructure:"queue_key" validate:"required"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret          string `mapstructure:"jwt_secret"           validate:"required,min=32"`
	TokenLifetimeHours int    `mapstructure:"token_lifetime_hours" validate:"required,gt=0"`
	// CredentialKey is the hex-encoded 32-byte key used to encrypt provider
	// account credentials at rest.
	CredentialKey string `mapstructure:"credential_key" validate:"required,len=64,hexadecimal"`
}

// WorkerConfig controls the task distribution workers.
type WorkerConfig struct {
	Count int `mapstructure:"count" validate:"required,gt=0"`
	// PollIntervalSeconds is how long an idle worker sleeps when the queue
	// is empty before polling again.
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds" validate:"required,gt=0"`
	MaxAttempts         int `mapstructure:"max_attempts"          validate:"required,gt=0"`
}

// SchedulerConfig controls periodic maintenance jobs.
type SchedulerConfig struct {
	// TokenResetCron is a standard 5-field cron expression for the daily
	// token budget reset sweep.
	TokenResetCron string `mapstructure:"token_reset_cron" validate:"required"`
}

// ProvidersConfig contains settings shared by provider integrations.
type ProvidersConfig struct {
	// ContentDir is the directory file-based artifacts are written to.
	ContentDir string `mapstructure:"content_dir" validate:"required"`
	// GeminiModel is the model name used by the Gemini integration.
	GeminiModel string `mapstructure:"gemini_model" validate:"required"`
}
