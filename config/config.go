package config

import (
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/joho/godotenv"
)

// Config holds every setting read from the environment
type Config struct {
	AppName            string `env:"APP_NAME" env-default:"clover"`
	Version            string `env:"APP_VERSION" env-default:"dev"`
	LogLevel           string `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs         bool   `env:"PRETTY_LOGS" env-default:"false"`
	StartupMaxAttempts int    `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Document store. "memory" keeps every tier in process and is only useful for dry runs.
	StoreDriver string `env:"STORE_DRIVER" env-default:"postgres"`

	// PostgreSQL
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:"localhost"`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"cfb"`
	DatabaseSSLMode               string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"5m"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"migrations"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// CollegeFootballData API
	CFBDBaseURL string        `env:"CFBD_BASE_URL" env-default:"https://api.collegefootballdata.com"`
	CFBDAPIKey  string        `env:"CFBD_API_KEY" env-default:""`
	CFBDTimeout time.Duration `env:"CFBD_TIMEOUT" env-default:"30s"`

	// Remote call retries
	RetryMaxAttempts int           `env:"RETRY_MAX_ATTEMPTS" env-default:"3"`
	RetryDelay       time.Duration `env:"RETRY_DELAY" env-default:"5s"`

	// Pipeline scope
	Years                 []int    `env:"ETL_YEARS" env-default:"2023,2024,2025"`
	Classifications       []string `env:"ETL_CLASSIFICATIONS" env-default:"fbs,fcs"`
	Weeks                 []int    `env:"ETL_WEEKS" env-default:""`
	ReplaceProduction     bool     `env:"ETL_REPLACE_PRODUCTION" env-default:"false"`
	SkipExtractionCleanup bool     `env:"ETL_SKIP_EXTRACTION_CLEANUP" env-default:"false"`
	SkipStagingCleanup    bool     `env:"ETL_SKIP_STAGING_CLEANUP" env-default:"false"`
	ExtractionConcurrency int      `env:"ETL_EXTRACTION_CONCURRENCY" env-default:"1"`

	// Redis run lock
	RedisEnabled  bool          `env:"REDIS_ENABLED" env-default:"false"`
	RedisHost     string        `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int           `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int           `env:"REDIS_DB" env-default:"0"`
	RunLockTTL    time.Duration `env:"RUN_LOCK_TTL" env-default:"30m"`

	// Kafka run events
	KafkaEnabled      bool     `env:"KAFKA_ENABLED" env-default:"false"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaOutputTopic  string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"etl-events"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Observability
	MetricsAddr    string `env:"METRICS_ADDR" env-default:""`
	TracingEnabled bool   `env:"TRACING_ENABLED" env-default:"false"`
	OTLPEndpoint   string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	OTLPProtocol   string `env:"OTLP_PROTOCOL" env-default:"grpc"`
	OTLPInsecure   bool   `env:"OTLP_INSECURE" env-default:"true"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	var cfg Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DatabaseDSN builds the lib/pq connection string.
func (c *Config) DatabaseDSN() string {
	return "host=" + c.DatabaseHost +
		" port=" + c.DatabasePort +
		" user=" + c.DatabaseUserName +
		" password=" + c.DatabasePassword +
		" dbname=" + c.DatabaseName +
		" sslmode=" + c.DatabaseSSLMode
}
