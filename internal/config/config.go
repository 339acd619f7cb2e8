package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	Port        string

	// APISecret gates the internal maintenance endpoints in production.
	APISecret     string
	AuthJWTSecret string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	S3Region          string
	S3Bucket          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string

	GPUWorkerURL string
	CallbackBase string

	DispatchWorkerEnabled bool
	DispatchConcurrency   int

	RetentionEnabled  bool
	RetentionAge      time.Duration
	RetentionInterval time.Duration
	RetentionBatch    int
}

// Module provides the configuration to the fx graph.
var Module = fx.Module("config", fx.Provide(Load))

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	redisAddr, redisPassword, redisDB := redisFromEnv()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "kittypup"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: environment,
		Port:        getenv("PORT", "3000"),

		APISecret:     strings.TrimSpace(getenv("API_SECRET", "change-me-in-production")),
		AuthJWTSecret: strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "kittypup"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),

		RedisAddr:     redisAddr,
		RedisPassword: redisPassword,
		RedisDB:       redisDB,

		S3Region:          getenv("AWS_REGION", "us-east-1"),
		S3Bucket:          getenv("S3_BUCKET", "kittypup-uploads"),
		S3Endpoint:        strings.TrimSpace(getenv("S3_ENDPOINT", "")),
		S3AccessKeyID:     getenv("AWS_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getenv("AWS_SECRET_ACCESS_KEY", ""),

		GPUWorkerURL: strings.TrimRight(getenv("GPU_WORKER_URL", "http://localhost:5000"), "/"),
		CallbackBase: strings.TrimRight(getenv("CALLBACK_BASE_URL", "http://localhost:3000"), "/"),

		DispatchWorkerEnabled: getenvBool("DISPATCH_WORKER_ENABLED", true),
		DispatchConcurrency:   getenvInt("DISPATCH_CONCURRENCY", 5),

		RetentionEnabled:  getenvBool("RETENTION_ENABLED", true),
		RetentionAge:      getenvDuration("RETENTION_AGE", 72*time.Hour),
		RetentionInterval: getenvDuration("RETENTION_INTERVAL", time.Hour),
		RetentionBatch:    getenvInt("RETENTION_BATCH", 100),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// redisURLPattern accepts redis://[user:password@]host:port, the shape most
// managed Redis providers hand out.
var redisURLPattern = regexp.MustCompile(`^redis://(?:([^:]*):([^@]+)@)?([^:/]+):(\d+)`)

func redisFromEnv() (addr, password string, db int) {
	if raw := strings.TrimSpace(os.Getenv("REDIS_URL")); raw != "" {
		if m := redisURLPattern.FindStringSubmatch(raw); m != nil {
			return m[3] + ":" + m[4], m[2], 0
		}
	}
	host := getenv("REDIS_HOST", "localhost")
	port := getenv("REDIS_PORT", "6379")
	return host + ":" + port, getenv("REDIS_PASSWORD", ""), getenvInt("REDIS_DB", 0)
}

func getenv(key, def string) string {
	if value := os.Getenv(key); strings.TrimSpace(value) != "" {
		return value
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
