package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

type StorageBackend string

const (
	StorageFile      StorageBackend = "file"
	StorageFirestore StorageBackend = "firestore"
	StoragePostgres  StorageBackend = "postgres"
)

type Config struct {
	Port      string
	LogLevel  string
	LogFormat string
	ProjectID string

	DataDir     string
	Storage     StorageBackend
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration

	SupersetURL            string
	SupersetUsername       string
	SupersetPassword       string
	SupersetPasswordSecret string
	GuestTokenTTL          time.Duration
	DateFilterColumn       string

	FirebaseAuth bool

	S3Endpoint  string
	S3PublicURL string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Region    string

	CORSOrigins        []string
	LoginRatePerMinute int

	OTLPEndpoint string
	OTLPInsecure bool
}

func New() *Config {
	return &Config{
		Port:      getEnv("PORT", "8080"),
		LogLevel:  os.Getenv("LOGLEVEL"),
		LogFormat: os.Getenv("LOGFORMAT"),
		ProjectID: os.Getenv("PROJECTID"),

		DataDir:     getEnv("DATA_DIR", "./data"),
		Storage:     getStorageBackend(os.Getenv("STORAGE_BACKEND")),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),
		SessionTTL:    getDuration("SESSION_TTL", 24*time.Hour),

		SupersetURL:            os.Getenv("SUPERSET_URL"),
		SupersetUsername:       getEnv("SUPERSET_USERNAME", "admin"),
		SupersetPassword:       os.Getenv("SUPERSET_PASSWORD"),
		SupersetPasswordSecret: os.Getenv("SUPERSET_PASSWORD_SECRET"),
		// Only used for tokens without an exp claim. At 5m such tokens are
		// refetched on every embed since the cache wants 5m of validity left.
		GuestTokenTTL:          getDuration("GUEST_TOKEN_TTL", 5*time.Minute),
		DateFilterColumn:       getEnv("DATE_FILTER_COLUMN", "date"),

		FirebaseAuth: getBool("FIREBASE_AUTH", false),

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3PublicURL: os.Getenv("S3_PUBLIC_URL"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3Bucket:    os.Getenv("S3_BUCKET"),
		S3Region:    getEnv("S3_REGION", "us-east-1"),

		CORSOrigins:        getList("CORS_ORIGINS", []string{"*"}),
		LoginRatePerMinute: getInt("LOGIN_RATE_PER_MINUTE", 10),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure: getBool("OTEL_EXPORTER_OTLP_INSECURE", false),
	}
}

func getStorageBackend(v string) StorageBackend {
	switch StorageBackend(strings.ToLower(v)) {
	case StorageFirestore:
		return StorageFirestore
	case StoragePostgres:
		return StoragePostgres
	default: // "file"
		return StorageFile
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}

func getList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
