package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI    string
	DBName      string
	Port        string
	GinMode     string
	CORSOrigins []string
	JWTSecret   string

	// Blob storage
	BlobDir          string
	BlobContainer    string
	PublicBaseURL    string
	SignedURLTTLMins int
	MaxFileSize      int64
	AllowedTypes     []string

	// Search index backend: "elasticsearch" or "memory"
	SearchBackend    string
	ElasticsearchURL string
	SearchIndexName  string

	// Gemini Configuration
	GeminiAPIKey      string
	GeminiModel       string
	GeminiTemperature float64

	// OCR engine routing. The size thresholds are policy knobs, not
	// architectural constants; the defaults mirror the extraction
	// engines' documented limits.
	OCRDocumentURL      string
	OCRDocumentKey      string
	OCRImageURL         string
	OCRImageKey         string
	OCRTimeout          int
	OCRInlineLimitBytes int64
	OCRImageMaxBytes    int64
	OCRDocumentMaxBytes int64

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	RateLimitReqs     int
	RateLimitWindow   int
	QueryCacheTTLSecs int

	// Consistency audit sweep
	AuditEnabled       bool
	AuditIntervalMins  int

	// Tracing
	OTLPEndpoint     string
	TraceSampleRatio float64
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017/health_docs"),
		DBName:      getEnv("DB_NAME", "health_docs"),
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),
		JWTSecret:   getEnv("JWT_SECRET", ""),

		BlobDir:          getEnv("BLOB_STORAGE_DIR", "./storage"),
		BlobContainer:    getEnv("BLOB_CONTAINER", "raw"),
		PublicBaseURL:    getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		SignedURLTTLMins: getEnvInt("SIGNED_URL_TTL_MINUTES", 60),
		MaxFileSize:      getEnvInt64("MAX_FILE_SIZE", 524288000), // 500MB
		AllowedTypes:     strings.Split(getEnv("ALLOWED_FILE_TYPES", "pdf,doc,docx,txt,jpg,jpeg,png"), ","),

		SearchBackend:    getEnv("SEARCH_BACKEND", "elasticsearch"),
		ElasticsearchURL: getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
		SearchIndexName:  getEnv("SEARCH_INDEX_NAME", "health-pages"),

		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiTemperature: getEnvFloat64("GEMINI_TEMPERATURE", 0.1),

		OCRDocumentURL:      getEnv("OCR_DOCUMENT_URL", ""),
		OCRDocumentKey:      getEnv("OCR_DOCUMENT_KEY", ""),
		OCRImageURL:         getEnv("OCR_IMAGE_URL", ""),
		OCRImageKey:         getEnv("OCR_IMAGE_KEY", ""),
		OCRTimeout:          getEnvInt("OCR_TIMEOUT", 300), // 5 minutes
		OCRInlineLimitBytes: getEnvInt64("OCR_INLINE_LIMIT_BYTES", 4194304),     // 4MB
		OCRImageMaxBytes:    getEnvInt64("OCR_IMAGE_MAX_BYTES", 20971520),       // 20MB
		OCRDocumentMaxBytes: getEnvInt64("OCR_DOCUMENT_MAX_BYTES", 524288000),   // 500MB

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitReqs:     getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   getEnvInt("RATE_LIMIT_WINDOW", 60),
		QueryCacheTTLSecs: getEnvInt("QUERY_CACHE_TTL_SECONDS", 300),

		AuditEnabled:      getEnvBool("AUDIT_SWEEP_ENABLED", true),
		AuditIntervalMins: getEnvInt("AUDIT_SWEEP_INTERVAL_MINUTES", 60),

		OTLPEndpoint:     getEnv("OTLP_ENDPOINT", ""),
		TraceSampleRatio: getEnvFloat64("TRACE_SAMPLE_RATIO", 0.1),
	}

	// Validate required fields
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required - set it in .env file")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
