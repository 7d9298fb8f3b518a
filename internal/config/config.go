package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port             string
	DatabaseURL      string
	StateDriver      string
	StateDatabaseURL string

	JWTSecret      string
	JWTTTL         time.Duration
	GoogleAudience string
	AdminEmails    []string
	AllowOrigins   []string

	LogLevel        string
	LogFormat       string
	LogstashTCPAddr string

	MinIOEndpoint      string
	MinIOAccessKey     string
	MinIOSecretKey     string
	MinIOUseSSL        bool
	MinIOBucketBackups string
	MinIOPublicURL     string

	ElasticsearchURL        string
	ElasticsearchAuditIndex string

	StagingDir          string
	ExportGracePeriod   time.Duration
	UploadMaxBytes      int64
	EnableImportActions bool
	CLIStepsPerSecond   float64
}

// Load reads the environment, after merging a .env file when present. Only
// DATABASE_URL is mandatory; callers check what else they need.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	uploadMax := int64(64 * 1024 * 1024)
	if v, err := strconv.ParseInt(getenv("UPLOAD_MAX_BYTES", "67108864"), 10, 64); err == nil && v > 0 {
		uploadMax = v
	}

	stepsPerSecond := 5.0
	if v, err := strconv.ParseFloat(getenv("CLI_STEPS_PER_SECOND", "5"), 64); err == nil && v > 0 {
		stepsPerSecond = v
	}

	databaseURL := must("DATABASE_URL")

	return Config{
		Port:                    getenv("PORT", "8080"),
		DatabaseURL:             databaseURL,
		StateDriver:             getenv("STATE_DRIVER", "pgx"),
		StateDatabaseURL:        getenv("STATE_DATABASE_URL", databaseURL),
		JWTSecret:               getenv("JWT_SECRET", ""),
		JWTTTL:                  duration("JWT_TTL", 12*time.Hour),
		GoogleAudience:          getenv("GOOGLE_AUDIENCE", ""),
		AdminEmails:             splitList(strings.ToLower(getenv("ADMIN_EMAILS", ""))),
		AllowOrigins:            splitAndTrim(getenv("ALLOW_ORIGINS", "*")),
		LogLevel:                getenv("LOG_LEVEL", "info"),
		LogFormat:               getenv("LOG_FORMAT", "json"),
		LogstashTCPAddr:         getenv("LOGSTASH_TCP_ADDR", ""),
		MinIOEndpoint:           getenv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:          getenv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:          getenv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:             getenv("MINIO_USE_SSL", "false") == "true",
		MinIOBucketBackups:      getenv("MINIO_BUCKET_BACKUPS", "catalog-backups"),
		MinIOPublicURL:          getenv("MINIO_PUBLIC_URL", ""),
		ElasticsearchURL:        getenv("ELASTICSEARCH_URL", ""),
		ElasticsearchAuditIndex: getenv("ELASTICSEARCH_AUDIT_INDEX", "catalog-backup-audit"),
		StagingDir:              getenv("STAGING_DIR", "var/catalog-backup"),
		ExportGracePeriod:       duration("EXPORT_GRACE_PERIOD", 2*time.Minute),
		UploadMaxBytes:          uploadMax,
		EnableImportActions:     getenv("ENABLE_IMPORT_ACTIONS", "true") == "true",
		CLIStepsPerSecond:       stepsPerSecond,
	}
}

// MinIOEnabled reports whether archiving to object storage is configured.
func (c Config) MinIOEnabled() bool {
	return c.MinIOEndpoint != "" && c.MinIOAccessKey != "" && c.MinIOSecretKey != ""
}

func splitAndTrim(input string) []string {
	out := splitList(input)
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func splitList(input string) []string {
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func duration(k string, d time.Duration) time.Duration {
	v, err := time.ParseDuration(getenv(k, ""))
	if err != nil || v <= 0 {
		return d
	}
	return v
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("missing env: " + k)
	}
	return v
}
