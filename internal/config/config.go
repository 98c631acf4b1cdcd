package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerAddr  string
	LogLevel    string
	CORSOrigins []string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	JWTSecret string

	RedisAddr    string
	RedisEnabled bool

	// Download orchestration
	DownloadDir     string
	ShutdownTimeout time.Duration

	// Playback tokens
	TokenTTL        time.Duration
	TokenSingleUse  bool
	TokenRedisStore bool

	// Media resolver (yt-dlp)
	YtdlpPath string

	// Optional S3-compatible archive for completed downloads
	ArchiveEnabled   bool
	ArchiveEndpoint  string
	ArchiveRegion    string
	ArchiveAccessKey string
	ArchiveSecretKey string
	ArchiveBucket    string
	ArchiveUseSSL    bool
}

func Load() *Config {
	tokenTTL, _ := time.ParseDuration(getEnvOrDefault("PLAYBACK_TOKEN_TTL", "5m"))
	if tokenTTL <= 0 {
		tokenTTL = 5 * time.Minute
	}

	shutdownTimeout, _ := time.ParseDuration(getEnvOrDefault("SHUTDOWN_TIMEOUT", "30s"))
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}

	singleUse, _ := strconv.ParseBool(getEnvOrDefault("PLAYBACK_TOKEN_SINGLE_USE", "false"))
	redisEnabled, _ := strconv.ParseBool(getEnvOrDefault("REDIS_ENABLED", "false"))
	tokenRedis, _ := strconv.ParseBool(getEnvOrDefault("PLAYBACK_TOKEN_REDIS", "false"))
	archiveEnabled, _ := strconv.ParseBool(getEnvOrDefault("ARCHIVE_ENABLED", "false"))
	archiveUseSSL, _ := strconv.ParseBool(getEnvOrDefault("ARCHIVE_USE_SSL", "false"))

	return &Config{
		ServerAddr:  getEnvOrDefault("SERVER_ADDR", ":8080"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		CORSOrigins: strings.Split(getEnvOrDefault("CORS_ORIGINS", "*"), ","),

		DBHost:     getEnvOrDefault("DB_HOST", "localhost"),
		DBPort:     getEnvOrDefault("DB_PORT", "5432"),
		DBUser:     getEnvOrDefault("DB_USER", "eagleeye"),
		DBPassword: getEnvOrDefault("DB_PASSWORD", "eagleeye_dev_password"),
		DBName:     getEnvOrDefault("DB_NAME", "eagleeye"),

		JWTSecret: getEnvOrDefault("JWT_SECRET", generateDefaultSecret()),

		RedisAddr:    getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisEnabled: redisEnabled,

		DownloadDir:     getEnvOrDefault("DOWNLOAD_DIR", "downloads"),
		ShutdownTimeout: shutdownTimeout,

		TokenTTL:        tokenTTL,
		TokenSingleUse:  singleUse,
		TokenRedisStore: tokenRedis,

		YtdlpPath: getEnvOrDefault("YTDLP_PATH", "yt-dlp"),

		ArchiveEnabled:   archiveEnabled,
		ArchiveEndpoint:  getEnvOrDefault("ARCHIVE_ENDPOINT", "localhost:9000"),
		ArchiveRegion:    getEnvOrDefault("ARCHIVE_REGION", "us-east-1"),
		ArchiveAccessKey: getEnvOrDefault("ARCHIVE_ACCESS_KEY", "minioadmin"),
		ArchiveSecretKey: getEnvOrDefault("ARCHIVE_SECRET_KEY", "minioadmin"),
		ArchiveBucket:    getEnvOrDefault("ARCHIVE_BUCKET", "eagleeye-downloads"),
		ArchiveUseSSL:    archiveUseSSL,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func generateDefaultSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "dev-secret-change-in-production"
	}
	return hex.EncodeToString(bytes)
}
