package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Settings persistence; empty RedisURL keeps settings in memory.
	RedisURL    string
	SettingsTTL time.Duration

	// Sessions
	SessionTTL time.Duration

	// Thumbnail workers
	WorkerCount       int
	MaxQueueSize      int
	ThumbnailMaxPages int

	// Upload limits
	MaxUploadBytes int64
	MaxImportBytes int64

	// Export archive; disabled when ArchiveEndpoint is empty.
	ArchiveEndpoint  string
	ArchiveAccessKey string
	ArchiveSecretKey string
	ArchiveBucket    string
	ArchiveUseSSL    bool
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("MARKVIEW_API_KEY"),

		RedisURL:    os.Getenv("REDIS_URL"),
		SettingsTTL: envDuration("SETTINGS_TTL", 720*time.Hour),

		SessionTTL: envDuration("SESSION_TTL", 1*time.Hour),

		WorkerCount:       envInt("WORKER_COUNT", 2),
		MaxQueueSize:      envInt("MAX_QUEUE_SIZE", 64),
		ThumbnailMaxPages: envInt("THUMBNAIL_MAX_PAGES", 10),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB
		MaxImportBytes: envInt64("MAX_IMPORT_BYTES", 5242880),  // 5MB

		ArchiveEndpoint:  os.Getenv("ARCHIVE_ENDPOINT"),
		ArchiveAccessKey: os.Getenv("ARCHIVE_ACCESS_KEY"),
		ArchiveSecretKey: os.Getenv("ARCHIVE_SECRET_KEY"),
		ArchiveBucket:    envOr("ARCHIVE_BUCKET", "markview-exports"),
		ArchiveUseSSL:    envBool("ARCHIVE_USE_SSL", true),
	}

	if cfg.SettingsTTL <= 0 {
		cfg.SettingsTTL = 720 * time.Hour
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 1 * time.Hour
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 64
	}
	// Thumbnails never cover more than the first 10 pages.
	if cfg.ThumbnailMaxPages <= 0 || cfg.ThumbnailMaxPages > 10 {
		cfg.ThumbnailMaxPages = 10
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.MaxImportBytes <= 0 {
		cfg.MaxImportBytes = 5242880
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("MARKVIEW_API_KEY is required")
	}
	if c.ArchiveEndpoint != "" && (c.ArchiveAccessKey == "" || c.ArchiveSecretKey == "") {
		return fmt.Errorf("ARCHIVE_ACCESS_KEY and ARCHIVE_SECRET_KEY are required with ARCHIVE_ENDPOINT")
	}
	return nil
}

// ArchiveEnabled reports whether export files are uploaded.
func (c Config) ArchiveEnabled() bool {
	return c.ArchiveEndpoint != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
