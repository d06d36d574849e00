package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/uistack/comp-vs/internal/storage"
)

// StorageBackend enumerates supported persistence layers.
type StorageBackend string

const (
	// StorageBackendMemory keeps data in-process.
	StorageBackendMemory StorageBackend = "memory"
	// StorageBackendRedis persists data to Redis.
	StorageBackendRedis StorageBackend = "redis"
)

// Config aggregates runtime configuration.
type Config struct {
	APIAddr  string
	LogLevel string
	Storage  StorageConfig
	Archive  ArchiveConfig
	Library  LibraryConfig
}

// StorageConfig contains backend selection and nested settings.
type StorageConfig struct {
	Backend StorageBackend
	Redis   storage.RedisConfig
}

// ArchiveConfig holds cold-storage settings for superseded snapshots.
type ArchiveConfig struct {
	Path string
}

// LibraryConfig points at the remote design library.
type LibraryConfig struct {
	BaseURL string
	Token   string
	FileKey string
}

// Load reads configuration from environment variables.
func Load() Config {
	backend := StorageBackend(strings.ToLower(envDefault("STORAGE_BACKEND", string(StorageBackendMemory))))

	return Config{
		APIAddr:  envDefault("API_ADDR", ":8080"),
		LogLevel: envDefault("LOG_LEVEL", "info"),
		Storage: StorageConfig{
			Backend: backend,
			Redis: storage.RedisConfig{
				Addr:     os.Getenv("REDIS_ADDR"),
				Username: os.Getenv("REDIS_USERNAME"),
				Password: os.Getenv("REDIS_PASSWORD"),
				Database: envInt("REDIS_DB", 0),
			},
		},
		Archive: ArchiveConfig{
			Path: envDefault("ARCHIVE_PATH", "data/archive.db"),
		},
		Library: LibraryConfig{
			BaseURL: os.Getenv("LIBRARY_BASE_URL"),
			Token:   os.Getenv("LIBRARY_TOKEN"),
			FileKey: os.Getenv("FIGMA_FILE_KEY"),
		},
	}
}

func envDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func envInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return def
}
