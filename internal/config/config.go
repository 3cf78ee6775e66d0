package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	AppName    = "FeedKeeper"
	AppVersion = "1.0.0"
)

// UserAgent identifies outbound feed fetches.
var UserAgent = AppName + "/" + AppVersion

type Config struct {
	Addr     string
	DBPath   string
	DataDir  string
	LogLevel string

	// UpdateInterval is the global default auto-update interval for feeds
	// whose update mode is Default and whose account sets no interval.
	UpdateInterval time.Duration

	// FetchTimeout bounds a single feed fetch.
	FetchTimeout time.Duration

	// FetchConcurrency is the per-account bound on parallel feed fetches.
	FetchConcurrency int

	// FetchRate limits outbound fetches per second across all accounts.
	FetchRate int

	// ProxyURL, when set, routes all outbound fetches through the proxy
	// (http, https or socks5 scheme).
	ProxyURL string
}

func Load() Config {
	addr := getenv("FEEDKEEPER_ADDR", ":8080")
	dataDir := getenv("FEEDKEEPER_DATA_DIR", "./data")
	path := os.Getenv("FEEDKEEPER_DB_PATH")
	if path == "" {
		path = filepath.Join(dataDir, "feedkeeper.db")
	}

	return Config{
		Addr:             addr,
		DBPath:           filepath.Clean(path),
		DataDir:          filepath.Clean(dataDir),
		LogLevel:         getenv("FEEDKEEPER_LOG_LEVEL", "info"),
		UpdateInterval:   time.Duration(getenvInt("FEEDKEEPER_UPDATE_INTERVAL_MIN", 15)) * time.Minute,
		FetchTimeout:     time.Duration(getenvInt("FEEDKEEPER_FETCH_TIMEOUT_SEC", 30)) * time.Second,
		FetchConcurrency: getenvInt("FEEDKEEPER_FETCH_CONCURRENCY", 4),
		FetchRate:        getenvInt("FEEDKEEPER_FETCH_RATE", 10),
		ProxyURL:         os.Getenv("FEEDKEEPER_PROXY_URL"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
