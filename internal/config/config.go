// Package config loads runtime configuration from the environment, with an
// optional .env file for development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the client core is tuned by. The sync delays
// are policy, not semantics: short for "must feel instant" state
// persistence, long for "may lag" telemetry.
type Config struct {
	// APIBaseURL is the remote backend root, e.g. "https://api.example.com".
	// Empty disables all remote calls; local state still works.
	APIBaseURL string
	// DBPath is the SQLite file backing the key-value store.
	DBPath string

	// StateSyncDelay debounces preference syncs (like/favorite/rating).
	StateSyncDelay time.Duration
	// ActivitySyncDelay debounces like/favorite/rating activity events.
	ActivitySyncDelay time.Duration
	// SearchSyncDelay debounces search and filter activity events.
	SearchSyncDelay time.Duration

	// HTTPTimeout bounds every remote call.
	HTTPTimeout time.Duration

	// LegacyActions mirrors activity events to the old
	// /recommendations/actions endpoint. Off unless a deployment still
	// runs that backend.
	LegacyActions bool

	LogLevel string
}

func Load() (*Config, error) {
	godotenv.Load()

	stateDelay, err := getEnvAsDuration("STATE_SYNC_DELAY", 250*time.Millisecond)
	if err != nil {
		return nil, err
	}
	activityDelay, err := getEnvAsDuration("ACTIVITY_SYNC_DELAY", 10*time.Second)
	if err != nil {
		return nil, err
	}
	searchDelay, err := getEnvAsDuration("SEARCH_SYNC_DELAY", 5*time.Second)
	if err != nil {
		return nil, err
	}
	httpTimeout, err := getEnvAsDuration("HTTP_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	return &Config{
		APIBaseURL:        getEnv("API_BASE_URL", ""),
		DBPath:            getEnv("DB_PATH", "data/boardsync.db"),
		StateSyncDelay:    stateDelay,
		ActivitySyncDelay: activityDelay,
		SearchSyncDelay:   searchDelay,
		HTTPTimeout:       httpTimeout,
		LegacyActions:     getEnvAsBool("ACTIVITY_LEGACY_ACTIONS", false),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
