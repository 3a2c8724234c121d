// Package config provides centralized default values for zori-go
package config

import (
	"bufio"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		file, err := os.Open(".env")
		if err != nil {
			return
		}
		defer file.Close()

		log.Println("Loading configuration overrides from .env file...")
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())

			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			key, value, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}

			key = strings.TrimSpace(key)
			value = strings.Trim(strings.TrimSpace(value), `"'`)

			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%t (default: %t)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Client Defaults
	DefaultKey                string
	DefaultBaseURL            string
	DefaultSessionTimeout     time.Duration
	DefaultComebackThreshold  time.Duration
	DefaultTrackQuickSwitches bool
	DefaultHonorDoNotTrack    bool
	DefaultImplicitConsent    bool
	DefaultAutoPageView       bool
	DefaultEndSessionOnUnload bool

	// Local State
	StatePath          string
	StateSweepInterval time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Collector Server Configuration
	CollectorPort         string
	ServerReadTimeout     time.Duration
	ServerWriteTimeout    time.Duration
	ServerIdleTimeout     time.Duration
	CollectorRecentLimit  int
	CollectorMaxBodyBytes int
	CollectorAllowOrigins []string
	CollectorKey          string

	// SSE Configuration
	SSEHeartbeatInterval time.Duration
	MaxTailClients       int
)

func init() {
	loadEnvFile()

	// Client Defaults
	DefaultKey = getEnvString("ZORI_KEY", "")
	DefaultBaseURL = getEnvString("ZORI_BASE_URL", "https://ingestion.zorihq.com/ingest")
	DefaultSessionTimeout = getEnvDuration("ZORI_SESSION_TIMEOUT", 30*time.Minute)
	DefaultComebackThreshold = time.Duration(getEnvInt("ZORI_COMEBACK_THRESHOLD_MS", 30000)) * time.Millisecond
	DefaultTrackQuickSwitches = getEnvBool("ZORI_TRACK_QUICK_SWITCHES", false)
	DefaultHonorDoNotTrack = getEnvBool("ZORI_HONOR_DNT", true)
	DefaultImplicitConsent = getEnvBool("ZORI_IMPLICIT_CONSENT", true)
	DefaultAutoPageView = getEnvBool("ZORI_AUTO_PAGE_VIEW", true)
	DefaultEndSessionOnUnload = getEnvBool("ZORI_END_SESSION_ON_UNLOAD", false)

	// Local State
	StatePath = getEnvString("ZORI_STATE", ".zori/state.db")
	StateSweepInterval = getEnvDuration("ZORI_STATE_SWEEP_INTERVAL", time.Hour)

	// Logging
	LogLevel = getEnvString("ZORI_LOG_LEVEL", "warn")
	LogFormat = getEnvString("ZORI_LOG_FORMAT", "text")

	// Collector Server Configuration
	CollectorPort = getEnvString("ZORI_COLLECTOR_PORT", "8787")
	ServerReadTimeout = getEnvDuration("ZORI_SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("ZORI_SERVER_WRITE_TIMEOUT", 0)
	ServerIdleTimeout = getEnvDuration("ZORI_SERVER_IDLE_TIMEOUT", 60*time.Second)
	CollectorRecentLimit = getEnvInt("ZORI_COLLECTOR_RECENT", 100)
	CollectorMaxBodyBytes = getEnvInt("ZORI_COLLECTOR_MAX_BODY_BYTES", 64*1024)
	CollectorAllowOrigins = strings.Split(getEnvString("ZORI_COLLECTOR_ORIGINS", "*"), ",")
	CollectorKey = getEnvString("ZORI_COLLECTOR_KEY", "")

	// SSE Configuration
	SSEHeartbeatInterval = time.Duration(getEnvInt("ZORI_SSE_HEARTBEAT_INTERVAL_SECONDS", 30)) * time.Second
	MaxTailClients = getEnvInt("ZORI_MAX_TAIL_CLIENTS", 32)
}
