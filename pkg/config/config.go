package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StateBackendFile      = "file"
	StateBackendFirestore = "firestore"
	StateBackendRedis     = "redis"
	StateBackendMemory    = "memory"
)

type Config struct {
	BridgePort  string
	Environment string
	LogLevel    string

	APIBaseURL     string
	WSURL          string
	RequestTimeout time.Duration

	ReconnectDelay     time.Duration
	MaxReconnectDelay  time.Duration
	ExponentialBackoff bool
	HeartbeatInterval  time.Duration

	ChatEchoWindow time.Duration

	StateBackend       string
	StateFilePath      string
	StateDeviceID      string
	FirebaseProject    string
	ServiceAccountPath string
	ServiceAccountJSON string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	ChatSendPerMinute  int
	RefreshPerMinute   int
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		BridgePort:  getEnv("BRIDGE_PORT", "8787"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", ""),

		APIBaseURL:     strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8081"), "/"),
		WSURL:          getEnv("WS_URL", "ws://localhost:8081/ws"),
		RequestTimeout: time.Duration(getEnvAsInt64("API_TIMEOUT_SECONDS", 10)) * time.Second,

		ReconnectDelay:     time.Duration(getEnvAsInt64("WS_RECONNECT_DELAY_MS", 5000)) * time.Millisecond,
		MaxReconnectDelay:  time.Duration(getEnvAsInt64("WS_RECONNECT_MAX_DELAY_MS", 60000)) * time.Millisecond,
		ExponentialBackoff: getEnvAsBool("WS_EXPONENTIAL_BACKOFF", false),
		HeartbeatInterval:  time.Duration(getEnvAsInt64("WS_HEARTBEAT_SECONDS", 30)) * time.Second,

		ChatEchoWindow: time.Duration(getEnvAsInt64("CHAT_ECHO_WINDOW_SECONDS", 10)) * time.Second,

		StateBackend:       getEnv("STATE_BACKEND", StateBackendFile),
		StateFilePath:      getEnv("STATE_FILE_PATH", "./seedbazaar-state.json"),
		StateDeviceID:      getEnv("STATE_DEVICE_ID", ""),
		FirebaseProject:    getEnv("FIREBASE_PROJECT_ID", ""),
		ServiceAccountPath: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
		ServiceAccountJSON: getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            int(getEnvAsInt64("REDIS_DB", 0)),
		ChatSendPerMinute:  int(getEnvAsInt64("CHAT_SEND_RATE_PER_MINUTE", 30)),
		RefreshPerMinute:   int(getEnvAsInt64("REFRESH_RATE_PER_MINUTE", 20)),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
	}
	return defaultValue
}
