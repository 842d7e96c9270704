package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	AdminUsername      string
	AdminPassword      string
	JWTSecret          string
	TokenTTLHours      int
	RedisHost          string
	RedisPort          int
	RedisPassword      string
	RedisDB            int
	RedisLimDB         int
	Port               string
	TrustedProxies     string
	MetricsAllowedIPs  string
	LogWeb             bool
	LogRetentionDays   int
	FailOpenRouting    bool
	StoreTimeoutSecs   int
	RunWorkerInProcess bool
	RateLimit          int
	RatePeriod         int
	RateLimitLogin     int
}

func Load() *Config {
	return &Config{
		AdminUsername:      getEnv("ADMIN_USERNAME", ""),
		AdminPassword:      getEnv("ADMIN_PASSWORD", ""),
		JWTSecret:          getEnv("JWT_SECRET", "your-secret-key"),
		TokenTTLHours:      getEnvInt("TOKEN_TTL_HOURS", 24),
		RedisHost:          getEnv("REDIS_HOST", "localhost"),
		RedisPort:          getEnvInt("REDIS_PORT", 6379),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		RedisLimDB:         getEnvInt("REDIS_LIM_DB", 1),
		Port:               getEnv("PORT", "5000"),
		TrustedProxies:     getEnv("TRUSTED_PROXIES", "127.0.0.1"),
		MetricsAllowedIPs:  getEnv("METRICS_ALLOWED_IPS", "127.0.0.1"),
		LogWeb:             getEnvBool("LOGWEB", false),
		LogRetentionDays:   getEnvInt("LOG_RETENTION_DAYS", 30),
		FailOpenRouting:    getEnvBool("FAIL_OPEN", true),
		StoreTimeoutSecs:   getEnvInt("STORE_TIMEOUT_SECS", 3),
		RunWorkerInProcess: getEnvBool("RUN_WORKER_IN_PROCESS", true),
		RateLimit:          getEnvInt("RATE_LIMIT", 500),
		RatePeriod:         getEnvInt("RATE_PERIOD", 30),
		RateLimitLogin:     getEnvInt("RATE_LIMIT_LOGIN", 10),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		return value == "true" || value == "1"
	}
	return fallback
}
