// Package config provides configuration management for the transfer router.
// It loads configuration from environment variables with sensible defaults and
// validates the result so the engine starts safely.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Admin server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//
// Database Configuration:
//   - DATABASE_URL: PostgreSQL connection string for route/stock storage.
//     When empty the in-memory repositories are used (tests, local runs).
//
// Redis Configuration (optional, enables distributed stock locks):
//   - REDIS_ADDRESS: Redis server address
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//
// RabbitMQ (optional, enables payout outcome events):
//   - RABBITMQ_URL: RabbitMQ connection URL
//   - EVENTS_EXCHANGE: Exchange for payout outcome events (default: payouts)
//
// Routing Engine:
//   - FAILURE_THRESHOLD: Consecutive failures before a gateway circuit opens (default: 5)
//   - RECOVERY_TIMEOUT: Open circuit cool-down before half-open (default: 5m)
//   - METRICS_WINDOW: Idle window before health counters decay (default: 1h)
//   - MIN_SCORE_THRESHOLD: Minimum route score to qualify (default: 30)
//   - SPLIT_THRESHOLD: Amount above which split planning kicks in (default: 5000000)
//   - MAX_RETRIES: Maximum fallback attempts per payout (default: 3)
//   - BRIDGE_OVERHEAD_PERCENT: Fixed per-hop fee overhead (default: 0.5)
//   - BRIDGE_HUBS: Comma-separated prioritized hub countries (default: CM,SN,CI,KE)
//   - GATEWAY_TIMEOUT: Deadline applied to each gateway call (default: 30s)
//   - SCORE_WEIGHTS: cost,reliability,speed,stock,operator percentages summing
//     to 100 (default: 30,30,15,15,10)
//   - APP_FEE_PERCENT: Platform fee percentage (default: 1.0)
//   - APP_FEE_CAP: Platform fee cap in minor units, 0 disables (default: 0)
//
// Gateway Clients:
//   - GATEWAYS: Semicolon-separated "name=base-url" pairs, e.g.
//     "mtn_momo=https://momo.example;wave=https://wave.example"
//   - GATEWAY_<NAME>_API_KEY: Bearer token for one gateway, name uppercased
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values for the transfer router.
type Config struct {
	// Application settings
	Port     string
	LogLevel string

	// Storage
	DatabaseURL string

	// Redis, optional
	RedisAddress  string
	RedisPassword string
	RedisDB       int

	// RabbitMQ, optional
	RabbitMQURL    string
	EventsExchange string

	// Routing engine tunables
	FailureThreshold      int
	RecoveryTimeout       time.Duration
	MetricsWindow         time.Duration
	MinScoreThreshold     int
	SplitThreshold        int64
	MaxRetries            int
	BridgeOverheadPercent float64
	BridgeHubs            []string
	GatewayTimeout        time.Duration
	ScoreWeights          [5]int

	// Fees
	AppFeePercent float64
	AppFeeCap     int64

	// Gateway clients: name -> base URL, plus per-gateway API keys
	Gateways       map[string]string
	GatewayAPIKeys map[string]string
}

// Load creates a Config with values from environment variables. Call
// Validate() on the result before use.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		RabbitMQURL:    getEnv("RABBITMQ_URL", ""),
		EventsExchange: getEnv("EVENTS_EXCHANGE", "payouts"),

		FailureThreshold:      getIntEnv("FAILURE_THRESHOLD", 5),
		RecoveryTimeout:       getDurationEnv("RECOVERY_TIMEOUT", 5*time.Minute),
		MetricsWindow:         getDurationEnv("METRICS_WINDOW", time.Hour),
		MinScoreThreshold:     getIntEnv("MIN_SCORE_THRESHOLD", 30),
		SplitThreshold:        getInt64Env("SPLIT_THRESHOLD", 5_000_000),
		MaxRetries:            getIntEnv("MAX_RETRIES", 3),
		BridgeOverheadPercent: getFloatEnv("BRIDGE_OVERHEAD_PERCENT", 0.5),
		BridgeHubs:            getListEnv("BRIDGE_HUBS", []string{"CM", "SN", "CI", "KE"}),
		GatewayTimeout:        getDurationEnv("GATEWAY_TIMEOUT", 30*time.Second),
		ScoreWeights:          getWeightsEnv("SCORE_WEIGHTS", [5]int{30, 30, 15, 15, 10}),

		AppFeePercent: getFloatEnv("APP_FEE_PERCENT", 1.0),
		AppFeeCap:     getInt64Env("APP_FEE_CAP", 0),

		Gateways:       getGatewaysEnv("GATEWAYS"),
		GatewayAPIKeys: getGatewayKeysEnv(getGatewaysEnv("GATEWAYS")),
	}
}

func getGatewaysEnv(key string) map[string]string {
	result := make(map[string]string)
	for _, pair := range strings.Split(os.Getenv(key), ";") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			result[strings.ToLower(parts[0])] = parts[1]
		}
	}
	return result
}

func getGatewayKeysEnv(gateways map[string]string) map[string]string {
	keys := make(map[string]string)
	for name := range gateways {
		envKey := "GATEWAY_" + strings.ToUpper(name) + "_API_KEY"
		if value := os.Getenv(envKey); value != "" {
			keys[name] = value
		}
	}
	return keys
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, strings.ToUpper(trimmed))
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}

func getWeightsEnv(key string, defaultValue [5]int) [5]int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	if len(parts) != 5 {
		return defaultValue
	}
	var weights [5]int
	for i, p := range parts {
		parsed, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return defaultValue
		}
		weights[i] = parsed
	}
	return weights
}

// Validate checks required fields, value ranges and cross-field constraints.
// The application should refuse to start on a validation error.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	if c.FailureThreshold < 1 {
		return fmt.Errorf("FAILURE_THRESHOLD must be at least 1")
	}
	if c.RecoveryTimeout <= 0 {
		return fmt.Errorf("RECOVERY_TIMEOUT must be positive")
	}
	if c.MetricsWindow <= 0 {
		return fmt.Errorf("METRICS_WINDOW must be positive")
	}
	if c.MinScoreThreshold < 0 || c.MinScoreThreshold > 100 {
		return fmt.Errorf("MIN_SCORE_THRESHOLD must be between 0 and 100")
	}
	if c.SplitThreshold <= 0 {
		return fmt.Errorf("SPLIT_THRESHOLD must be positive")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("MAX_RETRIES must be at least 1")
	}
	if c.BridgeOverheadPercent < 0 {
		return fmt.Errorf("BRIDGE_OVERHEAD_PERCENT must not be negative")
	}
	if len(c.BridgeHubs) == 0 {
		return fmt.Errorf("BRIDGE_HUBS must list at least one hub country")
	}
	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive")
	}

	sum := 0
	for _, w := range c.ScoreWeights {
		if w < 0 {
			return fmt.Errorf("SCORE_WEIGHTS must not contain negative values")
		}
		sum += w
	}
	if sum != 100 {
		return fmt.Errorf("SCORE_WEIGHTS must sum to 100, got %d", sum)
	}

	if c.AppFeePercent < 0 {
		return fmt.Errorf("APP_FEE_PERCENT must not be negative")
	}

	if c.RedisAddress != "" {
		if c.RedisDB < 0 || c.RedisDB > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
	}

	return nil
}
