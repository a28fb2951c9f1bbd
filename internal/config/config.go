package config

import (
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

const (
	RNGModeSeeded = "seeded"
	RNGModeFair   = "fair"
)

// Config is the process configuration, read once at startup from the
// environment (and a .env file when present).
type Config struct {
	Port string

	TickInterval     time.Duration
	CountdownSeconds int
	StartingBalance  float64
	HouseEdge        float64
	GrowthSpeed      float64
	RNGSeed          int64
	RNGMode          string
	OpponentsMax     int
	PlayerName       string

	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	LogLevel  string
	LogFormat string
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		TickInterval:     getEnvAsDuration("TICK_INTERVAL", 50*time.Millisecond),
		CountdownSeconds: getEnvAsInt("COUNTDOWN_SECONDS", 5),
		StartingBalance:  getEnvAsFloat("STARTING_BALANCE", 1000),
		HouseEdge:        getEnvAsFloat("HOUSE_EDGE", 0.05),
		GrowthSpeed:      getEnvAsFloat("GROWTH_SPEED", 0.1),
		RNGSeed:          int64(getEnvAsInt("RNG_SEED", 0)),
		RNGMode:          getEnv("RNG_MODE", RNGModeSeeded),
		OpponentsMax:     getEnvAsInt("OPPONENTS_MAX", 3),
		PlayerName:       getEnv("PLAYER_NAME", "You"),

		RedisEnabled:  getEnvAsBool("REDIS_ENABLED", false),
		RedisAddr:     getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		RedisChannel:  getEnv("REDIS_CHANNEL", "crash:events"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
		}
	}
	return defaultVal
}
