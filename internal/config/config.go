// Package config loads the engine's tunables from the environment, the
// same way the rest of the codebase does: godotenv populates the process
// environment from a local .env file if present, then each setting reads
// via os.Getenv with a documented default.
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// StandingsBackend selects which Snapshot Store backend a deployment uses.
type StandingsBackend string

const (
	BackendFile  StandingsBackend = "file"
	BackendMongo StandingsBackend = "mongo"
)

// Config holds the engine's shared environment-derived settings (spec
// §4.4's cadence defaults, plus backend selection). Entrypoint-specific
// variables such as PORT, METRICS_PORT, REDIS_PASSWORD, and
// TRACKED_CONTESTS are read by the cmd/ packages themselves.
type Config struct {
	BaseInterval  int
	DeltaInterval int

	StandingsBackend StandingsBackend
	StandingsDataDir string
	MongoURI         string
	MongoDatabase    string

	DatabaseURL string
	RedisAddr   string
}

// Load reads a .env file if present, falling back to whatever is already in
// the process environment, and resolves every setting with its default.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	return Config{
		BaseInterval:  getEnvInt("BASE_INTERVAL", 120),
		DeltaInterval: getEnvInt("DELTA_INTERVAL", 10),

		StandingsBackend: StandingsBackend(getEnvOrDefault("STANDINGS_BACKEND", string(BackendFile))),
		StandingsDataDir: getEnvOrDefault("STANDINGS_DATA_DIR", "./data/standings"),
		MongoURI:         getEnvOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:    getEnvOrDefault("MONGO_DATABASE", "standings_replay_engine"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid value %q for %s, using default %d", v, key, defaultValue)
		return defaultValue
	}
	return n
}
