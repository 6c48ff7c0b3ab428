package main

import (
	"log/slog"
	"os"

	"github.com/subosito/gotenv"
)

// Config holds everything the service reads from the environment. Secrets are
// per-surface shared keys compared by exact match in the handlers.
type Config struct {
	Port string

	Neo4jURI      string
	Neo4jUsername string
	Neo4jPassword string

	PostgresConnString string

	MongoURL    string
	MongoDBName string

	RedisAddr     string
	RedisPassword string

	NeynarAPIKey string

	ClankPass       string
	FarstorePass    string
	ReputationPass  string
	FartPass        string
	LeaderboardPass string

	// When set, each weighted-cast search writes its query and result set to
	// a timestamped JSON file under this directory.
	DumpDir string
}

func loadConfig() Config {
	if err := gotenv.Load(); err != nil {
		slog.Warn("no .env file found, using OS environment")
	}

	cfg := Config{
		Port:               envOr("PORT", "8000"),
		Neo4jURI:           os.Getenv("NEO4J_URI"),
		Neo4jUsername:      os.Getenv("NEO4J_USERNAME"),
		Neo4jPassword:      os.Getenv("NEO4J_PASSWORD"),
		PostgresConnString: os.Getenv("POSTGRES_CONNECTION_STRING"),
		MongoURL:           os.Getenv("MONGO_DB_URL"),
		MongoDBName:        envOr("MONGO_DB_NAME", "farcaster"),
		RedisAddr:          envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		NeynarAPIKey:       os.Getenv("NEYNAR_API_KEY"),
		ClankPass:          os.Getenv("CLANK_PASS"),
		FarstorePass:       os.Getenv("FARSTORE_PASS"),
		ReputationPass:     os.Getenv("REPUTATION_PASS"),
		FartPass:           os.Getenv("FART_PASS"),
		LeaderboardPass:    os.Getenv("LEADERBOARD_PASS"),
		DumpDir:            os.Getenv("SEARCH_DUMP_DIR"),
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
