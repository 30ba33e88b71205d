package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPPort = "3000"
	defaultGRPCPort = "50051"
	defaultMySQLDSN = "root:root@tcp(localhost:3306)/catalog?parseTime=true"
)

type Config struct {
	Port           string
	GRPCPort       string
	Database       DatabaseConfig
	RedisAddr      string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("failed to load .env file: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultHTTPPort
		log.Printf("PORT not set, defaulting to %s", defaultHTTPPort)
	}

	return &Config{
		Port:     port,
		GRPCPort: getString("GRPC_PORT", defaultGRPCPort),
		Database: DatabaseConfig{
			DSN:             getString("MYSQL_DSN", defaultMySQLDSN),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			AutoMigrate:     getBool("AUTO_MIGRATE", true),
		},
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),
	}
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("invalid %s=%q, using %d", key, v, fallback)
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Printf("invalid %s=%q, using %t", key, v, fallback)
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		log.Printf("invalid %s=%q, using %s", key, v, fallback)
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
