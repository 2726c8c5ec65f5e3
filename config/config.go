/*
config.go - Environment-based server configuration

PURPOSE:
  Loads all server settings from environment variables with sensible
  development defaults. Postgres is used when DATABASE_URL is set,
  otherwise the embedded SQLite store. Redis report caching is enabled
  only when REDIS_ADDR is set.

SEE ALSO:
  - cmd/server/main.go: Applies this configuration at startup
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port             string
	AllowedOrigin    string
	DatabaseURL      string
	SQLitePath       string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	ReportTTLMinutes int
	AuthSecret       string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	reportTTL, err := strconv.Atoi(getEnv("REPORT_TTL_MINUTES", "1440"))
	if err != nil || reportTTL < 1 {
		reportTTL = 1440
	}

	return Config{
		Port:             getEnv("PORT", "8080"),
		AllowedOrigin:    getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		SQLitePath:       getEnv("SQLITE_PATH", "registers.db"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          redisDB,
		ReportTTLMinutes: reportTTL,
		AuthSecret:       strings.TrimSpace(os.Getenv("AUTH_SECRET")),
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
