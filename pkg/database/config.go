// Package database provides the Postgres connection pool and embedded
// migrations for the Store's pg dialect.
package database

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds Postgres connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN renders the libpq-style connection string pgx/stdlib expects.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// LoadConfigFromEnv builds a Config from CONVERGE_PG_* environment
// variables (spec.md §6). CONVERGE_PG_DSN is not read here.
func LoadConfigFromEnv() Config {
	return Config{
		Host:            getEnv("CONVERGE_PG_HOST", "localhost"),
		Port:            getEnvInt("CONVERGE_PG_PORT", 5432),
		User:            getEnv("CONVERGE_PG_USER", "converge"),
		Password:        getEnv("CONVERGE_PG_PASSWORD", ""),
		Database:        getEnv("CONVERGE_PG_DATABASE", "converge"),
		SSLMode:         getEnv("CONVERGE_PG_SSLMODE", "disable"),
		MaxOpenConns:    getEnvInt("CONVERGE_PG_MAX_OPEN_CONNS", 20),
		MaxIdleConns:    getEnvInt("CONVERGE_PG_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: time.Duration(getEnvInt("CONVERGE_PG_CONN_MAX_LIFETIME_S", 1800)) * time.Second,
		ConnMaxIdleTime: time.Duration(getEnvInt("CONVERGE_PG_CONN_MAX_IDLE_S", 300)) * time.Second,
	}
}
