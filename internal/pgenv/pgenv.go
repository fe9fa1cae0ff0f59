// Package pgenv builds PostgreSQL connection strings from the environment.
package pgenv

import (
	"fmt"
	"os"
)

// ConnString returns DATABASE_URL if set. Otherwise it builds a connection
// string to the postgres database from the PG* variables, with defaults
// matching a local development server.
func ConnString() string {
	if connStr := os.Getenv("DATABASE_URL"); connStr != "" {
		return connStr
	}

	host := GetEnvOrDefault("PGHOST", "localhost")
	port := GetEnvOrDefault("PGPORT", "5432")
	user := GetEnvOrDefault("PGUSER", "postgres")
	password := GetEnvOrDefault("PGPASSWORD", "postgres")
	sslmode := GetEnvOrDefault("PGSSLMODE", "disable")

	if password != "" {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/postgres?sslmode=%s",
			user, password, host, port, sslmode)
	}
	return fmt.Sprintf("postgres://%s@%s:%s/postgres?sslmode=%s",
		user, host, port, sslmode)
}

// GetEnvOrDefault gets an environment variable or returns a default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
