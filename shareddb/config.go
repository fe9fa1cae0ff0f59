package shareddb

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yuku/testonce"
	"github.com/yuku/testonce/internal/pgconst"
)

// Config holds the configuration for a shared test database.
type Config struct {
	// Prefix is the first part of the database name. It must be a valid
	// unquoted PostgreSQL identifier.
	Prefix string

	// RootPool is connected to a database of the server with privileges to
	// create and drop databases.
	RootPool *pgxpool.Pool

	// Setup is called once, on a connection to the freshly created database.
	Setup func(ctx context.Context, conn *pgx.Conn) error

	// OnSetupFailure is passed to the underlying gate.
	OnSetupFailure testonce.FailurePolicy

	// Logger defaults to testonce.DefaultLogger.
	Logger *log.Logger
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Prefix == "" {
		return fmt.Errorf("Prefix is required")
	}

	if c.RootPool == nil {
		return fmt.Errorf("RootPool is required")
	}

	if !pgconst.IsValidIdentifier(c.Prefix) {
		return fmt.Errorf("Prefix %q is not a valid identifier", c.Prefix)
	}

	if maxLen := pgconst.MaxIdentifierLength - nameSuffixLength; len(c.Prefix) > maxLen {
		return fmt.Errorf("Prefix must be %d characters or less, got %d", maxLen, len(c.Prefix))
	}

	return nil
}
