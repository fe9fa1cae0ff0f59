// Command cleanup-shared-dbs drops shared test databases left behind by test
// binaries that exited before their teardown ran.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/yuku/testonce/internal/pgenv"
	"github.com/yuku/testonce/internal/procutil"
	"github.com/yuku/testonce/shareddb"
)

type options struct {
	prefix      string
	databaseURL string
	dryRun      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "cleanup-shared-dbs",
		Short: "Drop shared test databases whose owning process is gone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			connStr := opts.databaseURL
			if connStr == "" {
				connStr = pgenv.ConnString()
			}
			rootPool, err := pgxpool.New(ctx, connStr)
			if err != nil {
				return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
			}
			defer rootPool.Close()

			host, err := os.Hostname()
			if err != nil {
				return fmt.Errorf("failed to get hostname: %w", err)
			}

			return cleanup(ctx, cmd.OutOrStdout(), rootPool, opts, host, procutil.IsAlive)
		},
	}

	cmd.Flags().StringVar(&opts.prefix, "prefix", "", "database name prefix used by the tests (required)")
	cmd.Flags().StringVar(&opts.databaseURL, "database-url", "", "connection string; defaults to DATABASE_URL or the PG* variables")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "only print the databases that would be dropped")
	_ = cmd.MarkFlagRequired("prefix")

	return cmd
}

// cleanup drops every shared database for opts.prefix that was created on
// host by a process that is no longer alive.
func cleanup(ctx context.Context, out io.Writer, rootPool *pgxpool.Pool, opts *options, host string, isAlive func(int) bool) error {
	dbs, err := shareddb.ListDatabases(ctx, rootPool, opts.prefix)
	if err != nil {
		return err
	}

	var failed int
	for _, name := range stale(dbs, host, isAlive) {
		if opts.dryRun {
			fmt.Fprintf(out, "Would drop database: %s\n", name)
			continue
		}

		fmt.Fprintf(out, "Dropping database: %s\n", name)
		if err := shareddb.DropDatabase(ctx, rootPool, name); err != nil {
			fmt.Fprintf(out, "  Warning: %v\n", err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("failed to drop %d databases", failed)
	}
	return nil
}

// stale returns the sorted names of databases whose owning process is gone.
// Databases owned by another host, or with no readable owner, are never stale
// since their process cannot be checked from here.
func stale(dbs map[string]shareddb.Owner, host string, isAlive func(int) bool) []string {
	var names []string
	for name, owner := range dbs {
		if owner.Host != host || owner.PID <= 0 {
			continue
		}
		if !isAlive(owner.PID) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
