package shareddb

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yuku/testonce"
)

// Database is a PostgreSQL database created once per test binary.
type Database struct {
	cfg    *Config
	name   string
	gate   *testonce.Gate
	owner  Owner
	logger *log.Logger

	// created is set once this process has created the database. Only
	// touched by the gate's setup, which runs under the gate lock.
	created bool

	mu   sync.RWMutex // protects pool
	pool *pgxpool.Pool
}

// New creates a shared database handle. Nothing is created on the server
// until the first Acquire.
func New(cfg *Config) (*Database, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = testonce.DefaultLogger()
	}

	owner, err := currentOwner()
	if err != nil {
		return nil, err
	}
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	db := &Database{
		cfg:    cfg,
		name:   NameFor(cfg.Prefix, owner.PID, token),
		owner:  owner,
		logger: logger,
	}

	gate, err := testonce.New(&testonce.Config{
		Name:           "shareddb." + db.name,
		Setup:          db.setup,
		Teardown:       db.teardown,
		OnSetupFailure: cfg.OnSetupFailure,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gate: %w", err)
	}
	db.gate = gate

	return db, nil
}

// MustNew is like New but panics on error.
func MustNew(cfg *Config) *Database {
	db, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return db
}

// Name returns the name of the shared database.
func (db *Database) Name() string {
	return db.name
}

// Owner returns the owner recorded on the database.
func (db *Database) Owner() Owner {
	return db.owner
}

// Gate returns the gate guarding creation of the database.
func (db *Database) Gate() *testonce.Gate {
	return db.gate
}

// Acquire creates the database on first use and returns a pool connected
// to it. The pool is shared and must not be closed by the caller. The drop
// is registered in the root of scope; a nil scope means testonce.Root().
func (db *Database) Acquire(ctx context.Context, scope *testonce.Store) (*pgxpool.Pool, error) {
	if err := db.gate.EnsureStarted(ctx, scope); err != nil {
		return nil, fmt.Errorf("failed to set up shared database %s: %w", db.name, err)
	}

	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.pool == nil {
		return nil, fmt.Errorf("shared database %s has been dropped", db.name)
	}
	return db.pool, nil
}

// AcquireT is like Acquire with the process-wide root scope, failing t on error.
func (db *Database) AcquireT(t testing.TB) *pgxpool.Pool {
	t.Helper()

	pool, err := db.Acquire(context.Background(), testonce.Root())
	if err != nil {
		t.Fatalf("failed to acquire shared database: %v", err)
	}
	return pool
}

// setup creates and initializes the database. It runs once, under the gate.
func (db *Database) setup(ctx context.Context) error {
	// Only a previous failed attempt of this process can have left the
	// database behind; the random name keeps other processes' databases out.
	if db.created {
		if err := db.drop(ctx); err != nil {
			return err
		}
		db.created = false
	}

	_, err := db.cfg.RootPool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", pgx.Identifier{db.name}.Sanitize()))
	if err != nil {
		return fmt.Errorf("failed to create database %s: %w", db.name, err)
	}
	db.created = true
	db.logger.Info("created shared database", "database", db.name, "owner", db.owner)

	_, err = db.cfg.RootPool.Exec(ctx, fmt.Sprintf("COMMENT ON DATABASE %s IS %s",
		pgx.Identifier{db.name}.Sanitize(), quoteLiteral(db.owner.String())))
	if err != nil {
		return fmt.Errorf("failed to record owner of database %s: %w", db.name, err)
	}

	if db.cfg.Setup != nil {
		conn, err := db.connect(ctx)
		if err != nil {
			return fmt.Errorf("failed to connect to database %s: %w", db.name, err)
		}
		defer func() { _ = conn.Close(ctx) }()

		if err := db.cfg.Setup(ctx, conn); err != nil {
			return fmt.Errorf("failed to set up database %s: %w", db.name, err)
		}
	}

	poolConfig := db.cfg.RootPool.Config().Copy()
	poolConfig.ConnConfig.Database = db.name
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to create pool for database %s: %w", db.name, err)
	}

	db.mu.Lock()
	db.pool = pool
	db.mu.Unlock()
	return nil
}

// teardown closes the shared pool and drops the database.
func (db *Database) teardown(ctx context.Context) error {
	db.mu.Lock()
	pool := db.pool
	db.pool = nil
	db.mu.Unlock()

	if pool != nil {
		pool.Close()
	}

	if err := db.drop(ctx); err != nil {
		return err
	}
	db.logger.Info("dropped shared database", "database", db.name)
	return nil
}

func (db *Database) drop(ctx context.Context) error {
	return DropDatabase(ctx, db.cfg.RootPool, db.name)
}

func (db *Database) connect(ctx context.Context) (*pgx.Conn, error) {
	config := db.cfg.RootPool.Config().ConnConfig.Copy()
	config.Database = db.name
	return pgx.ConnectConfig(ctx, config)
}

// DropDatabase drops the named database, terminating its connections.
func DropDatabase(ctx context.Context, rootPool *pgxpool.Pool, name string) error {
	_, err := rootPool.Exec(ctx, fmt.Sprintf(
		"DROP DATABASE IF EXISTS %s WITH (FORCE)",
		pgx.Identifier{name}.Sanitize(),
	))
	if err != nil {
		return fmt.Errorf("failed to drop database %s: %w", name, err)
	}
	return nil
}

// quoteLiteral quotes s as a SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// ListDatabases returns the shared databases for prefix on the server,
// keyed by database name. Databases whose owner comment is missing or
// unreadable map to the zero Owner.
func ListDatabases(ctx context.Context, rootPool *pgxpool.Pool, prefix string) (map[string]Owner, error) {
	rows, err := rootPool.Query(ctx, `
		SELECT datname, COALESCE(shobj_description(oid, 'pg_database'), '')
		FROM pg_database
		WHERE starts_with(datname, $1)
	`, prefix+"_")
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}

	type dbRow struct {
		name    string
		comment string
	}
	found, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (dbRow, error) {
		var r dbRow
		err := row.Scan(&r.name, &r.comment)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan databases: %w", err)
	}

	dbs := make(map[string]Owner)
	for _, r := range found {
		if _, ok := ParseName(prefix, r.name); !ok {
			continue
		}
		owner, _ := ParseOwner(r.comment)
		dbs[r.name] = owner
	}
	return dbs, nil
}
