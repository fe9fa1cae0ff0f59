// Package shareddb provides a PostgreSQL database shared by every test of a
// test binary.
//
// The database is created and migrated by the first test that acquires it and
// dropped after the last test has finished. Creation goes through a
// testonce.Gate, so concurrent tests never race on it, and the drop runs from
// the gate's teardown hook when TestMain closes the root scope:
//
//	var db *shareddb.Database
//
//	func TestMain(m *testing.M) {
//		rootPool, err := pgxpool.New(context.Background(), os.Getenv("DATABASE_URL"))
//		if err != nil {
//			panic(err)
//		}
//
//		db = shareddb.MustNew(&shareddb.Config{
//			Prefix:   "myapp_test",
//			RootPool: rootPool,
//			Setup: func(ctx context.Context, conn *pgx.Conn) error {
//				_, err := conn.Exec(ctx, `CREATE TABLE users (id SERIAL PRIMARY KEY, name TEXT)`)
//				return err
//			},
//		})
//
//		code := testonce.Run(m)
//		rootPool.Close()
//		os.Exit(code)
//	}
//
//	func TestUsers(t *testing.T) {
//		pool := db.AcquireT(t)
//		_, err := pool.Exec(context.Background(), "INSERT INTO users (name) VALUES ($1)", "Alice")
//		require.NoError(t, err)
//	}
//
// Database names are the configured prefix followed by the process id and a
// random token, so packages tested in parallel by `go test ./...`, or by test
// binaries on other hosts against the same server, never share a database.
// The creating host and pid are recorded as the database comment. Databases
// left behind by crashed test binaries can be removed with the
// cleanup-shared-dbs command, which only drops databases whose owner is a
// dead process on the local host.
package shareddb
