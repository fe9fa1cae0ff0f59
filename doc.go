// Package testonce runs a shared setup action exactly once per test binary and
// the matching teardown exactly once after the last test has finished.
//
// Go tests have no "before the first test that needs X" and "after the last
// test that used X" events that span independent test functions. testonce
// provides them with two pieces: a Gate, whose started flag is guarded by a
// mutex so that setup runs once however many tests call it concurrently, and
// a Hook, registered into a shared Store the moment the gate starts. The store
// is closed by TestMain once all tests have run, and closing it releases the
// hook, which runs the teardown.
//
// # Basic Usage
//
// Declare the gate at package level, start it from every test that needs it,
// and let Run close the root scope:
//
//	var server = testonce.MustNew(&testonce.Config{
//		Name: "api-server",
//		Setup: func(ctx context.Context) error {
//			return startServer(ctx)
//		},
//		Teardown: func(ctx context.Context) error {
//			return stopServer(ctx)
//		},
//	})
//
//	func TestMain(m *testing.M) {
//		os.Exit(testonce.Run(m))
//	}
//
//	func TestUsers(t *testing.T) {
//		server.BeforeAll(t)
//		// ...
//	}
//
//	func TestOrders(t *testing.T) {
//		server.BeforeAll(t)
//		// ...
//	}
//
// Setup runs when the first of TestUsers or TestOrders calls BeforeAll, and
// teardown runs after both have finished. If no test calls BeforeAll, neither
// runs.
//
// # Setup Failures
//
// By default a failed setup poisons the gate: it stays started, and every
// later caller receives the original error. The hook is still registered, so
// teardown gets a chance to release whatever setup created before failing.
// With ResetOnFailure the gate is reset instead and the next caller retries.
//
// # Scopes
//
// Store is a hierarchical key-value scope. Values implementing Closer or
// io.Closer are closed, children first and then in reverse insertion order,
// when the store closes. Gates always register their hook in the root of the
// scope they are given.
package testonce
