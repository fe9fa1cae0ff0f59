package testonce

import (
	"context"
	"testing"
)

// Run runs the tests of m and then closes the process-wide root scope,
// which releases every teardown hook registered by a gate. Use it from
// TestMain:
//
//	func TestMain(m *testing.M) {
//		os.Exit(testonce.Run(m))
//	}
//
// A teardown error is logged and makes a passing run fail.
func Run(m *testing.M) int {
	code := m.Run()

	if err := Root().Close(context.Background()); err != nil {
		DefaultLogger().Error("failed to close root scope", "err", err)
		if code == 0 {
			code = 1
		}
	}

	return code
}

// BeforeAll starts the gate from a test, registering the teardown hook into
// the process-wide root scope. The test fails if setup fails.
func (g *Gate) BeforeAll(t testing.TB) {
	t.Helper()

	if err := g.EnsureStarted(context.Background(), Root()); err != nil {
		t.Fatalf("failed to start %s: %v", g.cfg.Name, err)
	}
}
