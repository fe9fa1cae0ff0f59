package testonce

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/charmbracelet/log"
)

// Gate runs a setup action at most once across all of its callers and
// registers a hook that runs the matching teardown when the scope closes.
//
// A Gate is usually declared as a package-level variable so that its state
// lives as long as the test binary.
type Gate struct {
	cfg    *Config
	logger *log.Logger

	mu       sync.Mutex // guards all fields below
	started  bool
	setupErr error
	hook     *Hook
	scope    *Store // root scope the hook is registered in
}

// ErrReentrantStart is returned when a gate is started from within its own
// setup action.
var ErrReentrantStart = errors.New("gate started from its own setup")

// setupKey marks the context handed to a gate's setup action.
type setupKey struct{ g *Gate }

// PanicError is the error recorded when the setup action panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("setup panicked: %v", e.Value)
}

// New creates a new gate.
func New(cfg *Config) (*Gate, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Gate{
		cfg:    cfg,
		logger: loggerOrDefault(cfg.Logger),
	}, nil
}

// MustNew is like New but panics on error.
func MustNew(cfg *Config) *Gate {
	g, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return g
}

// Name returns the name of the gate.
func (g *Gate) Name() string {
	return g.cfg.Name
}

// Started reports whether the gate has been started.
func (g *Gate) Started() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.started
}

// Hook returns the registered teardown hook, or nil if there is none.
func (g *Gate) Hook() *Hook {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hook
}

// EnsureStarted runs the setup action if no caller has run it yet.
//
// The first caller logs the first-start line, registers the teardown hook
// into the root of scope and runs setup. Concurrent callers block until it
// has finished. Later callers return immediately with the outcome of setup:
// nil, or the setup error if the gate was poisoned.
//
// A nil scope means the process-wide root scope.
func (g *Gate) EnsureStarted(ctx context.Context, scope *Store) error {
	if scope == nil {
		scope = Root()
	}
	if ctx.Value(setupKey{g}) != nil {
		return fmt.Errorf("cannot start %s: %w", g.cfg.Name, ErrReentrantStart)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started {
		return g.setupErr
	}
	g.started = true

	g.logger.Info("[pre-condition] running setup", "gate", g.cfg.Name)

	root := scope.Root()
	hook := newHook(g.cfg.Name, g.cfg.Teardown, g.logger)
	if err := hook.register(root, g.cfg.storeKey()); err != nil {
		return g.failLocked(err)
	}
	g.hook = hook
	g.scope = root

	return g.runSetupLocked(ctx)
}

func (g *Gate) runSetupLocked(ctx context.Context) error {
	if g.cfg.Setup == nil {
		return nil
	}

	completed := false
	defer func() {
		if completed {
			return
		}
		r := recover()
		if r == nil {
			// runtime.Goexit, e.g. t.FailNow inside setup.
			_ = g.failLocked(fmt.Errorf("setup of %s exited without returning", g.cfg.Name))
			return
		}
		_ = g.failLocked(&PanicError{Value: r, Stack: debug.Stack()})
		panic(r)
	}()

	err := g.cfg.Setup(context.WithValue(ctx, setupKey{g}, struct{}{}))
	completed = true
	if err != nil {
		return g.failLocked(fmt.Errorf("setup of %s failed: %w", g.cfg.Name, err))
	}
	return nil
}

// failLocked applies the failure policy and returns err.
func (g *Gate) failLocked(err error) error {
	switch g.cfg.OnSetupFailure {
	case ResetOnFailure:
		g.logger.Warn("setup failed, gate reset", "gate", g.cfg.Name, "err", err)
		if g.hook != nil {
			g.hook.unregister(g.scope, g.cfg.storeKey())
		}
		g.started = false
		g.hook = nil
		g.scope = nil
		g.setupErr = nil
	default:
		g.logger.Error("setup failed, gate poisoned", "gate", g.cfg.Name, "err", err)
		g.setupErr = err
	}
	return err
}
