package testonce

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// ErrAlreadyRegistered is returned when another gate with the same name has
// already registered its teardown hook in the scope.
var ErrAlreadyRegistered = errors.New("gate already registered")

// HookState is the lifecycle state of a teardown hook.
type HookState int

const (
	HookUnregistered HookState = iota
	HookRegistered
	HookReleased
)

func (s HookState) String() string {
	switch s {
	case HookUnregistered:
		return "unregistered"
	case HookRegistered:
		return "registered"
	case HookReleased:
		return "released"
	default:
		return fmt.Sprintf("HookState(%d)", int(s))
	}
}

// Hook runs a gate's teardown when the scope it is registered in closes.
// It releases at most once, whatever the number of Close calls.
type Hook struct {
	name     string
	teardown func(ctx context.Context) error
	logger   *log.Logger

	mu    sync.Mutex
	state HookState
}

func newHook(name string, teardown func(ctx context.Context) error, logger *log.Logger) *Hook {
	return &Hook{
		name:     name,
		teardown: teardown,
		logger:   logger,
		state:    HookUnregistered,
	}
}

// register moves the hook into the registered state and stores it in scope.
func (h *Hook) register(scope *Store, key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != HookUnregistered {
		return fmt.Errorf("hook %s is already %s", h.name, h.state)
	}
	_, stored, err := scope.PutIfAbsent(key, h)
	if err != nil {
		return fmt.Errorf("failed to register teardown hook: %w", err)
	}
	if !stored {
		return fmt.Errorf("gate %s already registered in %s: %w", h.name, scope.Name(), ErrAlreadyRegistered)
	}
	h.state = HookRegistered
	return nil
}

// unregister removes a hook that was registered but never released.
func (h *Hook) unregister(scope *Store, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != HookRegistered {
		return
	}
	scope.removeIfSame(key, h)
	h.state = HookUnregistered
}

// State returns the current lifecycle state of the hook.
func (h *Hook) State() HookState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Close runs the teardown if the hook is registered and has not been
// released yet. Later calls return nil without doing anything.
func (h *Hook) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.state != HookRegistered {
		h.mu.Unlock()
		return nil
	}
	h.state = HookReleased
	h.mu.Unlock()

	h.logger.Info("[post-condition] running teardown", "gate", h.name)

	if h.teardown == nil {
		return nil
	}
	if err := h.teardown(ctx); err != nil {
		return fmt.Errorf("teardown of %s failed: %w", h.name, err)
	}
	return nil
}

// Release is an alias for Close.
func (h *Hook) Release(ctx context.Context) error {
	return h.Close(ctx)
}
