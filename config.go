package testonce

import (
	"context"
	"fmt"
	"regexp"

	"github.com/charmbracelet/log"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// FailurePolicy decides what happens to a gate when its setup action fails.
type FailurePolicy int

const (
	// PoisonOnFailure keeps the gate started after a failed setup. Every
	// later caller receives the original setup error and setup never reruns.
	PoisonOnFailure FailurePolicy = iota

	// ResetOnFailure clears the started flag after a failed setup so that the
	// next caller runs setup again.
	ResetOnFailure
)

func (p FailurePolicy) String() string {
	switch p {
	case PoisonOnFailure:
		return "poison"
	case ResetOnFailure:
		return "reset"
	default:
		return fmt.Sprintf("FailurePolicy(%d)", int(p))
	}
}

// Config holds the configuration for creating a run-once gate.
type Config struct {
	// Name identifies the gate in log lines and in the shared scope.
	// Gates registered into the same scope must have distinct names; a
	// second gate with a taken name fails to start with ErrAlreadyRegistered.
	Name string

	// Setup is called once, by the first caller of EnsureStarted.
	// It may be nil when only the lifecycle log lines are wanted.
	//
	// The gate holds its lock while Setup runs and the lock is not
	// reentrant. Starting the same gate from Setup with the context Setup
	// received fails with ErrReentrantStart; starting it with an unrelated
	// context, for example through BeforeAll, deadlocks.
	Setup func(ctx context.Context) error

	// Teardown is called once, when the scope holding the gate's hook closes.
	Teardown func(ctx context.Context) error

	// OnSetupFailure decides whether a failed setup poisons the gate or
	// allows a retry. Defaults to PoisonOnFailure.
	OnSetupFailure FailurePolicy

	// Logger receives the first-start and teardown lines. Defaults to a
	// logger writing to standard output.
	Logger *log.Logger
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("Name is required")
	}

	if !nameRegex.MatchString(c.Name) {
		return fmt.Errorf("Name must contain only alphanumeric characters, dots, dashes and underscores, got %q", c.Name)
	}

	if c.OnSetupFailure != PoisonOnFailure && c.OnSetupFailure != ResetOnFailure {
		return fmt.Errorf("OnSetupFailure must be PoisonOnFailure or ResetOnFailure, got %s", c.OnSetupFailure)
	}

	return nil
}

// storeKey is the key under which the gate's hook is stored.
func (c *Config) storeKey() string {
	return "testonce:" + c.Name
}
