package testonce

import (
	"context"

	"github.com/charmbracelet/log"
)

func NewHook(name string, teardown func(ctx context.Context) error, logger *log.Logger) *Hook {
	return newHook(name, teardown, logger)
}

func (h *Hook) Register(scope *Store, key string) error {
	return h.register(scope, key)
}

func (g *Gate) Config() *Config {
	return g.cfg
}
