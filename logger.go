package testonce

import (
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	defaultLogger     *log.Logger
	defaultLoggerOnce sync.Once
)

// DefaultLogger returns the logger used by gates that have no Logger
// configured. It writes to standard output.
func DefaultLogger() *log.Logger {
	defaultLoggerOnce.Do(func() {
		defaultLogger = log.NewWithOptions(os.Stdout, log.Options{
			Prefix: "testonce",
			Level:  log.InfoLevel,
		})
	})
	return defaultLogger
}

func loggerOrDefault(l *log.Logger) *log.Logger {
	if l != nil {
		return l
	}
	return DefaultLogger()
}
