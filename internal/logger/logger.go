package logger

import (
	"sync"
)

// Log levels used across the application.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Output encodings.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options selects level and encoding. Zero values mean debug and console.
type Options struct {
	Level  string
	Format string
}

var (
	// globalLogger holds the singleton logger instance.
	globalLogger *Logger
	once         sync.Once
)

// Get returns a singleton console logger configured with the provided level.
// The first call initializes the logger; subsequent calls ignore the level
// and return the already initialized instance.
func Get(level string) *Logger {
	return Init(Options{Level: level})
}

// Init is Get with full options. Only the first of Get/Init configures the
// singleton; use SetLevel to change the level later.
func Init(opts Options) *Logger {
	once.Do(func() {
		globalLogger = newZapLogger(opts)
	})
	return globalLogger
}

// New builds a fresh logger, independent of the singleton.
func New(level string) *Logger {
	return newZapLogger(Options{Level: level})
}
