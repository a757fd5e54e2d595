package logger

import (
	"go.uber.org/zap/zapcore"
)

// Config controls the format and verbosity of the process logger.
type Config struct {
	// Format is one of auto, logfmt, json or console. auto picks console
	// for terminals and logfmt otherwise.
	Format string        `toml:"format" yaml:"format"`
	Level  zapcore.Level `toml:"level" yaml:"level"`
}

// NewConfig returns a new instance of Config with defaults.
func NewConfig() Config {
	return Config{
		Format: "auto",
		Level:  zapcore.InfoLevel,
	}
}
