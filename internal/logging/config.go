package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Config holds the configuration for the logger.
type Config struct {
	// Level is the minimum log level to emit (DEBUG, INFO, WARN, ERROR, FATAL)
	Level string
	// Format is the output format; only "json" is currently supported
	Format string
	// Output is the destination: "stdout", "stderr", or a file path
	Output string
}

// NewLogger builds a Logger from cfg. A nil cfg yields an info-level JSON
// logger on stderr.
func NewLogger(cfg *Config) (*Logger, error) {
	level := InfoLevel
	output := io.Writer(os.Stderr)

	if cfg != nil {
		level = parseLevel(cfg.Level)
		w, err := openOutput(cfg.Output)
		if err != nil {
			return nil, fmt.Errorf("logging output %q: %w", cfg.Output, err)
		}
		output = w
	}

	return New(level, output), nil
}

func parseLevel(level string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return DebugLevel
	case "WARN":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	case "FATAL":
		return FatalLevel
	default:
		return InfoLevel
	}
}

func openOutput(output string) (io.Writer, error) {
	switch output {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	default:
		return os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	}
}
