// Package logger provides structured logging for mandarin-llc
package logger

import (
	"io"
	"log/slog"
	"os"
)

var defaultLogger *slog.Logger

// LogLevel represents the logging level
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Config holds logger configuration
type Config struct {
	Level   LogLevel
	Format  string // "text" or "json"
	Output  io.Writer
	LogFile string
}

// DefaultConfig returns the default logger configuration: warnings and up, text, stderr
func DefaultConfig() Config {
	return Config{
		Level:  LevelWarn,
		Format: "text",
		Output: os.Stderr,
	}
}

// Init installs the package logger; it also becomes slog's default
func Init(cfg Config) error {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.LogFile != "" {
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		output = file
	}

	opts := &slog.HandlerOptions{Level: toSlogLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
	return nil
}

func toSlogLevel(level LogLevel) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Debug(msg, args...)
	}
}

// Info logs an info message
func Info(msg string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Info(msg, args...)
	}
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Warn(msg, args...)
	}
}

// Error logs an error message
func Error(msg string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Error(msg, args...)
	}
}

// LogPhase logs the start of a pipeline phase for one function
func LogPhase(phase, fn string) {
	Debug("Starting phase", "phase", phase, "function", fn)
}

// LogPhaseComplete logs the end of a pipeline phase with its instruction count
func LogPhaseComplete(phase, fn string, instrs int) {
	Debug("Completed phase", "phase", phase, "function", fn, "instructions", instrs)
}

// LogSpill logs a spilled virtual register
func LogSpill(fn string, vreg string, slot int) {
	Debug("Spilled register", "function", fn, "vreg", vreg, "slot", slot)
}

// LogFrame logs the finalized frame of a function
func LogFrame(fn string, size int64, hasFP bool) {
	Debug("Frame finalized", "function", fn, "size", size, "fp", hasFP)
}

// LogError logs a compilation failure
func LogError(phase, fn string, err error) {
	Error("Compilation error", "phase", phase, "function", fn, "error", err)
}

// LogLimitation logs a function the target cannot express. It is a
// property of the input, so it is a warning rather than an error.
func LogLimitation(phase, fn string, err error) {
	Warn("Target limitation", "phase", phase, "function", fn, "error", err)
}

// LogFunction logs the start of compiling one function
func LogFunction(fn string, number, blocks int) {
	Info("Compiling function", "function", fn, "number", number, "blocks", blocks)
}
