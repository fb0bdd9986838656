// Package log wraps github.com/rs/zerolog with a package-level Logger, an
// Init(Config), and a family of With* helpers that attach scoped fields
// for a child logger.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the global logger instance, configured by Init.
var Logger zerolog.Logger

// Level mirrors the original Python node's LOG_LEVEL env var values.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// FileConfig enables the rotating-file sink the original node used
// (logging.handlers.RotatingFileHandler, 2MB/5 backups), supplementing the
// default stdout/JSON-only output.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
}

// Config holds logging configuration.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
	File       *FileConfig
}

// Init initializes the global logger.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.File != nil && cfg.File.Path != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    maxOr(cfg.File.MaxSizeMB, 2),
			MaxBackups: maxOr(cfg.File.MaxBackups, 5),
		}
		output = io.MultiWriter(output, fileWriter)
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

func maxOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// WithComponent creates a child logger tagged with the given component
// name.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithNetwork creates a child logger tagged with a network name.
func WithNetwork(network string) zerolog.Logger {
	return Logger.With().Str("network", network).Logger()
}

// WithOrder creates a child logger tagged with an order id.
func WithOrder(orderID uint64) zerolog.Logger {
	return Logger.With().Uint64("order_id", orderID).Logger()
}

// WithDPRequest creates a child logger tagged with a DP request id.
func WithDPRequest(id uint64) zerolog.Logger {
	return Logger.With().Uint64("dp_request_id", id).Logger()
}

func Info(msg string)  { Logger.Info().Msg(msg) }
func Debug(msg string) { Logger.Debug().Msg(msg) }
func Warn(msg string)  { Logger.Warn().Msg(msg) }
func Error(msg string) { Logger.Error().Msg(msg) }

func Errorf(format string, err error) {
	Logger.Error().Err(err).Msg(format)
}

func Fatal(msg string) { Logger.Fatal().Msg(msg) }
