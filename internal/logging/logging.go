package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level mirrors zerolog's numbering so conversions are a cast.
type Level int8

const (
	TraceLevel Level = -1
	DebugLevel Level = 0
	InfoLevel  Level = 1
	WarnLevel  Level = 2
	ErrorLevel Level = 3
	Disabled   Level = 7
)

type Config struct {
	Level     Level
	Timestamp bool
	NoColor   bool
	Out       io.Writer
}

func DefaultConfig() Config {
	return Config{
		Level:     InfoLevel,
		Timestamp: true,
		NoColor:   false,
		Out:       os.Stderr,
	}
}

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	Level(zerolog.InfoLevel).With().Timestamp().Logger()

// Init installs the package logger. Callers normally go through
// Configure and its profiles instead of calling this directly.
func Init(cfg Config) {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	writer := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    cfg.NoColor,
	}
	lg := zerolog.New(writer).Level(zerolog.Level(cfg.Level))
	if cfg.Timestamp {
		lg = lg.With().Timestamp().Logger()
	}
	logger = lg
	log.Logger = lg
}

func Tracef(format string, args ...any) {
	logger.Trace().Msgf(format, args...)
}

func Debugf(format string, args ...any) {
	logger.Debug().Msgf(format, args...)
}

func Infof(format string, args ...any) {
	logger.Info().Msgf(format, args...)
}

func Warnf(format string, args ...any) {
	logger.Warn().Msgf(format, args...)
}

func Errf(format string, args ...any) {
	logger.Error().Msgf(format, args...)
}
