package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options tune the logger beyond the dev switch.
type Options struct {
	// Level is a zerolog level name. Empty means info, or debug when dev.
	Level string
	// Pretty selects console output without enabling debug.
	Pretty bool
	Out    io.Writer
}

func Setup(dev bool) zerolog.Logger {
	return SetupWithOptions(dev, Options{})
}

func SetupWithOptions(dev bool, opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}
	if opts.Level != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level)); err == nil && parsed != zerolog.NoLevel {
			level = parsed
		}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Caller().Logger()

	if dev || opts.Pretty {
		logger = logger.Output(zerolog.ConsoleWriter{Out: out, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Stack().Logger()
	}

	return logger
}
