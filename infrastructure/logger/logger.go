package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New creates a zerolog logger writing to stdout, as json or in a human
// readable console format, optionally sampling one message in five.
func New(level zerolog.Level, format string, sampler bool) zerolog.Logger {
	return NewWithWriter(os.Stdout, level, format, sampler)
}

func NewWithWriter(out io.Writer, level zerolog.Level, format string, sampler bool) zerolog.Logger {
	writer := out
	if format != "json" {
		writer = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Logger()

	if sampler {
		logger = logger.Sample(&zerolog.BasicSampler{N: 5})
	}
	return logger
}
