package spqrlog

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var Zero = NewZeroLogger("", "info", true)

// NewZeroLogger creates a zerolog logger writing to filepath (stdout when
// empty). Pretty selects the human readable console writer, otherwise
// records are emitted as JSON.
func NewZeroLogger(filepath string, level string, pretty bool) *zerolog.Logger {
	writer, err := newWriter(filepath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAILED TO INITIALIZE LOGGER: %v\n", err)
		writer = os.Stdout
	}

	var output io.Writer = writer
	if pretty {
		output = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339}
	}
	logger := zerolog.New(output).Level(parseLevel(level)).With().Timestamp().Logger()

	return &logger
}

// ReloadLogger recreates Zero with a new destination keeping its level.
func ReloadLogger(filepath string, pretty bool) {
	if filepath == "" {
		return // this means os.Stdout, so no need to open new file
	}
	logger := NewZeroLogger(filepath, "", pretty).Level(Zero.GetLevel())
	Zero = &logger
}

func UpdateZeroLogLevel(logLevel string) error {
	if _, ok := levels[logLevel]; !ok && logLevel != "" {
		return fmt.Errorf("no matching log level found %v", logLevel)
	}
	zeroLogger := Zero.Level(parseLevel(logLevel))
	Zero = &zeroLogger
	return nil
}

var levels = map[string]zerolog.Level{
	"trace":    zerolog.TraceLevel,
	"debug":    zerolog.DebugLevel,
	"info":     zerolog.InfoLevel,
	"warning":  zerolog.WarnLevel,
	"error":    zerolog.ErrorLevel,
	"fatal":    zerolog.FatalLevel,
	"disabled": zerolog.Disabled,
}

func parseLevel(level string) zerolog.Level {
	if l, ok := levels[level]; ok {
		return l
	}
	return zerolog.InfoLevel
}
