package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	format "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
)

// Options selects the level, format and optional file sink of the logger.
type Options struct {
	Level    string
	Format   string
	FilePath string
}

// ParseLevel maps the configuration vocabulary onto logrus levels.
func ParseLevel(level string) (logrus.Level, error) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return logrus.DebugLevel, nil
	case "", "INFO":
		return logrus.InfoLevel, nil
	case "WARN", "WARNING":
		return logrus.WarnLevel, nil
	case "ERROR":
		return logrus.ErrorLevel, nil
	}
	return logrus.InfoLevel, fmt.Errorf("unknown log level %q", level)
}

// New builds the application logger. The returned close function releases
// the log file when one was opened and is always safe to call.
func New(opts Options) (*logrus.Logger, func() error, error) {
	logger := logrus.New()
	noop := func() error { return nil }

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, noop, err
	}
	logger.SetLevel(level)

	var out io.Writer = os.Stderr
	closeFn := noop
	if opts.FilePath != "" {
		f, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open log file %s: %w", opts.FilePath, err)
		}
		out = io.MultiWriter(os.Stderr, f)
		closeFn = f.Close
	}
	logger.SetOutput(out)

	switch opts.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	default:
		logger.SetFormatter(&format.Formatter{
			HideKeys:        false,
			NoColors:        opts.FilePath != "",
			TimestampFormat: time.RFC3339,
			FieldsOrder:     []string{"component", "category"},
		})
	}

	return logger, closeFn, nil
}

// Discard returns a logger that drops everything, for library callers that
// pass no logger.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
