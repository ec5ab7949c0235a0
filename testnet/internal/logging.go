package internal

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// ConfigureLogging applies level, format and optional log file to logger.
// The returned closer releases the log file and is never nil.
func ConfigureLogging(logger *logrus.Logger, level, format, file string) (io.Closer, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nopCloser{}, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger.SetLevel(lvl)

	switch format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nopCloser{}, fmt.Errorf("invalid log format %q", format)
	}

	if file == "" {
		return nopCloser{}, nil
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nopCloser{}, fmt.Errorf("failed to open log file: %w", err)
	}
	logger.SetOutput(f)
	return f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
