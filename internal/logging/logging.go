// Package logging configures the process logger from config and environment.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/pixil98/go-log"
	"github.com/sirupsen/logrus"
)

// Config selects the level and output format. Empty fields fall back to the
// LOG_LEVEL and LOG_FORMAT environment variables, then to info and text.
type Config struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// New builds a logger writing to out.
func New(cfg Config, out io.Writer) *logrus.Logger {
	return log.NewLogger(
		log.WithLevel(cfg.level()),
		withOutput(out),
		withFormatter(cfg.formatter()),
	)
}

// Configure applies cfg to an existing logger.
func Configure(l *logrus.Logger, cfg Config) {
	l.SetLevel(cfg.level())
	l.SetFormatter(cfg.formatter())
}

func withOutput(out io.Writer) log.LoggerOpt {
	return func(l *logrus.Logger) {
		l.SetOutput(out)
	}
}

func withFormatter(f logrus.Formatter) log.LoggerOpt {
	return func(l *logrus.Logger) {
		l.SetFormatter(f)
	}
}

func (c Config) level() logrus.Level {
	level := c.Level
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func (c Config) formatter() logrus.Formatter {
	format := c.Format
	if format == "" {
		format = os.Getenv("LOG_FORMAT")
	}
	if strings.EqualFold(format, "json") {
		return &logrus.JSONFormatter{}
	}
	return &logrus.TextFormatter{FullTimestamp: true}
}
