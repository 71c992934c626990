// Package logging routes the standard logger to stderr and a rotating file.
package logging

import (
	"io"
	"log"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where process logs go.
type Config struct {
	// Prefix is prepended to every line, e.g. "[DIGEST] ".
	Prefix string
	// FilePath enables a rotating log file when non-empty.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 5
	defaultMaxAgeDays = 28
)

// Setup configures the standard logger and returns a closer for the file sink.
func Setup(cfg Config) io.Closer {
	return SetupWithWriter(cfg, os.Stderr)
}

// SetupWithWriter is Setup with an explicit console writer.
func SetupWithWriter(cfg Config, console io.Writer) io.Closer {
	if console == nil {
		console = io.Discard
	}
	log.SetPrefix(cfg.Prefix)
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)

	path := strings.TrimSpace(cfg.FilePath)
	if path == "" {
		log.SetOutput(console)
		return nopCloser{}
	}
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    orDefault(cfg.MaxSizeMB, defaultMaxSizeMB),
		MaxBackups: orDefault(cfg.MaxBackups, defaultMaxBackups),
		MaxAge:     orDefault(cfg.MaxAgeDays, defaultMaxAgeDays),
	}
	log.SetOutput(io.MultiWriter(console, file))
	return file
}

func orDefault(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
