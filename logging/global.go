// Package logging configures structured logging for the reconstruction
// service: slog to the console in text form and to a rotating file in JSON.
package logging

import (
	"log/slog"
	"os"
)

// Service wraps the configured logger so packages can log through a single
// shared instance.
type Service struct {
	Logger *slog.Logger
}

// Default is the global logging service, set by Init.
var Default *Service

// Init initializes the global logger, writing to the console and to rotating
// files under logDir.
func Init(logDir string, level slog.Level, retentionWeeks int, maxFileSize int64) {
	Default = &Service{
		Logger: Setup(logDir, level, retentionWeeks, maxFileSize),
	}
	slog.SetDefault(Default.Logger)
}

// ActiveLogger returns the configured logger, or the process default before
// Init has run.
func ActiveLogger() *slog.Logger {
	if Default != nil && Default.Logger != nil {
		return Default.Logger
	}
	return slog.Default()
}

func fallback(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Package-level helpers so callers do not need to thread a logger around.
// They fall back to a console logger before Init has run (early startup,
// tests).

func Info(msg string, args ...any) {
	if Default == nil || Default.Logger == nil {
		fallback(slog.LevelInfo).Info(msg, args...)
		return
	}
	Default.Logger.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	if Default == nil || Default.Logger == nil {
		fallback(slog.LevelWarn).Warn(msg, args...)
		return
	}
	Default.Logger.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	if Default == nil || Default.Logger == nil {
		fallback(slog.LevelError).Error(msg, args...)
		return
	}
	Default.Logger.Error(msg, args...)
}

func Debug(msg string, args ...any) {
	if Default == nil || Default.Logger == nil {
		fallback(slog.LevelDebug).Debug(msg, args...)
		return
	}
	Default.Logger.Debug(msg, args...)
}
