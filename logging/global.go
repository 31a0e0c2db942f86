package logging

import (
	"log/slog"
	"os"
	"strings"
)

type LoggingService struct {
	Logger  *slog.Logger
	rotator *RotatingLogger
}

var DefaultLoggingService *LoggingService

// InitLogger initializes the global logger instance.
func InitLogger(logDir string, levelStr string) {
	logger, rotator := SetupLoggerWithRetention(logDir, 4, parseLogLevel(levelStr))
	DefaultLoggingService = &LoggingService{
		Logger:  logger,
		rotator: rotator,
	}
	slog.SetDefault(DefaultLoggingService.Logger)
}

// Shutdown closes the rotating file logger if one is active.
func Shutdown() {
	if DefaultLoggingService != nil && DefaultLoggingService.rotator != nil {
		if err := DefaultLoggingService.rotator.Close(); err != nil {
			slog.Warn("Failed to close rotating logger", "error", err)
		}
	}
}

// parseLogLevel maps a config string to a slog level, defaulting to info.
func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Package-level functions for direct access

func Info(msg string, args ...any) {
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		fallbackLogger(slog.LevelInfo).Info(msg, args...)
		return
	}
	DefaultLoggingService.Logger.Info(msg, args...)
}

func Error(msg string, args ...any) {
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		fallbackLogger(slog.LevelError).Error(msg, args...)
		return
	}
	DefaultLoggingService.Logger.Error(msg, args...)
}

func Warn(msg string, args ...any) {
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		fallbackLogger(slog.LevelWarn).Warn(msg, args...)
		return
	}
	DefaultLoggingService.Logger.Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		fallbackLogger(slog.LevelDebug).Debug(msg, args...)
		return
	}
	DefaultLoggingService.Logger.Debug(msg, args...)
}

// fallbackLogger covers calls made before InitLogger runs.
func fallbackLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}
