package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// InitLogger builds the process logger and installs it as slog's default.
func InitLogger(format, level string) *slog.Logger {
	return newLogger(os.Stdout, format, level)
}

func newLogger(w io.Writer, format, level string) *slog.Logger {
	var h slog.Handler
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	if strings.ToLower(format) == "text" {
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	} else {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}
