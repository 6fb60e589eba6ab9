// Package logger собирает *slog.Logger для клиента и сервера:
// цветной вывод в консоль и JSON-файл с ротацией.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config параметры логирования
type Config struct {
	Console    io.Writer // Console консольный вывод, по умолчанию os.Stderr
	Level      string    // Level debug/info/warn/error
	File       string    // File путь к JSON-логу, пусто - без файла
	MaxSizeMB  int       // MaxSizeMB размер файла до ротации
	MaxBackups int       // MaxBackups число хранимых старых файлов
	Quiet      bool      // Quiet отключает консольный вывод
}

// New создает логгер и функцию закрытия файла лога
func New(cfg Config) (*slog.Logger, func() error) {
	level := ParseLevel(cfg.Level)
	var handlers []slog.Handler
	closer := func() error { return nil }

	if !cfg.Quiet {
		console := cfg.Console
		if console == nil {
			console = os.Stderr
		}
		handlers = append(handlers, tint.NewHandler(console, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05.000",
			NoColor:    !isTerminal(console),
		}))
	}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    valueOr(cfg.MaxSizeMB, 10),
			MaxBackups: valueOr(cfg.MaxBackups, 3),
			Compress:   true,
		}
		handlers = append(handlers, slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: level}))
		closer = rotator.Close
	}

	switch len(handlers) {
	case 0:
		return slog.New(slog.NewTextHandler(io.Discard, nil)), closer
	case 1:
		return slog.New(handlers[0]), closer
	}
	return slog.New(NewMultiHandler(handlers...)), closer
}

// ParseLevel converts a level name to slog.Level, defaulting to info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Discard returns a logger that drops every record
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func valueOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
