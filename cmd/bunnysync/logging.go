package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/lostsignal/bunnysync/internal/utils"
	"github.com/mattn/go-isatty"
)

const logTimeFormat = "2006-01-02T15:04:05.000Z07:00"

func newStdoutHandler(w io.Writer, verbose bool) slog.Handler {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
	}

	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: logTimeFormat,
		NoColor:    noColor,
	})
}

// setupLogger sends logs to stdout and to a fresh log file for this run.
// The returned func restores the previous default logger and closes the file.
func setupLogger(logFile string, stdout io.Writer, verbose bool) (func(), error) {
	if err := utils.EnsureParent(logFile); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logInterceptor := utils.NewLogInterceptor(file)
	fileHandler := slog.NewTextHandler(logInterceptor, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// Do not include time as it is added by the log interceptor.
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	prev := slog.Default()
	slog.SetDefault(slog.New(utils.NewMultiLogHandler(newStdoutHandler(stdout, verbose), fileHandler)))

	return func() {
		slog.SetDefault(prev)
		logInterceptor.Close()
		file.Close()
	}, nil
}
