package slogutil

import (
	"io"
	"log/slog"

	"ppde/internal/paths"
)

// LoggerFactory builds the logger for one CLI invocation. Console output goes
// to stderr at the CLI level; when a repository is known, records are also
// appended to <repoRoot>/.ppde/logs/ppde.log at the configured file level.
type LoggerFactory struct {
	repoRoot  string
	fileLevel string
	cliLevel  slog.Level
	console   io.Writer
	closers   []io.Closer
}

// NewLoggerFactory creates a factory. An empty repoRoot disables the file log;
// an empty fileLevel defaults to info.
func NewLoggerFactory(repoRoot, fileLevel string, cliLevel slog.Level, console io.Writer) *LoggerFactory {
	return &LoggerFactory{
		repoRoot:  repoRoot,
		fileLevel: fileLevel,
		cliLevel:  cliLevel,
		console:   console,
	}
}

// CommandLogger returns the tee logger. A file log that cannot be opened is
// dropped and the console logger is returned alone.
func (f *LoggerFactory) CommandLogger() *slog.Logger {
	var handlers []slog.Handler
	if f.console != nil {
		handlers = append(handlers, NewHandler(f.console, &slog.HandlerOptions{Level: f.cliLevel}))
	}

	if f.repoRoot != "" {
		level := slog.LevelInfo
		if f.fileLevel != "" {
			level = LevelFromString(f.fileLevel)
		}
		fileLogger, file, err := NewFileLogger(paths.GetLogPath(f.repoRoot), level)
		if err == nil {
			f.closers = append(f.closers, file)
			handlers = append(handlers, fileLogger.Handler())
		}
	}

	switch len(handlers) {
	case 0:
		return NewDiscardLogger()
	case 1:
		return slog.New(handlers[0])
	default:
		return slog.New(NewTeeHandler(handlers...))
	}
}

// Close closes all open log files.
func (f *LoggerFactory) Close() error {
	var firstErr error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.closers = nil
	return firstErr
}
