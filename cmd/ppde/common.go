package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/fatih/color"

	"ppde/internal/config"
	"ppde/internal/errors"
	"ppde/internal/repostate"
	"ppde/internal/slogutil"
)

// Exit statuses.
const (
	exitSetup    = 1
	exitInternal = 2
)

// session carries what every repository command needs.
type session struct {
	root    string
	cfg     *config.Config
	logger  *slog.Logger
	factory *slogutil.LoggerFactory
}

func (s *session) Close() {
	if s.factory != nil {
		_ = s.factory.Close()
	}
}

// repoArg returns the absolute form of the optional [path] argument.
func repoArg(args []string) (string, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", errors.RepositoryError(root, err)
	}
	return abs, nil
}

// openSession loads configuration and builds the command logger. The file
// log is only written inside git work trees so that a mistyped path leaves
// nothing behind.
func openSession(args []string) (*session, error) {
	root, err := repoArg(args)
	if err != nil {
		return nil, err
	}

	logRoot := ""
	if repostate.IsGitRepository(root) {
		// History paths are relative to the top level, so a subdirectory
		// argument analyzes its whole work tree.
		if top, err := repostate.GetRepoRoot(root); err == nil {
			root = filepath.FromSlash(top)
		}
		logRoot = root
	}
	cfg, err := config.LoadConfig(root)
	if err != nil {
		return nil, err
	}

	level := slogutil.LevelFromVerbosity(verbosity, quiet)
	if verbosity == 0 && !quiet {
		level = slogutil.LevelFromString(cfg.Logging.Level)
	}

	factory := slogutil.NewLoggerFactory(logRoot, cfg.Logging.FileLevel, level, os.Stderr)
	return &session{
		root:    root,
		cfg:     cfg,
		logger:  factory.CommandLogger(),
		factory: factory,
	}, nil
}

// commandContext is cancelled on interrupt.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, errors.InternalError) {
		return exitInternal
	}
	return exitSetup
}

// printError writes err and any suggested fixes.
func printError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	fmt.Fprintf(w, "%s %v\n", red("Error:"), err)

	var pe *errors.PpdeError
	if !stderrors.As(err, &pe) || len(pe.SuggestedFixes) == 0 {
		return
	}
	gray := color.New(color.FgHiBlack).SprintFunc()
	for _, fix := range pe.SuggestedFixes {
		switch {
		case fix.Command != "":
			fmt.Fprintf(w, "  %s %s %s\n", gray("try:"), fix.Command, gray("# "+fix.Description))
		case fix.Description != "":
			fmt.Fprintf(w, "  %s %s\n", gray("hint:"), fix.Description)
		}
	}
}
