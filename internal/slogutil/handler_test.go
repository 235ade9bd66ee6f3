package slogutil

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"testing"

	"ppde/internal/paths"
)

func TestHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.Info("Test message", "key", "value", "count", 42)

	output := buf.String()

	// Check format: TIMESTAMP [level] Message | key=value
	if !strings.Contains(output, "[info]") {
		t.Errorf("expected [info] in output, got: %s", output)
	}
	if !strings.Contains(output, "Test message") {
		t.Errorf("expected 'Test message' in output, got: %s", output)
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("expected 'key=value' in output, got: %s", output)
	}
	if !strings.Contains(output, "count=42") {
		t.Errorf("expected 'count=42' in output, got: %s", output)
	}
	if !strings.Contains(output, " | ") {
		t.Errorf("expected ' | ' separator in output, got: %s", output)
	}
}

func TestHandler_Levels(t *testing.T) {
	tests := []struct {
		level    slog.Level
		logFunc  func(*slog.Logger)
		expected string
	}{
		{slog.LevelDebug, func(l *slog.Logger) { l.Debug("debug") }, "[debug]"},
		{slog.LevelInfo, func(l *slog.Logger) { l.Info("info") }, "[info]"},
		{slog.LevelWarn, func(l *slog.Logger) { l.Warn("warn") }, "[warn]"},
		{slog.LevelError, func(l *slog.Logger) { l.Error("error") }, "[error]"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&buf, slog.LevelDebug) // Enable all levels
			tt.logFunc(logger)

			output := buf.String()
			if !strings.Contains(output, tt.expected) {
				t.Errorf("expected %s in output, got: %s", tt.expected, output)
			}
		})
	}
}

func TestHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()

	if strings.Contains(output, "debug message") {
		t.Error("debug message should be filtered")
	}
	if strings.Contains(output, "info message") {
		t.Error("info message should be filtered")
	}
	if !strings.Contains(output, "warn message") {
		t.Error("warn message should be included")
	}
	if !strings.Contains(output, "error message") {
		t.Error("error message should be included")
	}
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo}, // default
		{"", slog.LevelInfo},        // default
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := LevelFromString(tt.input)
			if got != tt.expected {
				t.Errorf("LevelFromString(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLevelFromVerbosity(t *testing.T) {
	tests := []struct {
		verbosity int
		quiet     bool
		expected  slog.Level
	}{
		{0, false, slog.LevelWarn},
		{1, false, slog.LevelInfo},
		{2, false, slog.LevelDebug},
		{3, false, slog.LevelDebug},
		{0, true, slog.Level(100)}, // silent
		{5, true, slog.Level(100)}, // quiet overrides verbosity
	}

	for _, tt := range tests {
		got := LevelFromVerbosity(tt.verbosity, tt.quiet)
		if got != tt.expected {
			t.Errorf("LevelFromVerbosity(%d, %v) = %v, want %v",
				tt.verbosity, tt.quiet, got, tt.expected)
		}
	}
}

func TestNewDiscardLogger(t *testing.T) {
	logger := NewDiscardLogger()

	// Should not panic
	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")
}

func TestTeeHandler(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h1 := NewHandler(&buf1, &slog.HandlerOptions{Level: slog.LevelInfo})
	h2 := NewHandler(&buf2, &slog.HandlerOptions{Level: slog.LevelWarn})

	logger := slog.New(NewTeeHandler(h1, h2))
	logger.Info("info message")
	logger.Warn("warn message")

	// buf1 should have both (info level)
	if !strings.Contains(buf1.String(), "info message") {
		t.Error("buf1 should contain info message")
	}
	if !strings.Contains(buf1.String(), "warn message") {
		t.Error("buf1 should contain warn message")
	}

	// buf2 should only have warn (warn level)
	if strings.Contains(buf2.String(), "info message") {
		t.Error("buf2 should not contain info message")
	}
	if !strings.Contains(buf2.String(), "warn message") {
		t.Error("buf2 should contain warn message")
	}
}

func TestHandler_GroupsAndFloats(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo).WithGroup("gate")

	logger.Info("admitted", "share", 0.8500001)

	output := buf.String()
	if !strings.Contains(output, "gate.share=0.85") {
		t.Errorf("expected grouped, rounded attribute, got: %s", output)
	}
}

func TestHandler_AttrRendering(t *testing.T) {
	tests := []struct {
		name string
		log  func(*slog.Logger)
		want string
	}{
		{
			"bound attrs precede record attrs",
			func(l *slog.Logger) { l.With("repo", "svc").Info("m", "files", 3) },
			"| repo=svc files=3",
		},
		{
			"group prefixes later keys only",
			func(l *slog.Logger) { l.With("run", "a1").WithGroup("gate").Info("m", "n", 20) },
			"| run=a1 gate.n=20",
		},
		{
			"nested groups",
			func(l *slog.Logger) { l.WithGroup("a").WithGroup("b").Info("m", "k", 1) },
			"| a.b.k=1",
		},
		{
			"group values flatten",
			func(l *slog.Logger) { l.Info("m", slog.Group("stats", "files", 2, "sites", 9)) },
			"| stats.files=2 stats.sites=9",
		},
		{
			"values with spaces are quoted",
			func(l *slog.Logger) { l.Warn("m", "error", "cannot open snapshot a b.json") },
			`| error="cannot open snapshot a b.json"`,
		},
		{
			"empty string is quoted",
			func(l *slog.Logger) { l.Info("m", "author", "") },
			`| author=""`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewLogger(&buf, slog.LevelDebug))
			if !strings.HasSuffix(strings.TrimSuffix(buf.String(), "\n"), tt.want) {
				t.Errorf("got %q, want suffix %q", buf.String(), tt.want)
			}
		})
	}
}

func TestHandler_DropsEmptyAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)
	logger.Info("bare", slog.Group("empty"), slog.Any("", 1))
	if strings.Contains(buf.String(), "|") {
		t.Errorf("record without usable attrs should have no separator: %q", buf.String())
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) == nil {
		t.Fatal("OrDiscard(nil) returned nil")
	}
	l := NewDiscardLogger()
	if OrDiscard(l) != l {
		t.Error("OrDiscard should return a non-nil logger unchanged")
	}
}

func TestLoggerFactory_WritesFileLog(t *testing.T) {
	root := t.TempDir()
	var console bytes.Buffer

	f := NewLoggerFactory(root, "debug", slog.LevelWarn, &console)
	logger := f.CommandLogger()
	logger.Info("scan started", "files", 3)
	logger.Warn("store unavailable")
	if err := f.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if strings.Contains(console.String(), "scan started") {
		t.Error("console should filter info records at warn level")
	}
	if !strings.Contains(console.String(), "store unavailable") {
		t.Error("console should contain the warning")
	}

	data, err := os.ReadFile(paths.GetLogPath(root))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "scan started | files=3") {
		t.Errorf("file log missing info record: %s", data)
	}
}

func TestLoggerFactory_NoRepo(t *testing.T) {
	var console bytes.Buffer
	f := NewLoggerFactory("", "", slog.LevelInfo, &console)
	f.CommandLogger().Info("hello")
	if !strings.Contains(console.String(), "hello") {
		t.Errorf("expected console output, got %q", console.String())
	}
	if err := f.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
