package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tubecraft/internal/services"
)

func TestConsoleHandlerRendersSubjectAndAttrs(t *testing.T) {
	var sb strings.Builder
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&sb, lvl))

	logger.Info("stage started",
		String(FieldComponent, "scheduler"),
		String(FieldEpisodeID, "0f8fad5b-d9cb-469f-a165-70867728950e"),
		String(FieldStage, "generating_script"),
		Int(FieldAttempt, 1),
	)

	out := sb.String()
	if !strings.Contains(out, "[scheduler]") {
		t.Fatalf("missing component in %q", out)
	}
	if !strings.Contains(out, "Episode 0f8fad5b (generating_script)") {
		t.Fatalf("missing subject in %q", out)
	}
	if !strings.Contains(out, "attempt: 1") {
		t.Fatalf("missing attempt attr in %q", out)
	}
}

func TestConsoleHandlerDedupesRepeatedKeys(t *testing.T) {
	var sb strings.Builder
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&sb, lvl))

	logger.With(String("voice", "first")).Info("synth", String("voice", "second"))

	out := sb.String()
	if strings.Contains(out, "first") {
		t.Fatalf("expected later attr to win, got %q", out)
	}
	if !strings.Contains(out, "voice: second") {
		t.Fatalf("missing deduped attr in %q", out)
	}
}

func TestWithContextLiftsIdentifiers(t *testing.T) {
	var sb strings.Builder
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&sb, lvl))

	ctx := services.WithEpisodeID(context.Background(), "ep-7")
	ctx = services.WithStage(ctx, "generating_video")
	WithContext(ctx, logger).Info("assembling")

	out := sb.String()
	if !strings.Contains(out, "Episode ep-7 (generating_video)") {
		t.Fatalf("context fields not applied: %q", out)
	}
}

func TestNewFromConfigNilUsesDefaults(t *testing.T) {
	logger, err := NewFromConfig(nil)
	if err != nil {
		t.Fatalf("NewFromConfig(nil) errored: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger")
	}
}

func TestOpenWritersCreatesFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tubecraft.log")
	writer, err := openWriters([]string{"stdout", path})
	if err != nil {
		t.Fatalf("openWriters errored: %v", err)
	}
	if writer == nil {
		t.Fatal("expected writer")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected log file to exist: %v", err)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
