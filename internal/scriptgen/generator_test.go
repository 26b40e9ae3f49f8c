package scriptgen_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tubecraft/internal/episode"
	"tubecraft/internal/logging"
	"tubecraft/internal/scriptgen"
	"tubecraft/internal/services"
	"tubecraft/internal/testsupport"
)

type fakeScriptClient struct {
	script    *episode.Script
	err       error
	healthErr error
	lastUser  string
	lastSys   string
}

func (f *fakeScriptClient) GenerateJSON(_ context.Context, systemPrompt, userPrompt string, target any) error {
	f.lastSys = systemPrompt
	f.lastUser = userPrompt
	if f.err != nil {
		return f.err
	}
	if out, ok := target.(*episode.Script); ok && f.script != nil {
		*out = *f.script
	}
	return nil
}

func (f *fakeScriptClient) HealthCheck(context.Context) error { return f.healthErr }

func validScript() *episode.Script {
	return &episode.Script{
		Title:                "Sourdough Basics",
		TotalDurationSeconds: 90,
		Sections: []episode.ScriptSection{
			{ID: "s1", Type: episode.SectionIntro, Content: "Welcome.", DurationSeconds: 15},
			{ID: "s2", Type: episode.SectionMain, Content: "Flour and water.", DurationSeconds: 60},
			{ID: "s3", Type: episode.SectionOutro, Content: "Goodbye.", DurationSeconds: 15},
		},
	}
}

func TestExecuteAttachesScript(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := &fakeScriptClient{script: validScript()}
	gen := scriptgen.NewGenerator(cfg, logging.NewNop(), client, nil)

	ep := &episode.Episode{ID: "ep-1", Topic: "sourdough", ContentStyle: episode.StyleEducational, TargetDurationMinutes: 10}
	if err := gen.Prepare(context.Background(), ep); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := gen.Execute(context.Background(), ep); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if ep.ScriptJSON == "" {
		t.Fatal("expected script json on episode")
	}
	parsed, err := episode.ParseScript(ep.ScriptJSON)
	if err != nil {
		t.Fatalf("stored script invalid: %v", err)
	}
	if parsed.Title != "Sourdough Basics" {
		t.Fatalf("unexpected script title %q", parsed.Title)
	}
	if ep.Title != "Sourdough Basics" {
		t.Fatalf("expected title backfill, got %q", ep.Title)
	}
	if !strings.Contains(client.lastUser, "sourdough") {
		t.Fatalf("topic missing from prompt: %q", client.lastUser)
	}
	if !strings.Contains(client.lastUser, "10 minutes") {
		t.Fatalf("target duration missing from prompt: %q", client.lastUser)
	}

	scriptFile := filepath.Join(cfg.ScriptOutputDir(), "ep-1.json")
	if _, err := os.Stat(scriptFile); err != nil {
		t.Fatalf("expected script document on disk: %v", err)
	}
}

func TestPrepareRejectsEmptyEpisode(t *testing.T) {
	gen := scriptgen.NewGenerator(testsupport.NewConfig(t), logging.NewNop(), &fakeScriptClient{}, nil)
	err := gen.Prepare(context.Background(), &episode.Episode{ID: "ep-2", ContentStyle: episode.StyleEducational})
	if !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestExecutePropagatesClientClassification(t *testing.T) {
	clientErr := services.Wrap(services.ErrTimeout, "generating_script", "ollama generate", "timed out", nil)
	gen := scriptgen.NewGenerator(testsupport.NewConfig(t), logging.NewNop(), &fakeScriptClient{err: clientErr}, nil)

	err := gen.Execute(context.Background(), &episode.Episode{ID: "ep-3", Topic: "x", ContentStyle: episode.StyleEducational})
	if services.Classify(err) != services.KindTimeout {
		t.Fatalf("expected timeout classification, got %v", err)
	}
}

func TestExecuteRejectsMalformedScriptAsTransient(t *testing.T) {
	broken := &episode.Script{Title: "No Sections"}
	gen := scriptgen.NewGenerator(testsupport.NewConfig(t), logging.NewNop(), &fakeScriptClient{script: broken}, nil)

	err := gen.Execute(context.Background(), &episode.Episode{ID: "ep-4", Topic: "x", ContentStyle: episode.StyleEducational})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient, got %v", err)
	}
}

func TestSystemPromptPrefersStoredTemplate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	if err := store.SaveTemplate(ctx, &episode.ContentTemplate{
		Name:           "news-house-style",
		ContentStyle:   episode.StyleNews,
		PromptTemplate: "Follow the channel's breaking-news voice.",
		IsActive:       true,
	}); err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}

	client := &fakeScriptClient{script: validScript()}
	gen := scriptgen.NewGenerator(cfg, logging.NewNop(), client, store)

	ep := &episode.Episode{ID: "ep-5", Topic: "elections", ContentStyle: episode.StyleNews}
	if err := gen.Execute(ctx, ep); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(client.lastSys, "breaking-news voice") {
		t.Fatalf("expected stored template in system prompt: %q", client.lastSys)
	}
}

func TestSystemPromptCarriesTemplateSectionPlan(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	if err := store.SaveTemplate(ctx, &episode.ContentTemplate{
		Name:           "tutorial-skeleton",
		ContentStyle:   episode.StyleTutorial,
		PromptTemplate: "Walk through the build step by step.",
		Sections: []episode.TemplateSection{
			{Type: episode.SectionIntro, DurationSeconds: 30, Template: "State the end result"},
			{Type: episode.SectionMain, DurationSeconds: 300},
			{Type: episode.SectionOutro, DurationSeconds: 30},
		},
		IsActive: true,
	}); err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}

	client := &fakeScriptClient{script: validScript()}
	gen := scriptgen.NewGenerator(cfg, logging.NewNop(), client, store)

	ep := &episode.Episode{ID: "ep-6", Topic: "birdhouse", ContentStyle: episode.StyleTutorial}
	if err := gen.Execute(ctx, ep); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(client.lastSys, "exactly these sections") {
		t.Fatalf("expected section plan in system prompt: %q", client.lastSys)
	}
	if !strings.Contains(client.lastSys, "2. main_content, about 300 seconds") {
		t.Fatalf("expected per-section durations in system prompt: %q", client.lastSys)
	}
	if !strings.Contains(client.lastSys, "State the end result") {
		t.Fatalf("expected section hint in system prompt: %q", client.lastSys)
	}
}

func TestSystemPromptIgnoresRetiredTemplate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	if err := store.SaveTemplate(ctx, &episode.ContentTemplate{
		Name:           "podcast-retired",
		ContentStyle:   episode.StylePodcast,
		PromptTemplate: "The old podcast voice.",
	}); err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}

	client := &fakeScriptClient{script: validScript()}
	gen := scriptgen.NewGenerator(cfg, logging.NewNop(), client, store)

	ep := &episode.Episode{ID: "ep-7", Topic: "ferments", ContentStyle: episode.StylePodcast}
	if err := gen.Execute(ctx, ep); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strings.Contains(client.lastSys, "old podcast voice") {
		t.Fatalf("retired template leaked into system prompt: %q", client.lastSys)
	}
	if !strings.Contains(client.lastSys, "podcast-style monologue") {
		t.Fatalf("expected built-in style prompt fallback: %q", client.lastSys)
	}
}

func TestHealthCheck(t *testing.T) {
	gen := scriptgen.NewGenerator(testsupport.NewConfig(t), logging.NewNop(), &fakeScriptClient{}, nil)
	if health := gen.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected healthy, got %+v", health)
	}

	gen = scriptgen.NewGenerator(testsupport.NewConfig(t), logging.NewNop(), &fakeScriptClient{healthErr: errors.New("down")}, nil)
	if health := gen.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy")
	}
}
