package episode_test

import (
	"strings"
	"testing"

	"tubecraft/internal/episode"
)

func sampleScript() *episode.Script {
	return &episode.Script{
		Title:                "Sourdough Basics",
		TotalDurationSeconds: 120,
		Sections: []episode.ScriptSection{
			{ID: "s1", Type: episode.SectionIntro, Content: "Welcome to the show.", DurationSeconds: 20},
			{ID: "s2", Type: episode.SectionMain, Content: "Flour, water, salt, patience.", DurationSeconds: 80},
			{ID: "s3", Type: episode.SectionOutro, Content: "Thanks for watching.", DurationSeconds: 20},
		},
	}
}

func TestScriptEncodeParseRoundTrip(t *testing.T) {
	raw, err := sampleScript().Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	parsed, err := episode.ParseScript(raw)
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	if parsed.Title != "Sourdough Basics" || len(parsed.Sections) != 3 {
		t.Fatalf("unexpected parsed script: %+v", parsed)
	}
}

func TestScriptValidateRejectsBadShapes(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*episode.Script)
	}{
		{"empty title", func(s *episode.Script) { s.Title = " " }},
		{"no sections", func(s *episode.Script) { s.Sections = nil }},
		{"blank section id", func(s *episode.Script) { s.Sections[1].ID = "" }},
		{"duplicate section id", func(s *episode.Script) { s.Sections[2].ID = "s1" }},
		{"empty content", func(s *episode.Script) { s.Sections[0].Content = "" }},
		{"zero duration", func(s *episode.Script) { s.Sections[0].DurationSeconds = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			script := sampleScript()
			tc.mutate(script)
			if err := script.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestParseScriptRejectsGarbage(t *testing.T) {
	if _, err := episode.ParseScript(""); err == nil {
		t.Fatal("expected error for empty payload")
	}
	if _, err := episode.ParseScript("not json"); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestNarrationTextJoinsSections(t *testing.T) {
	text := sampleScript().NarrationText()
	if !strings.Contains(text, "Welcome to the show.") || !strings.Contains(text, "Thanks for watching.") {
		t.Fatalf("unexpected narration text: %q", text)
	}
	if strings.Count(text, "\n\n") != 2 {
		t.Fatalf("expected two separators, got %q", text)
	}
}

func TestStateMachineTable(t *testing.T) {
	allowed := []struct{ from, to episode.Status }{
		{episode.StatusDraft, episode.StatusGeneratingScript},
		{episode.StatusDraft, episode.StatusCancelled},
		{episode.StatusGeneratingScript, episode.StatusGeneratingAudio},
		{episode.StatusGeneratingScript, episode.StatusGeneratingScript},
		{episode.StatusGeneratingScript, episode.StatusFailed},
		{episode.StatusGeneratingScript, episode.StatusCancelled},
		{episode.StatusGeneratingAudio, episode.StatusGeneratingVideo},
		{episode.StatusGeneratingVideo, episode.StatusCompleted},
	}
	for _, edge := range allowed {
		if !episode.CanTransition(edge.from, edge.to) {
			t.Errorf("expected %s -> %s to be legal", edge.from, edge.to)
		}
	}

	for _, terminal := range []episode.Status{episode.StatusCompleted, episode.StatusFailed, episode.StatusCancelled} {
		if !terminal.Terminal() {
			t.Errorf("expected %s to be terminal", terminal)
		}
		for _, to := range episode.AllStatuses() {
			if episode.CanTransition(terminal, to) {
				t.Errorf("terminal %s must have no exit to %s", terminal, to)
			}
		}
	}
}

func TestNextStatusSequence(t *testing.T) {
	seq := []episode.Status{
		episode.StatusDraft,
		episode.StatusGeneratingScript,
		episode.StatusGeneratingAudio,
		episode.StatusGeneratingVideo,
	}
	want := []episode.Status{
		episode.StatusGeneratingScript,
		episode.StatusGeneratingAudio,
		episode.StatusGeneratingVideo,
		episode.StatusCompleted,
	}
	for i, current := range seq {
		next, ok := episode.NextStatus(current)
		if !ok || next != want[i] {
			t.Fatalf("NextStatus(%s) = %s ok=%v, want %s", current, next, ok, want[i])
		}
	}
	if _, ok := episode.NextStatus(episode.StatusCompleted); ok {
		t.Fatal("completed has no successor")
	}
}

func TestParseStyleDefaultsToEducational(t *testing.T) {
	style, ok := episode.ParseStyle("")
	if !ok || style != episode.StyleEducational {
		t.Fatalf("expected educational default, got %s ok=%v", style, ok)
	}
	if _, ok := episode.ParseStyle("vlog"); ok {
		t.Fatal("expected unknown style to be rejected")
	}
}
