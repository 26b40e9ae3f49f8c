package audiosynth_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tubecraft/internal/audiosynth"
	"tubecraft/internal/episode"
	"tubecraft/internal/logging"
	"tubecraft/internal/services"
	"tubecraft/internal/services/speech"
	"tubecraft/internal/testsupport"
)

type fakeSpeechClient struct {
	err       error
	healthErr error
	lastText  string
	lastPath  string
}

func (f *fakeSpeechClient) Synthesize(_ context.Context, text, outPath string) (*speech.Result, error) {
	f.lastText = text
	f.lastPath = outPath
	if f.err != nil {
		return nil, f.err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(outPath, []byte("audio"), 0o644); err != nil {
		return nil, err
	}
	return &speech.Result{Path: outPath, Bytes: 5}, nil
}

func (f *fakeSpeechClient) HealthCheck(context.Context) error { return f.healthErr }

func scriptedEpisode(t *testing.T) *episode.Episode {
	t.Helper()
	script := &episode.Script{
		Title:                "Narrated",
		TotalDurationSeconds: 60,
		Sections: []episode.ScriptSection{
			{ID: "s1", Type: episode.SectionIntro, Content: "Hello listeners.", DurationSeconds: 20},
			{ID: "s2", Type: episode.SectionOutro, Content: "See you next time.", DurationSeconds: 40},
		},
	}
	raw, err := script.Encode()
	if err != nil {
		t.Fatalf("encode script: %v", err)
	}
	return &episode.Episode{ID: "ep-audio", Title: "Narrated", ScriptJSON: raw, ContentStyle: episode.StyleEducational}
}

func TestExecuteSynthesizesNarration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := &fakeSpeechClient{}
	synth := audiosynth.NewSynthesizer(cfg, logging.NewNop(), client)

	ep := scriptedEpisode(t)
	if err := synth.Prepare(context.Background(), ep); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := synth.Execute(context.Background(), ep); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	wantPath := filepath.Join(cfg.AudioOutputDir(), "ep-audio.mp3")
	if ep.AudioPath != wantPath {
		t.Fatalf("unexpected audio path %q", ep.AudioPath)
	}
	if !strings.Contains(client.lastText, "Hello listeners.") || !strings.Contains(client.lastText, "See you next time.") {
		t.Fatalf("narration text incomplete: %q", client.lastText)
	}
}

func TestPrepareRejectsMissingScript(t *testing.T) {
	synth := audiosynth.NewSynthesizer(testsupport.NewConfig(t), logging.NewNop(), &fakeSpeechClient{})
	err := synth.Prepare(context.Background(), &episode.Episode{ID: "ep-x"})
	if !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestExecutePropagatesClientClassification(t *testing.T) {
	clientErr := services.Wrap(services.ErrResourceExhausted, "generating_audio", "speech synthesize", "rate limited", nil)
	synth := audiosynth.NewSynthesizer(testsupport.NewConfig(t), logging.NewNop(), &fakeSpeechClient{err: clientErr})

	err := synth.Execute(context.Background(), scriptedEpisode(t))
	if services.Classify(err) != services.KindResourceExhaustion {
		t.Fatalf("expected resource exhaustion, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	synth := audiosynth.NewSynthesizer(testsupport.NewConfig(t), logging.NewNop(), &fakeSpeechClient{})
	if health := synth.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected healthy, got %+v", health)
	}

	synth = audiosynth.NewSynthesizer(testsupport.NewConfig(t), logging.NewNop(), &fakeSpeechClient{healthErr: errors.New("down")})
	if health := synth.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy")
	}
}
