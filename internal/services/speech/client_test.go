package speech_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"tubecraft/internal/config"
	"tubecraft/internal/services"
	"tubecraft/internal/services/speech"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *speech.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return speech.NewClient(config.Speech{
		Host:           server.URL,
		VoiceModel:     "en_US-lessac-medium",
		VoiceSpeed:     1.0,
		SampleRate:     22050,
		TimeoutSeconds: 5,
	})
}

func TestSynthesizeWritesAudioFile(t *testing.T) {
	audio := []byte("RIFF....WAVEfmt fake-audio-bytes")
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tts" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["voice"] != "en_US-lessac-medium" {
			t.Errorf("unexpected voice %v", req["voice"])
		}
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(audio)
	})

	outPath := filepath.Join(t.TempDir(), "narration.wav")
	result, err := client.Synthesize(context.Background(), "Hello world.", outPath)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if result.Bytes != int64(len(audio)) {
		t.Fatalf("unexpected byte count %d", result.Bytes)
	}
	written, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(written) != string(audio) {
		t.Fatal("written audio does not match response")
	}
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called")
	})
	_, err := client.Synthesize(context.Background(), "   ", filepath.Join(t.TempDir(), "out.wav"))
	if !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestSynthesizeClassifiesServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "voice engine crashed", http.StatusInternalServerError)
	})
	outPath := filepath.Join(t.TempDir(), "out.wav")
	_, err := client.Synthesize(context.Background(), "Hello.", outPath)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient, got %v", err)
	}
	if _, statErr := os.Stat(outPath); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("no output file should remain after failure")
	}
}

func TestSynthesizeRejectsEmptyAudioPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	_, err := client.Synthesize(context.Background(), "Hello.", filepath.Join(t.TempDir(), "out.wav"))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient for empty payload, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestHealthCheckDownstreamUnavailable(t *testing.T) {
	client := speech.NewClient(config.Speech{Host: "http://127.0.0.1:1", TimeoutSeconds: 1})
	err := client.HealthCheck(context.Background())
	if kind := services.Classify(err); kind != services.KindTransient && kind != services.KindTimeout {
		t.Fatalf("expected retryable classification, got %v", err)
	}
}
