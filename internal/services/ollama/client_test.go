package ollama_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"tubecraft/internal/config"
	"tubecraft/internal/services"
	"tubecraft/internal/services/ollama"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *ollama.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return ollama.NewClient(config.Ollama{
		Host:           server.URL,
		Model:          "mistral:7b",
		TimeoutSeconds: 5,
	})
}

func TestGenerateReturnsResponseText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["model"] != "mistral:7b" {
			t.Errorf("unexpected model %v", req["model"])
		}
		if req["stream"] != false {
			t.Errorf("expected stream=false")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "hello there", "done": true})
	})

	got, err := client.Generate(context.Background(), "system", "write a greeting")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "hello there" {
		t.Fatalf("unexpected response %q", got)
	}
}

func TestGenerateJSONToleratesCodeFences(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		payload := "```json\n{\"title\":\"Fenced\"}\n```"
		_ = json.NewEncoder(w).Encode(map[string]any{"response": payload, "done": true})
	})

	var out struct {
		Title string `json:"title"`
	}
	if err := client.GenerateJSON(context.Background(), "", "prompt", &out); err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	if out.Title != "Fenced" {
		t.Fatalf("unexpected decode: %+v", out)
	}
}

func TestGenerateClassifiesServerErrorsAsTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.Generate(context.Background(), "", "prompt")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient classification, got %v", err)
	}
}

func TestGenerateClassifiesRateLimitAsResourceExhaustion(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})

	_, err := client.Generate(context.Background(), "", "prompt")
	if services.Classify(err) != services.KindResourceExhaustion {
		t.Fatalf("expected resource exhaustion, got %v", err)
	}
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called")
	})

	_, err := client.Generate(context.Background(), "", "  ")
	if !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestGenerateClassifiesConnectionRefusedAsTransient(t *testing.T) {
	client := ollama.NewClient(config.Ollama{
		Host:           "http://127.0.0.1:1",
		Model:          "mistral:7b",
		TimeoutSeconds: 1,
	})
	_, err := client.Generate(context.Background(), "", "prompt")
	if services.Classify(err) != services.KindTransient && services.Classify(err) != services.KindTimeout {
		t.Fatalf("expected retryable classification, got %v", err)
	}
}

func TestHealthCheckVerifiesModelPresence(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]string{{"name": "mistral:7b"}},
		})
	})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestHealthCheckReportsMissingModel(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]string{{"name": "llama3:8b"}},
		})
	})
	err := client.HealthCheck(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestDecodeModelJSONExtractsEmbeddedObject(t *testing.T) {
	var out struct {
		OK bool `json:"ok"`
	}
	payload := "Sure! Here is the JSON you asked for: {\"ok\": true} Hope that helps."
	if err := ollama.DecodeModelJSON(payload, &out); err != nil {
		t.Fatalf("DecodeModelJSON: %v", err)
	}
	if !out.OK {
		t.Fatal("expected ok=true")
	}
}
