package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"golang.org/x/time/rate"

	"tubecraft/internal/config"
	"tubecraft/internal/episode"
	"tubecraft/internal/logging"
	"tubecraft/internal/stage"
	"tubecraft/internal/testsupport"
)

type fakeSubmitter struct {
	submits atomic.Int32
	checks  []stage.Health
}

func (f *fakeSubmitter) Submit() { f.submits.Add(1) }

func (f *fakeSubmitter) Health(context.Context) []stage.Health { return f.checks }

func newTestServer(t *testing.T) (*Server, *episode.Store, *fakeSubmitter) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	sched := &fakeSubmitter{checks: []stage.Health{stage.Healthy("generating_script")}}
	service := NewService(cfg, store, sched, logging.NewNop())
	return NewServer(service, logging.NewNop()), store, sched
}

func doJSON(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), target); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestCreateEpisodeReturnsDraft(t *testing.T) {
	server, _, sched := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/episodes", CreateEpisodeRequest{
		Title:        "Volcanoes of Io",
		ContentStyle: "educational",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var view episodeView
	decodeBody(t, rec, &view)
	if view.ID == "" || view.Status != "draft" {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.TargetDurationMinutes != config.DefaultTargetDurationMinutes {
		t.Fatalf("duration default not applied: %d", view.TargetDurationMinutes)
	}
	if sched.submits.Load() != 1 {
		t.Fatal("scheduler not nudged after create")
	}
}

func TestCreateEpisodeStoresTagSet(t *testing.T) {
	server, store, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/episodes", CreateEpisodeRequest{
		Title: "Tagged",
		Tags:  []string{" baking ", "baking", "", "sourdough"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var view episodeView
	decodeBody(t, rec, &view)
	if len(view.Tags) != 2 || view.Tags[0] != "baking" || view.Tags[1] != "sourdough" {
		t.Fatalf("unexpected tags %v", view.Tags)
	}

	stored, err := store.GetByID(context.Background(), view.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(stored.Tags) != 2 {
		t.Fatalf("tags not persisted: %v", stored.Tags)
	}
}

func TestCreateEpisodeRejectsEmptyRequest(t *testing.T) {
	server, _, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/episodes", CreateEpisodeRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}

	rec = doJSON(t, server, http.MethodPost, "/episodes", CreateEpisodeRequest{
		Title:        "Something",
		ContentStyle: "operatic",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown style status %d, want 400", rec.Code)
	}
}

func TestGetEpisodeNotFound(t *testing.T) {
	server, _, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/episodes/no-such-id", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
}

func TestCancelDraftEpisode(t *testing.T) {
	server, store, _ := newTestServer(t)
	ep := testsupport.NewEpisode(t, store, "Short Lived")

	rec := doJSON(t, server, http.MethodPost, "/episodes/"+ep.ID+"/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var view episodeView
	decodeBody(t, rec, &view)
	if view.Status != "cancelled" {
		t.Fatalf("draft cancel should be immediate, got %s", view.Status)
	}

	// A second cancel hits a terminal episode and conflicts.
	rec = doJSON(t, server, http.MethodPost, "/episodes/"+ep.ID+"/cancel", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("terminal cancel status %d, want 409", rec.Code)
	}
}

func TestListEpisodesFiltersByStatus(t *testing.T) {
	server, store, _ := newTestServer(t)
	testsupport.NewEpisode(t, store, "First")
	testsupport.NewEpisode(t, store, "Second")

	rec := doJSON(t, server, http.MethodGet, "/episodes?status=draft", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var body listBody
	decodeBody(t, rec, &body)
	if body.Count != 2 {
		t.Fatalf("draft count %d, want 2", body.Count)
	}

	rec = doJSON(t, server, http.MethodGet, "/episodes?status=completed", nil)
	decodeBody(t, rec, &body)
	if body.Count != 0 {
		t.Fatalf("completed count %d, want 0", body.Count)
	}

	rec = doJSON(t, server, http.MethodGet, "/episodes?status=sideways", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad filter status %d, want 400", rec.Code)
	}
}

func TestRetryEndpointRequeuesFailures(t *testing.T) {
	server, store, sched := newTestServer(t)
	ep := testsupport.NewEpisode(t, store, "Crashed Once")

	ctx := context.Background()
	if _, err := store.Transition(ctx, ep.ID, episode.StatusDraft, episode.StatusGeneratingScript); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Transition(ctx, ep.ID, episode.StatusGeneratingScript, episode.StatusFailed); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, server, http.MethodPost, "/episodes/retry", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var body map[string]int64
	decodeBody(t, rec, &body)
	if body["retried"] != 1 {
		t.Fatalf("retried %d, want 1", body["retried"])
	}
	if sched.submits.Load() == 0 {
		t.Fatal("scheduler not nudged after retry")
	}

	refreshed, err := store.GetByID(ctx, ep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if refreshed.Status != episode.StatusDraft {
		t.Fatalf("status %s, want draft", refreshed.Status)
	}
}

func TestEpisodeLogsEndpoint(t *testing.T) {
	server, store, _ := newTestServer(t)
	ep := testsupport.NewEpisode(t, store, "Audited")

	entry := &episode.LogEntry{
		EpisodeID: ep.ID,
		Stage:     "generating_script",
		EventType: episode.EventStarted,
		Attempt:   1,
	}
	if err := store.AppendLog(context.Background(), entry); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, server, http.MethodGet, "/episodes/"+ep.ID+"/logs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var body struct {
		Logs  []logView `json:"logs"`
		Count int       `json:"count"`
	}
	decodeBody(t, rec, &body)
	if body.Count != 1 || body.Logs[0].EventType != "started" {
		t.Fatalf("unexpected logs %+v", body)
	}
}

func TestStatsEndpoint(t *testing.T) {
	server, store, _ := newTestServer(t)
	testsupport.NewEpisode(t, store, "Counted")

	rec := doJSON(t, server, http.MethodGet, "/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var report StatsReport
	decodeBody(t, rec, &report)
	if report.Summary.Total != 1 || report.Summary.Draft != 1 {
		t.Fatalf("unexpected summary %+v", report.Summary)
	}
	if report.ByStyle[episode.StyleEducational][episode.StatusDraft] != 1 {
		t.Fatalf("unexpected style breakdown %+v", report.ByStyle)
	}
}

func TestHealthEndpointReflectsStageReadiness(t *testing.T) {
	server, _, sched := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthy status %d", rec.Code)
	}

	sched.checks = []stage.Health{stage.Unhealthy("generating_audio", "tts unreachable")}
	rec = doJSON(t, server, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy status %d, want 503", rec.Code)
	}
}

func TestRateLimitReturnsTooManyRequests(t *testing.T) {
	server, _, _ := newTestServer(t)
	server.limiter = rate.NewLimiter(rate.Limit(1), 1)

	first := doJSON(t, server, http.MethodGet, "/stats", nil)
	if first.Code != http.StatusOK {
		t.Fatalf("first request status %d", first.Code)
	}
	second := doJSON(t, server, http.MethodGet, "/stats", nil)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status %d, want 429", second.Code)
	}
}
