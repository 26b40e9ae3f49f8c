package daemon_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"tubecraft/internal/daemon"
	"tubecraft/internal/episode"
	"tubecraft/internal/logging"
	"tubecraft/internal/scheduler"
	"tubecraft/internal/stage"
	"tubecraft/internal/testsupport"
)

type idleHandler struct {
	status episode.Status
}

func (h idleHandler) Status() episode.Status { return h.status }

func (h idleHandler) Prepare(context.Context, *episode.Episode) error { return nil }

func (h idleHandler) Execute(context.Context, *episode.Episode) error { return nil }

func (h idleHandler) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(string(h.status))
}

func stageHandlers() []stage.Handler {
	return []stage.Handler{
		idleHandler{status: episode.StatusGeneratingScript},
		idleHandler{status: episode.StatusGeneratingAudio},
		idleHandler{status: episode.StatusGeneratingVideo},
	}
}

func TestDaemonEnforcesSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()

	first, err := daemon.New(cfg, store, logger, scheduler.New(cfg, store, logger, stageHandlers()...), nil)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("start first daemon: %v", err)
	}
	defer first.Stop()

	second, err := daemon.New(cfg, store, logger, scheduler.New(cfg, store, logger, stageHandlers()...), nil)
	if err != nil {
		t.Fatalf("new second daemon: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second daemon acquired the lock")
	}
}

func TestDaemonRequeuesStrandedEpisodesOnStart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	ep := testsupport.NewEpisode(t, store, "Left Behind")
	if _, err := store.Transition(ctx, ep.ID, episode.StatusDraft, episode.StatusGeneratingScript); err != nil {
		t.Fatal(err)
	}

	d, err := daemon.New(cfg, store, logging.NewNop(), scheduler.New(cfg, store, logging.NewNop(), stageHandlers()...), nil)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	defer d.Stop()

	// The requeued draft is picked up by the idle handlers and completes.
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		fresh, err := store.GetByID(ctx, ep.ID)
		if err != nil {
			t.Fatal(err)
		}
		if fresh.Status == episode.StatusCompleted {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("stranded episode never completed after requeue")
}

func TestDaemonServesControlAPI(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	d, err := daemon.New(cfg, store, logging.NewNop(), scheduler.New(cfg, store, logging.NewNop(), stageHandlers()...), handler)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	defer d.Stop()

	resp, err := http.Get("http://" + d.Addr() + "/anything")
	if err != nil {
		t.Fatalf("control API unreachable: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status %d, want 204", resp.StatusCode)
	}
}
