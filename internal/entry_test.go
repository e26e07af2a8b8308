package internal

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/churryboy/ppt/internal/render"
)

type stubRenderer struct{ err error }

func (s stubRenderer) Render(context.Context, []byte) ([][]byte, error) { return nil, s.err }
func (s stubRenderer) Available() error { return s.err }

func testApp(t *testing.T, r render.Renderer) *app {
	t.Helper()
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Storage.Path = filepath.Join(dir, "data")
	cfg.SQLite.Path = filepath.Join(dir, "db", "ppt.db")
	a, err := newApp(WithConfig(cfg), WithRenderer(r), WithLogOutput(io.Discard))
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	t.Cleanup(a.close)
	return a
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestNewApp_RequiresConfig(t *testing.T) {
	if _, err := newApp(WithLogOutput(io.Discard)); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestHandler_Health(t *testing.T) {
	h := testApp(t, stubRenderer{}).handler()

	if rec := get(t, h, "/health/live"); rec.Code != http.StatusOK {
		t.Errorf("live = %d", rec.Code)
	}
	if rec := get(t, h, "/health/ready"); rec.Code != http.StatusOK {
		t.Errorf("ready = %d: %s", rec.Code, rec.Body)
	}
}

func TestHandler_ReadyReportsMissingRenderer(t *testing.T) {
	h := testApp(t, stubRenderer{err: render.ErrEngineUnavailable}).handler()

	rec := get(t, h, "/health/ready")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"unavailable"`) {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestHandler_MetricsAndAPI(t *testing.T) {
	h := testApp(t, stubRenderer{}).handler()

	if rec := get(t, h, "/api/decks"); rec.Code != http.StatusOK {
		t.Errorf("/api/decks = %d", rec.Code)
	}
	rec := get(t, h, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Errorf("/metrics = %d", rec.Code)
	}
}

func TestHandler_MetricsDisabled(t *testing.T) {
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Storage.Path = filepath.Join(dir, "data")
	cfg.SQLite.Path = filepath.Join(dir, "ppt.db")
	cfg.Metrics.Enabled = false
	a, err := newApp(WithConfig(cfg), WithRenderer(stubRenderer{}), WithLogOutput(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	defer a.close()

	if rec := get(t, a.handler(), "/metrics"); rec.Code != http.StatusNotFound {
		t.Errorf("/metrics = %d, want 404", rec.Code)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.App.HTTP.Port = 18931
	cfg.Storage.Path = filepath.Join(dir, "data")
	cfg.SQLite.Path = filepath.Join(dir, "ppt.db")
	cfg.Inbox.Enabled = true
	cfg.Inbox.Path = filepath.Join(dir, "inbox")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, WithConfig(cfg), WithRenderer(stubRenderer{}), WithLogOutput(io.Discard))
	}()
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run = %v", err)
	}
}


func TestRun_InboxSetupFailureStartsNothing(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	blocker := filepath.Join(dir, "inbox")
	if err := os.WriteFile(blocker, []byte("not a folder"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := NewDefaultConfig()
	cfg.App.HTTP.Port = 18932
	cfg.Storage.Path = filepath.Join(dir, "data")
	cfg.SQLite.Path = filepath.Join(dir, "ppt.db")
	cfg.Inbox.Enabled = true
	cfg.Inbox.Path = filepath.Join(blocker, "sub")

	done := make(chan error, 1)
	go func() {
		done <- Run(context.Background(), WithConfig(cfg), WithRenderer(stubRenderer{}), WithLogOutput(io.Discard))
	}()
	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "create inbox dir") {
			t.Fatalf("Run = %v, want inbox setup error", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after inbox setup failed")
	}
}
