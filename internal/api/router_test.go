package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/datallboy/dashdl/internal/api/controllers"
	"github.com/datallboy/dashdl/internal/app"
	"github.com/datallboy/dashdl/internal/domain"
	"github.com/datallboy/dashdl/internal/engine"
	"github.com/datallboy/dashdl/internal/fetch"
	"github.com/datallboy/dashdl/internal/fetch/fetchtest"
	"github.com/datallboy/dashdl/internal/infra/config"
	"github.com/datallboy/dashdl/internal/infra/logger"
	"github.com/datallboy/dashdl/internal/mux"
	"github.com/datallboy/dashdl/internal/pacing"
	"github.com/datallboy/dashdl/internal/retry"
)

type testAPI struct {
	e   *echo.Echo
	srv *fetchtest.Server
	cfg *config.Config
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	srv := fetchtest.NewServer(map[string]*fetchtest.Resource{
		"/video": {Data: fetchtest.Bytes(9000)},
		"/audio": {Data: fetchtest.Bytes(3000)},
	})
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		Download: config.DownloadConfig{OutDir: t.TempDir(), VideoFile: "video_temp.m4s", AudioFile: "audio_temp.m4s"},
		Mux:      config.MuxConfig{OutputDir: t.TempDir()},
	}
	appCtx := app.NewContext(cfg, logger.NewNop())
	appCtx.Fetcher = fetch.NewRangeFetcher(fetch.Options{})

	orch := engine.NewOrchestrator(appCtx, pacing.New(pacing.DefaultParams()), retry.DefaultPolicy())
	manager := engine.NewSessionManager(appCtx, orch, false)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go manager.Start(ctx)

	// cp stands in for ffmpeg: it only needs the video sink and the output
	runner, err := mux.New("cp", "{video} {output}", "")
	if err != nil {
		t.Fatal(err)
	}

	e := echo.New()
	RegisterRoutes(e, appCtx, manager, runner)
	return &testAPI{e: e, srv: srv, cfg: cfg}
}

func (a *testAPI) do(t *testing.T, method, path, body string, out any) int {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: bad json %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

func (a *testAPI) waitFinished(t *testing.T, id string) domain.SessionView {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for {
		var v domain.SessionView
		if code := a.do(t, http.MethodGet, "/api/sessions/"+id, "", &v); code != http.StatusOK {
			t.Fatalf("GET session = %d", code)
		}
		if v.Status.Finished() {
			return v
		}
		if time.Now().After(deadline) {
			t.Fatalf("session %s stuck in %s", id, v.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestSessionLifecycle(t *testing.T) {
	a := newTestAPI(t)

	body := `{"video_url":"` + a.srv.URLFor("/video") + `","audio_url":"` + a.srv.URLFor("/audio") + `"}`
	var created domain.SessionView
	if code := a.do(t, http.MethodPost, "/api/sessions", body, &created); code != http.StatusAccepted {
		t.Fatalf("POST = %d", code)
	}
	if created.ID == "" {
		t.Fatal("created session has no id")
	}

	v := a.waitFinished(t, created.ID)
	if v.Status != domain.StatusCompleted {
		t.Fatalf("status = %s (%s)", v.Status, v.Error)
	}
	if v.Video.Done != 9000 || v.Audio.Done != 3000 {
		t.Errorf("progress = %+v / %+v", v.Video, v.Audio)
	}

	var list controllers.SessionListResponse
	if code := a.do(t, http.MethodGet, "/api/sessions?limit=10", "", &list); code != http.StatusOK {
		t.Fatalf("GET list = %d", code)
	}
	if len(list.Sessions) != 1 || list.Sessions[0].ID != created.ID {
		t.Errorf("list = %+v", list.Sessions)
	}

	if code := a.do(t, http.MethodDelete, "/api/sessions/"+created.ID, "", nil); code != http.StatusConflict {
		t.Errorf("DELETE finished session = %d, want 409", code)
	}

	var muxed controllers.MuxResponse
	code := a.do(t, http.MethodPost, "/api/sessions/"+created.ID+"/mux", `{"owner":"Some/One","title":"A: Title?","ref":"BV1"}`, &muxed)
	if code != http.StatusOK {
		t.Fatalf("POST mux = %d", code)
	}
	if muxed.ExitCode != 0 {
		t.Fatalf("mux exit = %d, lines %v", muxed.ExitCode, muxed.Lines)
	}
	if !strings.HasSuffix(muxed.Output, "SomeOne/A Title - BV1.mp4") {
		t.Errorf("output = %q", muxed.Output)
	}
	if fi, err := os.Stat(muxed.Output); err != nil || fi.Size() != 9000 {
		t.Errorf("muxed output missing or wrong size: %v", err)
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	a := newTestAPI(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{{{`},
		{"missing audio", `{"video_url":"https://example.com/v"}`},
		{"bad scheme", `{"video_url":"file:///etc/passwd","audio_url":"https://example.com/a"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e controllers.ErrorResponse
			if code := a.do(t, http.MethodPost, "/api/sessions", tt.body, &e); code != http.StatusBadRequest {
				t.Fatalf("code = %d", code)
			}
			if e.Error == "" {
				t.Error("error message missing")
			}
		})
	}
}

func TestUnknownSession(t *testing.T) {
	a := newTestAPI(t)

	if code := a.do(t, http.MethodGet, "/api/sessions/nope", "", nil); code != http.StatusNotFound {
		t.Errorf("GET = %d, want 404", code)
	}
	if code := a.do(t, http.MethodDelete, "/api/sessions/nope", "", nil); code != http.StatusConflict {
		t.Errorf("DELETE = %d, want 409", code)
	}
	if code := a.do(t, http.MethodPost, "/api/sessions/nope/mux", `{}`, nil); code != http.StatusNotFound {
		t.Errorf("mux = %d, want 404", code)
	}
	if code := a.do(t, http.MethodGet, "/api/sessions?limit=-1", "", nil); code != http.StatusBadRequest {
		t.Errorf("bad limit = %d, want 400", code)
	}
}

func TestMuxRequiresCompletedSession(t *testing.T) {
	a := newTestAPI(t)

	body := `{"video_url":"` + a.srv.URLFor("/video") + `","audio_url":"` + a.srv.URLFor("/missing") + `"}`
	var created domain.SessionView
	if code := a.do(t, http.MethodPost, "/api/sessions", body, &created); code != http.StatusAccepted {
		t.Fatalf("POST = %d", code)
	}
	v := a.waitFinished(t, created.ID)
	if v.Status != domain.StatusFailed || !strings.Contains(v.Error, "audio") {
		t.Fatalf("status = %s (%s)", v.Status, v.Error)
	}

	if code := a.do(t, http.MethodPost, "/api/sessions/"+created.ID+"/mux", `{"title":"x"}`, nil); code != http.StatusConflict {
		t.Errorf("mux of failed session = %d, want 409", code)
	}
}
