package api_test

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aouyang1/photoslideshow/api"
	"github.com/aouyang1/photoslideshow/api/client"
	"github.com/aouyang1/photoslideshow/api/models"
	"github.com/aouyang1/photoslideshow/display"
	"github.com/aouyang1/photoslideshow/library"
	"github.com/aouyang1/photoslideshow/settings"
	"github.com/aouyang1/photoslideshow/slideshow"
	"github.com/aouyang1/photoslideshow/store"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type blankFrames struct{}

func (blankFrames) Get(string) (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}

func (blankFrames) Prefetch(...string) {}

type fixture struct {
	ws     *api.WebServer
	db     *store.Database
	player *slideshow.Player
	images []library.Image
}

func newFixture(t *testing.T, rateLimit float64, running bool) *fixture {
	t.Helper()
	dir := t.TempDir()

	var images []library.Image
	for i, name := range []string{"a.png", "b.png", "c.png"} {
		path := filepath.Join(dir, "photos", name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("image "+name), 0o644); err != nil {
			t.Fatal(err)
		}
		images = append(images, library.Image{Path: path, Folder: filepath.Dir(path), Order: i})
	}

	db, err := store.NewDatabase(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	records := make([]store.Image, len(images))
	for i, img := range images {
		records[i] = store.Image{Path: img.Path, Folder: img.Folder, Order: img.Order}
	}
	if err := db.ReplaceImages(records); err != nil {
		t.Fatalf("ReplaceImages() error = %v", err)
	}

	s := settings.Default()
	s.Server.RateLimit = rateLimit
	power, err := display.NewPower(settings.Display{Power: settings.PowerNone})
	if err != nil {
		t.Fatalf("NewPower() error = %v", err)
	}

	player := slideshow.NewPlayer()
	if running {
		r, err := slideshow.NewRunner(display.NewHeadless(4, 4, ""), blankFrames{}, images, slideshow.Options{Interval: time.Hour})
		if err != nil {
			t.Fatalf("NewRunner() error = %v", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		go r.Run(ctx)
		t.Cleanup(func() {
			cancel()
			<-r.Done()
		})
		player.Attach(r)
		deadline := time.Now().Add(3 * time.Second)
		for !r.Status().Running {
			if time.Now().After(deadline) {
				t.Fatal("runner did not start")
			}
			time.Sleep(time.Millisecond)
		}
	}

	return &fixture{
		ws:     api.NewWebServer(db, player, power, s),
		db:     db,
		player: player,
		images: images,
	}
}

func (f *fixture) do(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	f.ws.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("Unmarshal(%s) error = %v", w.Body.String(), err)
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t, 0, true)
	w := f.do(http.MethodGet, "/status")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /status = %d", w.Code)
	}
	var resp models.StatusResponse
	decode(t, w, &resp)
	if !resp.Running || resp.Count != 3 || resp.Path != f.images[0].Path {
		t.Errorf("status = %+v", resp)
	}
}

func TestAction(t *testing.T) {
	f := newFixture(t, 0, true)

	w := f.do(http.MethodPost, "/slideshow/next")
	if w.Code != http.StatusOK {
		t.Fatalf("POST /slideshow/next = %d %s", w.Code, w.Body.String())
	}
	deadline := time.Now().Add(3 * time.Second)
	for f.player.Status().Index != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("index = %d after next, want 1", f.player.Status().Index)
		}
		time.Sleep(time.Millisecond)
	}

	if w := f.do(http.MethodPost, "/slideshow/jump"); w.Code != http.StatusBadRequest {
		t.Errorf("POST /slideshow/jump = %d, want 400", w.Code)
	}
}

func TestPlay(t *testing.T) {
	f := newFixture(t, 0, true)

	tests := []struct {
		path string
		code int
	}{
		{"/slideshow/play/2", http.StatusOK},
		{"/slideshow/play/3", http.StatusBadRequest},
		{"/slideshow/play/-1", http.StatusBadRequest},
		{"/slideshow/play/abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := f.do(http.MethodPost, tt.path); w.Code != tt.code {
			t.Errorf("POST %s = %d, want %d", tt.path, w.Code, tt.code)
		}
	}
}

func TestAction_NotRunning(t *testing.T) {
	f := newFixture(t, 0, false)
	if w := f.do(http.MethodPost, "/slideshow/next"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("POST /slideshow/next = %d, want 503", w.Code)
	}
}

func TestAction_Busy(t *testing.T) {
	f := newFixture(t, 0, false)
	// an attached runner that never drains its queue
	r, err := slideshow.NewRunner(display.NewHeadless(4, 4, ""), blankFrames{}, f.images, slideshow.Options{Interval: time.Hour})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	f.player.Attach(r)

	var w *httptest.ResponseRecorder
	for i := 0; i < 100; i++ {
		if w = f.do(http.MethodPost, "/slideshow/next"); w.Code != http.StatusOK {
			break
		}
	}
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("POST /slideshow/next on a full queue = %d, want 503", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, 1, true)
	if w := f.do(http.MethodPost, "/slideshow/pause"); w.Code != http.StatusOK {
		t.Fatalf("first POST = %d", w.Code)
	}
	if w := f.do(http.MethodPost, "/slideshow/pause"); w.Code != http.StatusTooManyRequests {
		t.Errorf("second POST = %d, want 429", w.Code)
	}
	// reads are not limited
	if w := f.do(http.MethodGet, "/status"); w.Code != http.StatusOK {
		t.Errorf("GET /status = %d", w.Code)
	}
}

func TestListImages(t *testing.T) {
	f := newFixture(t, 0, false)

	w := f.do(http.MethodGet, "/images?page=2&limit=2")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /images = %d", w.Code)
	}
	var resp models.ImageListResponse
	decode(t, w, &resp)
	if resp.Total != 3 || len(resp.Images) != 1 || resp.Images[0].Order != 2 {
		t.Errorf("page 2 = %+v", resp)
	}

	if w := f.do(http.MethodGet, "/images?limit=0"); w.Code != http.StatusBadRequest {
		t.Errorf("GET /images?limit=0 = %d, want 400", w.Code)
	}
}

func TestImage(t *testing.T) {
	f := newFixture(t, 0, false)

	w := f.do(http.MethodGet, "/images/1/image")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /images/1/image = %d", w.Code)
	}
	if w.Body.String() != "image b.png" {
		t.Errorf("body = %q", w.Body.String())
	}

	if w := f.do(http.MethodGet, "/images/9/image"); w.Code != http.StatusNotFound {
		t.Errorf("GET /images/9/image = %d, want 404", w.Code)
	}
}

func TestSettings(t *testing.T) {
	f := newFixture(t, 0, false)
	var got map[string]any
	decode(t, f.do(http.MethodGet, "/settings"), &got)
	if got["interval_seconds"] != float64(6) {
		t.Errorf("interval_seconds = %v", got["interval_seconds"])
	}

	s := settings.Default()
	s.IntervalSeconds = 42
	f.ws.SetSettings(s)
	decode(t, f.do(http.MethodGet, "/settings"), &got)
	if got["interval_seconds"] != float64(42) {
		t.Errorf("interval_seconds after SetSettings = %v", got["interval_seconds"])
	}
}

func TestDisplay(t *testing.T) {
	f := newFixture(t, 0, false)

	var state models.DisplayStateResponse
	decode(t, f.do(http.MethodGet, "/display"), &state)
	if !state.Enabled {
		t.Error("display initially disabled")
	}

	w := f.do(http.MethodPut, "/display/0")
	if w.Code != http.StatusOK {
		t.Fatalf("PUT /display/0 = %d", w.Code)
	}
	decode(t, w, &state)
	if state.Enabled {
		t.Error("display enabled after PUT /display/0")
	}

	if w := f.do(http.MethodPut, "/display/on"); w.Code != http.StatusBadRequest {
		t.Errorf("PUT /display/on = %d, want 400", w.Code)
	}
}

func TestUpdateCaption(t *testing.T) {
	f := newFixture(t, 0, false)

	if w := f.do(http.MethodPut, "/settings/caption/0"); w.Code != http.StatusConflict {
		t.Errorf("PUT /settings/caption/0 without a file = %d, want 409", w.Code)
	}

	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"folders": ["/srv/photos"], "show_caption": true}`), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := settings.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	f.ws.SetSettings(s)

	w := f.do(http.MethodPut, "/settings/caption/0")
	if w.Code != http.StatusOK {
		t.Fatalf("PUT /settings/caption/0 = %d %s", w.Code, w.Body.String())
	}
	var resp models.CaptionStateResponse
	decode(t, w, &resp)
	if resp.ShowCaption || resp.Path != path {
		t.Errorf("response = %+v", resp)
	}

	reloaded, err := settings.Load(path)
	if err != nil {
		t.Fatalf("Load() after update error = %v", err)
	}
	if reloaded.ShowCaption {
		t.Error("show_caption still true in the settings file")
	}

	if w := f.do(http.MethodPut, "/settings/caption/yes"); w.Code != http.StatusBadRequest {
		t.Errorf("PUT /settings/caption/yes = %d, want 400", w.Code)
	}
}

func TestToggleCaptionAction(t *testing.T) {
	f := newFixture(t, 0, true)
	toggled := make(chan struct{}, 1)
	f.player.OnToggleCaption(func() error {
		toggled <- struct{}{}
		return nil
	})

	if w := f.do(http.MethodPost, "/slideshow/toggle_caption"); w.Code != http.StatusOK {
		t.Fatalf("POST /slideshow/toggle_caption = %d %s", w.Code, w.Body.String())
	}
	select {
	case <-toggled:
	default:
		t.Error("caption toggle not run")
	}
}

func TestIndexPage(t *testing.T) {
	f := newFixture(t, 0, true)
	w := f.do(http.MethodGet, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("GET / = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"<h1>Slideshow</h1>", "photos/a.png", "1 of 3", "/slideshow/next"} {
		if !strings.Contains(body, want) {
			t.Errorf("GET / body missing %q", want)
		}
	}
}

func TestControlClient(t *testing.T) {
	f := newFixture(t, 0, true)
	srv := httptest.NewServer(f.ws.Handler())
	defer srv.Close()

	cc := client.NewControlClient(srv.URL)
	ctx := context.Background()

	st, err := cc.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.Count != 3 {
		t.Errorf("Status().Count = %d", st.Count)
	}

	if _, err := cc.Do(ctx, slideshow.ActionPause); err != nil {
		t.Errorf("Do(pause) error = %v", err)
	}
	if _, err := cc.Play(ctx, 7); err == nil {
		t.Error("Play(7) error = nil")
	}
	if _, err := cc.Do(ctx, slideshow.Action("bogus")); err == nil {
		t.Error("Do(bogus) error = nil")
	}
}
