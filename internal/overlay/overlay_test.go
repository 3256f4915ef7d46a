package overlay

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"globe-overlay/internal/collision"
	"globe-overlay/internal/common"
	"globe-overlay/internal/config"
	"globe-overlay/internal/fetch"
	"globe-overlay/internal/labels"
	"globe-overlay/internal/scene"
	"globe-overlay/internal/schedule"
)

// fakeRenderer projects lon/lat straight to window pixels
type fakeRenderer struct {
	mu    sync.Mutex
	tiles []common.RenderedTile
	live  map[string]bool
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{live: make(map[string]bool)}
}

func (f *fakeRenderer) setTiles(tiles ...common.RenderedTile) {
	f.mu.Lock()
	f.tiles = tiles
	f.mu.Unlock()
}

func (f *fakeRenderer) RenderedTiles() []common.RenderedTile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tiles
}

func (f *fakeRenderer) LoadQueues() (int, int) { return 0, 0 }

func (f *fakeRenderer) Project(pos common.Position, _ common.HeightReference) (float64, float64, bool) {
	return pos.Lon, pos.Lat, true
}

func (f *fakeRenderer) AddLabel(l *scene.Label) {
	f.mu.Lock()
	f.live[l.Record.ID] = l.Show
	f.mu.Unlock()
}

func (f *fakeRenderer) RemoveLabel(l *scene.Label) {
	f.mu.Lock()
	delete(f.live, l.Record.ID)
	f.mu.Unlock()
}

func (f *fakeRenderer) SetShow(l *scene.Label, show bool) {
	f.mu.Lock()
	f.live[l.Record.ID] = show
	f.mu.Unlock()
}

func (f *fakeRenderer) snapshot() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool, len(f.live))
	for k, v := range f.live {
		out[k] = v
	}
	return out
}

// roadServer serves one road label per tile, anchored at (x*100, y*100).
// Tiles with x == 9 hold two labels at the same point.
func roadServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		x, _ := strconv.Atoi(parts[1])
		y, _ := strconv.Atoi(parts[2])
		if x == 9 {
			fmt.Fprintf(w, `[{"x":900,"y":%d,"name":"North"},{"x":900.5,"y":%d,"name":"South"}]`, y*100, y*100)
			return
		}
		fmt.Fprintf(w, `[{"x":%d,"y":%d,"name":"Road %d"}]`, x*100, y*100, x)
	}))
}

func tile(x, y, z int) common.RenderedTile {
	return common.RenderedTile{Coord: common.TileCoord{X: x, Y: y, Zoom: z}}
}

func newTestOverlay(t *testing.T, r *fakeRenderer, url string) *Overlay {
	t.Helper()
	o, err := New(r, Options{
		Datasets: []*fetch.Dataset{{Name: "roads", Kind: common.DatasetRoadLabel, URL: url + "/{z}/{x}/{y}"}},
		Labels: labels.Config{Defaults: labels.Style{
			Label: labels.LabelStyle{FontSize: 10, Scale: 1},
		}},
		Schedule: schedule.Config{
			RefreshInterval:   time.Millisecond,
			CollisionInterval: time.Millisecond,
			BootstrapInterval: time.Millisecond,
			BootstrapTicks:    2,
		},
		AutoCollide: true,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return o
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestOverlayLifecycle(t *testing.T) {
	srv := roadServer(t)
	defer srv.Close()

	r := newFakeRenderer()
	o := newTestOverlay(t, r, srv.URL)

	initial := []common.RenderedTile{tile(1, 1, 5), tile(2, 1, 5)}
	r.setTiles(initial...)

	select {
	case <-o.Activate(context.Background(), initial):
	case <-time.After(2 * time.Second):
		t.Fatal("Expected bootstrap to finish")
	}

	live := r.snapshot()
	if len(live) != 2 || !live["100_100"] || !live["200_100"] {
		t.Fatalf("Expected both labels shown after bootstrap collision pass, got %v", live)
	}

	// camera moves to a new tile set: old labels are swept
	r.setTiles(tile(3, 1, 5))
	time.Sleep(2 * time.Millisecond)
	if !o.MoveEnd() {
		t.Fatal("Expected refresh to start")
	}
	waitFor(t, "sweep", func() bool {
		live := r.snapshot()
		_, ok := live["300_100"]
		return ok && len(live) == 1
	})

	stats := o.Stats()
	if stats.CachedTiles != 3 || stats.CachedLabels != 3 || stats.LiveLabels != 1 {
		t.Errorf("Expected 3 cached tiles, 3 cached labels and 1 live, got %+v", stats)
	}

	o.Deactivate()
	if live := r.snapshot(); len(live) != 0 {
		t.Errorf("Expected teardown to remove every label, got %v", live)
	}
	if stats := o.Stats(); stats.CachedTiles != 0 || stats.CachedLabels != 0 || stats.Active {
		t.Errorf("Expected caches dropped and overlay inactive, got %+v", stats)
	}
}

func TestOverlayDeclutterAndPick(t *testing.T) {
	srv := roadServer(t)
	defer srv.Close()

	r := newFakeRenderer()
	o := newTestOverlay(t, r, srv.URL)
	defer o.Deactivate()

	tiles := []common.RenderedTile{tile(9, 1, 5)}
	r.setTiles(tiles...)
	<-o.Activate(context.Background(), tiles)

	live := r.snapshot()
	if len(live) != 2 {
		t.Fatalf("Expected 2 live labels, got %v", live)
	}
	if !live["900_100"] || live["900.5_100"] {
		t.Errorf("Expected the first label to win the tie, got %v", live)
	}

	hits := o.Pick(900, 100)
	if len(hits) != 1 || hits[0].Text != "North" {
		t.Errorf("Expected pick to hit North, got %v", hits)
	}
}

func TestOverlayRefreshUnchangedIsSkipped(t *testing.T) {
	var mu sync.Mutex
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	r := newFakeRenderer()
	o := newTestOverlay(t, r, srv.URL)
	tiles := []common.RenderedTile{tile(1, 1, 5)}
	r.setTiles(tiles...)

	if err := o.Bootstrap(context.Background(), tiles); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	if err := o.RefreshTiles(context.Background(), false); err != nil {
		t.Fatalf("RefreshTiles failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if requests != 1 {
		t.Errorf("Expected a single request for an unchanged viewport, got %d", requests)
	}
	if o.Stats().CachedTiles != 1 {
		t.Errorf("Expected negative entry cached, got %d", o.Stats().CachedTiles)
	}
}

func TestOptionsFromSettings(t *testing.T) {
	s := config.DefaultSettings()
	s.Datasets = []config.DatasetSettings{{
		Name: "poi", Kind: "point", URL: "https://{s}/{z}/{x}/{y}",
		Bounds: &config.Bounds{West: 1, South: 2, East: 3, North: 4},
	}}
	s.CollisionPadding = []float64{1, 2, 3, 4}

	opts, err := OptionsFromSettings(s)
	if err != nil {
		t.Fatalf("OptionsFromSettings failed: %v", err)
	}
	if opts.Datasets[0].Kind != common.DatasetPoint || opts.Datasets[0].Bounds.Max[1] != 4 {
		t.Errorf("Expected point dataset with bounds, got %+v", opts.Datasets[0])
	}
	if opts.Padding != (collision.Padding{1, 2, 3, 4}) {
		t.Errorf("Expected padding copied, got %v", opts.Padding)
	}
	if opts.Labels.Defaults.Label.Horizontal != labels.HorizontalLeft {
		t.Errorf("Expected left horizontal origin, got %v", opts.Labels.Defaults.Label.Horizontal)
	}
	if opts.Schedule.BootstrapTicks != 4 || opts.Schedule.TrailingRefresh != 300*time.Millisecond || opts.Cache.TileLimit != 999 {
		t.Errorf("Expected default schedule and cache, got %+v %+v", opts.Schedule, opts.Cache)
	}

	s.LabelStyle.HorizontalOrigin = "middle"
	if _, err := OptionsFromSettings(s); err == nil {
		t.Error("Expected unknown origin to be rejected")
	}
}

func TestOverlayReadsDuringCycles(t *testing.T) {
	srv := roadServer(t)
	defer srv.Close()

	r := newFakeRenderer()
	o := newTestOverlay(t, r, srv.URL)
	tiles := []common.RenderedTile{tile(9, 1, 5)}
	if err := o.Bootstrap(context.Background(), tiles); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	o.ResolveCollisions(false)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if err := o.Bootstrap(context.Background(), tiles); err != nil {
				t.Errorf("Bootstrap failed: %v", err)
				break
			}
			o.ResolveCollisions(false)
		}
		close(done)
	}()

	for reading := true; reading; {
		select {
		case <-done:
			reading = false
		default:
		}
		for _, rec := range o.Pick(900, 100) {
			if rec.Text != "North" {
				t.Errorf("Expected pick to hit North, got %s", rec.Text)
			}
		}
		for _, l := range o.Labels() {
			if l.Record == nil || l.Marker != o.ID() {
				t.Errorf("Expected labels owned by the overlay, got %+v", l)
			}
		}
		_ = o.Stats()
	}
	wg.Wait()

	if got := len(o.Labels()); got != 2 {
		t.Errorf("Expected 2 live labels, got %d", got)
	}
}

func TestCollisionPassSweepsBehindNewestCycle(t *testing.T) {
	srv := roadServer(t)
	defer srv.Close()

	r := newFakeRenderer()
	o := newTestOverlay(t, r, srv.URL)
	t0 := time.Unix(1000, 0)
	t1 := t0.Add(time.Second)

	o.now = func() time.Time { return t1 }
	if err := o.runCycle(context.Background(), []common.RenderedTile{tile(1, 1, 5)}, false); err != nil {
		t.Fatalf("runCycle failed: %v", err)
	}

	// a cycle that started before the previous one finishes last
	o.now = func() time.Time { return t0 }
	if err := o.runCycle(context.Background(), []common.RenderedTile{tile(2, 1, 5)}, false); err != nil {
		t.Fatalf("runCycle failed: %v", err)
	}

	live := r.snapshot()
	if len(live) != 1 || !live["100_100"] {
		t.Errorf("Expected only the newest cycle's label live, got %v", live)
	}
	if o.Stats().LiveLabels != 1 {
		t.Errorf("Expected 1 live label, got %d", o.Stats().LiveLabels)
	}
}
