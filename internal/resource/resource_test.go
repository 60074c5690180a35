package resource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestTable_AddFind(t *testing.T) {
	tbl := NewTable()
	r := Resource{Name: "r1", Host: "cam.local", File: "snap.jpg"}
	if err := tbl.Add(r); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, ok := tbl.Find("r1")
	if !ok {
		t.Fatal("r1 not found")
	}
	if got.Host != "cam.local" || got.File != "snap.jpg" {
		t.Errorf("Find = %+v", got)
	}
	if got.Protocol != "http" {
		t.Errorf("default protocol = %q", got.Protocol)
	}
}

func TestTable_AddDuplicateKeepsOriginal(t *testing.T) {
	tbl := NewTable()
	tbl.Add(Resource{Name: "r1", Host: "first"})
	err := tbl.Add(Resource{Name: "r1", Host: "second"})
	if !errors.Is(err, ErrResourceExists) {
		t.Fatalf("second Add err = %v, want ErrResourceExists", err)
	}
	got, _ := tbl.Find("r1")
	if got.Host != "first" {
		t.Errorf("Host = %q, want first", got.Host)
	}
}

func TestTable_UpdateMerges(t *testing.T) {
	tbl := NewTable()
	tbl.Add(Resource{Name: "r1", Host: "h", Path: "p", File: "f", User: "u"})
	if err := tbl.Update("r1", Resource{File: "g", Refresh: 5}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := tbl.Find("r1")
	if got.Host != "h" || got.Path != "p" || got.User != "u" {
		t.Errorf("empty fields overwrote existing: %+v", got)
	}
	if got.File != "g" || got.Refresh != 5 {
		t.Errorf("patch not applied: %+v", got)
	}
}

func TestTable_UpdateMissing(t *testing.T) {
	tbl := NewTable()
	if err := tbl.Update("nope", Resource{Host: "x"}); !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestTable_RemoveAndList(t *testing.T) {
	tbl := NewTable()
	tbl.Add(Resource{Name: "b"})
	tbl.Add(Resource{Name: "a"})
	list := tbl.List()
	if len(list) != 2 || list[0].Name != "a" {
		t.Fatalf("List = %+v", list)
	}
	tbl.Remove("a")
	if _, ok := tbl.Find("a"); ok {
		t.Error("a still present after Remove")
	}
}

func TestTable_RemoveStopsRefresh(t *testing.T) {
	tbl := NewTable()
	ref := NewRefresher(nil)
	defer ref.StopAll()
	tbl.SetRefresher(ref)
	tbl.Add(Resource{Name: "cam", Refresh: 1})

	var n atomic.Int32
	ref.Start("cam", 2*time.Millisecond, func() error {
		n.Add(1)
		return nil
	})
	deadline := time.Now().Add(time.Second)
	for n.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if n.Load() == 0 {
		t.Fatal("refresh never ran")
	}

	if !tbl.Remove("cam") {
		t.Fatal("Remove reported cam missing")
	}
	if ref.Active("cam") {
		t.Error("schedule still active after Remove")
	}
	time.Sleep(10 * time.Millisecond)
	before := n.Load()
	time.Sleep(20 * time.Millisecond)
	if n.Load() != before {
		t.Errorf("refresh kept running after Remove: %d -> %d", before, n.Load())
	}
	if tbl.Remove("cam") {
		t.Error("second Remove reported cam present")
	}
}

func TestMakeURL(t *testing.T) {
	cases := []struct {
		r    Resource
		want string
	}{
		{Resource{Protocol: "http", Host: "cam", Path: "img", File: "a.jpg"}, "http://cam/img/a.jpg"},
		{Resource{Protocol: "http", Host: "cam", File: "a.jpg"}, "http://cam/a.jpg"},
		{Resource{Protocol: "ftp", Host: "cam", User: "u", Password: "p", File: "a.jpg"}, "ftp://u:p@cam/a.jpg"},
		{Resource{Host: "cam"}, "http://cam"},
	}
	for _, c := range cases {
		if got := MakeURL(c.r); got != c.want {
			t.Errorf("MakeURL(%+v) = %q, want %q", c.r, got, c.want)
		}
	}
}

func TestRefresher_RunsAndStops(t *testing.T) {
	r := NewRefresher(nil)
	var n atomic.Int32
	r.Start("cam", 5*time.Millisecond, func() error {
		n.Add(1)
		return nil
	})
	deadline := time.Now().Add(time.Second)
	for n.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if n.Load() < 2 {
		t.Fatalf("refresh ran %d times", n.Load())
	}
	r.Stop("cam")
	if r.Active("cam") {
		t.Error("still active after Stop")
	}
}

func TestRefresher_SelfCancelsOnError(t *testing.T) {
	r := NewRefresher(nil)
	r.Start("cam", 5*time.Millisecond, func() error {
		return fmt.Errorf("element missing")
	})
	deadline := time.Now().Add(time.Second)
	for r.Active("cam") && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if r.Active("cam") {
		t.Error("schedule did not cancel itself after error")
	}
}

func TestRefresher_RestartReplacesToken(t *testing.T) {
	r := NewRefresher(nil)
	defer r.StopAll()
	first := r.Start("cam", time.Hour, func() error { return nil })
	second := r.Start("cam", time.Hour, func() error { return nil })
	if first == second {
		t.Fatal("tokens should differ")
	}
	r.stopToken("cam", first)
	if !r.Active("cam") {
		t.Error("stale token cancelled the newer schedule")
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFetcher_Success(t *testing.T) {
	data := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer srv.Close()

	f := &Fetcher{Client: srv.Client(), Attempts: 3, Delay: time.Millisecond}
	img, err := f.Fetch(context.Background(), srv.URL+"/a.png")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if img.Bounds().Dx() != 2 {
		t.Errorf("width = %d", img.Bounds().Dx())
	}
}

func TestFetcher_RetriesThenSucceeds(t *testing.T) {
	data := pngBytes(t)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "not yet", http.StatusServiceUnavailable)
			return
		}
		w.Write(data)
	}))
	defer srv.Close()

	f := &Fetcher{Client: srv.Client(), Attempts: 5, Delay: time.Millisecond}
	if _, err := f.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestFetcher_BudgetExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := &Fetcher{Client: srv.Client(), Attempts: 3, Delay: time.Millisecond}
	_, err := f.Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrFetchBudget) {
		t.Fatalf("err = %v, want ErrFetchBudget", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestFetcher_BudgetBoundsSlowServer(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	f := &Fetcher{Client: srv.Client(), Attempts: 10, Delay: 10 * time.Millisecond, Budget: 50 * time.Millisecond}
	start := time.Now()
	_, err := f.Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrFetchBudget) {
		t.Fatalf("err = %v, want ErrFetchBudget", err)
	}
	if d := time.Since(start); d > time.Second {
		t.Errorf("fetch took %v, want about the 50ms budget", d)
	}
}

func TestFetcher_CallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &Fetcher{Attempts: 3, Delay: time.Millisecond, Budget: time.Second}
	if _, err := f.Fetch(ctx, "http://127.0.0.1:1/x.png"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestNewFetcher_BoundedBudget(t *testing.T) {
	f := NewFetcher()
	if f.Budget <= 0 || f.Budget > 5*time.Second {
		t.Errorf("Budget = %v", f.Budget)
	}
	if f.Client.Timeout > f.Budget {
		t.Errorf("per-attempt timeout %v exceeds budget %v", f.Client.Timeout, f.Budget)
	}
}

func TestDecode_Garbage(t *testing.T) {
	if _, err := Decode([]byte("nope"), "image/png", "x.png"); err == nil {
		t.Error("expected decode error")
	}
}
