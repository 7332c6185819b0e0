package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gorilla/websocket"

	"github.com/ac-schroeder/DJApp/internal/audio"
	"github.com/ac-schroeder/DJApp/internal/deck"
	"github.com/ac-schroeder/DJApp/internal/library"
)

// --- Test helpers ---

// wavOnly decodes any *.wav path as one second of constant signal and
// reports the same for probes.
type wavOnly struct{}

func (wavOnly) Decode(path string) (beep.StreamSeekCloser, beep.Format, error) {
	if filepath.Ext(path) != ".wav" {
		return nil, beep.Format{}, fmt.Errorf("%w: %s", audio.ErrUnreadableSource, path)
	}
	frames := make([][2]float64, audio.SampleRate)
	for i := range frames {
		frames[i] = [2]float64{0.4, 0.4}
	}
	return audio.NewMemStreamer(frames), beep.Format{SampleRate: audio.SampleRate, NumChannels: 2, Precision: 2}, nil
}

func (w wavOnly) Probe(path string) (time.Duration, error) {
	if _, _, err := w.Decode(path); err != nil {
		return 0, err
	}
	return time.Second, nil
}

type fixture struct {
	srv *httptest.Server
	lib *library.Library
	dir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	lib := library.New(library.Config{Path: filepath.Join(dir, "library.csv")}, wavOnly{})

	var ctrls []*deck.Controller
	for _, name := range []string{"left", "right"} {
		d := audio.NewDeck(name, wavOnly{}, 0)
		d.PrepareToPlay(audio.FrameSize, audio.SampleRate)
		ctrls = append(ctrls, deck.NewController(d))
	}

	s := New(lib, ctrls, Options{PositionPoll: 10 * time.Millisecond})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, lib: lib, dir: dir}
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func (f *fixture) file(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(f.dir, name)
	if err := os.WriteFile(p, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("%s %s = %d, want %d", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want)
	}
}

// --- Tracks ---

func TestTrackEndpoints(t *testing.T) {
	f := newFixture(t)
	p1, p2 := f.file(t, "one.wav"), f.file(t, "Two.wav")

	resp := f.do(t, http.MethodPost, "/api/tracks", fmt.Sprintf(`{"locator":%q}`, p1))
	expectStatus(t, resp, http.StatusCreated)
	if tr := decode[library.Track](t, resp); tr.ID != 1 || tr.FileName != "one.wav" || tr.Length != "0m 1s" {
		t.Errorf("created track = %+v", tr)
	}
	expectStatus(t, f.do(t, http.MethodPost, "/api/tracks", fmt.Sprintf(`{"locator":%q}`, p2)), http.StatusCreated)

	resp = f.do(t, http.MethodGet, "/api/tracks", "")
	expectStatus(t, resp, http.StatusOK)
	if got := decode[[]library.Track](t, resp); len(got) != 2 {
		t.Errorf("GET /api/tracks = %d tracks, want 2", len(got))
	}

	resp = f.do(t, http.MethodGet, "/api/tracks?q=two", "")
	if got := decode[[]library.Track](t, resp); len(got) != 1 || got[0].ID != 2 {
		t.Errorf("search two = %+v, want track 2", got)
	}

	resp = f.do(t, http.MethodGet, "/api/tracks/2", "")
	expectStatus(t, resp, http.StatusOK)

	expectStatus(t, f.do(t, http.MethodDelete, "/api/tracks/1", ""), http.StatusNoContent)
	expectStatus(t, f.do(t, http.MethodDelete, "/api/tracks/1", ""), http.StatusNoContent)
	expectStatus(t, f.do(t, http.MethodGet, "/api/tracks/1", ""), http.StatusNotFound)

	expectStatus(t, f.do(t, http.MethodDelete, "/api/tracks", ""), http.StatusNoContent)
	if f.lib.Len() != 0 {
		t.Errorf("Len after clear = %d, want 0", f.lib.Len())
	}
}

func TestAddTrackErrors(t *testing.T) {
	f := newFixture(t)
	expectStatus(t, f.do(t, http.MethodPost, "/api/tracks", `{}`), http.StatusBadRequest)
	expectStatus(t, f.do(t, http.MethodPost, "/api/tracks", `{"locator":"/music/cover.jpg"}`), http.StatusUnprocessableEntity)
}

func TestSaveAndExport(t *testing.T) {
	f := newFixture(t)
	p := f.file(t, "one.wav")
	if _, err := f.lib.Add(p); err != nil {
		t.Fatal(err)
	}

	expectStatus(t, f.do(t, http.MethodPost, "/api/library/save", ""), http.StatusNoContent)
	if _, err := os.Stat(f.lib.Path()); err != nil {
		t.Errorf("library file not written: %v", err)
	}

	resp := f.do(t, http.MethodGet, "/api/library/export.m3u", "")
	expectStatus(t, resp, http.StatusOK)
	var sb bytes.Buffer
	if _, err := sb.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	if want := "#EXTM3U\n#EXTINF:1,one.wav\n" + p + "\n"; sb.String() != want {
		t.Errorf("export = %q, want %q", sb.String(), want)
	}
}

// --- Decks ---

func TestDeckEvents(t *testing.T) {
	f := newFixture(t)
	p := f.file(t, "one.wav")

	resp := f.do(t, http.MethodPost, "/api/decks/left/events", fmt.Sprintf(`{"type":"load","locator":%q}`, p))
	expectStatus(t, resp, http.StatusOK)
	if st := decode[deck.Status](t, resp); st.State != "stopped" || st.TrackLength != "0m 1s" {
		t.Errorf("status after load = %+v", st)
	}

	resp = f.do(t, http.MethodPost, "/api/decks/left/events", `{"type":"setGain","value":0.25}`)
	if st := decode[deck.Status](t, resp); st.Gain != 0.25 {
		t.Errorf("gain = %f, want 0.25", st.Gain)
	}

	expectStatus(t, f.do(t, http.MethodPost, "/api/decks/left/events", `{"type":"setGain","value":4}`), http.StatusBadRequest)
	expectStatus(t, f.do(t, http.MethodPost, "/api/decks/left/events", `{"type":"scratch"}`), http.StatusBadRequest)
	expectStatus(t, f.do(t, http.MethodPost, "/api/decks/right/events", `{"type":"seek","fraction":0.5}`), http.StatusConflict)
	expectStatus(t, f.do(t, http.MethodPost, "/api/decks/middle/events", `{"type":"play"}`), http.StatusNotFound)

	resp = f.do(t, http.MethodGet, "/api/decks", "")
	if got := decode[[]deck.Status](t, resp); len(got) != 2 || got[0].Name != "left" || got[1].Name != "right" {
		t.Errorf("GET /api/decks = %+v", got)
	}
}

func TestLoadTrackIntoDeck(t *testing.T) {
	f := newFixture(t)
	tr, err := f.lib.Add(f.file(t, "one.wav"))
	if err != nil {
		t.Fatal(err)
	}

	resp := f.do(t, http.MethodPost, fmt.Sprintf("/api/decks/right/load/%d", tr.ID), "")
	expectStatus(t, resp, http.StatusOK)
	if st := decode[deck.Status](t, resp); st.Locator != tr.Path {
		t.Errorf("locator = %q, want %q", st.Locator, tr.Path)
	}
	expectStatus(t, f.do(t, http.MethodPost, "/api/decks/right/load/99", ""), http.StatusNotFound)
}

func TestOverviewEndpoint(t *testing.T) {
	f := newFixture(t)
	expectStatus(t, f.do(t, http.MethodGet, "/api/decks/left/overview", ""), http.StatusConflict)

	p := f.file(t, "one.wav")
	f.do(t, http.MethodPost, "/api/decks/left/events", fmt.Sprintf(`{"type":"load","locator":%q}`, p))

	resp := f.do(t, http.MethodGet, "/api/decks/left/overview?bins=4", "")
	expectStatus(t, resp, http.StatusOK)
	got := decode[struct {
		Peaks []float64 `json:"peaks"`
	}](t, resp)
	if len(got.Peaks) != 4 || got.Peaks[0] != 0.4 {
		t.Errorf("peaks = %v, want 4 bins of 0.4", got.Peaks)
	}
	expectStatus(t, f.do(t, http.MethodGet, "/api/decks/left/overview?bins=0", ""), http.StatusBadRequest)
}

// --- Position feed ---

func TestPositionFeed(t *testing.T) {
	f := newFixture(t)
	p := f.file(t, "one.wav")
	f.do(t, http.MethodPost, "/api/decks/left/events", fmt.Sprintf(`{"type":"load","locator":%q}`, p))
	f.do(t, http.MethodPost, "/api/decks/left/events", `{"type":"seek","fraction":0.5}`)

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/positions"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	for i := 0; i < 2; i++ {
		var msg map[string]float64
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read position: %v", err)
		}
		if msg["left"] != 0.5 || msg["right"] != 0 {
			t.Errorf("positions = %v, want left 0.5 right 0", msg)
		}
	}
}
