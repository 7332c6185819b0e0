package library

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	l, dir := newTestLibrary(t)
	for _, p := range touch(t, dir, "track1.mp3", "a, b.ogg", "track2.wav") {
		mustAdd(t, l, p)
	}
	l.Remove(3)
	if err := l.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	fresh := New(Config{Path: l.Path()}, testDurations)
	if err := fresh.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, want := fresh.Tracks(), l.Tracks()
	if len(got) != len(want) {
		t.Fatalf("loaded %d tracks, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("track[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	if fresh.Counter() != 2 {
		t.Errorf("Counter after load = %d, want 2", fresh.Counter())
	}
	if tr := mustAdd(t, fresh, filepath.Join(dir, "track3.mp3")); tr.ID == 1 || tr.ID == 2 {
		t.Errorf("new ID %d collides with a loaded track", tr.ID)
	}
}

func TestSaveQuotesCommas(t *testing.T) {
	l, dir := newTestLibrary(t)
	mustAdd(t, l, touch(t, dir, "a, b.ogg")[0])
	if err := l.Save(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), `1,"a, b.ogg",`) {
		t.Errorf("saved row = %q, want quoted file name", data)
	}
}

func TestLoadSkipsStaleEntries(t *testing.T) {
	l, dir := newTestLibrary(t)
	p := touch(t, dir, "track1.mp3", "track2.wav", "track3.mp3")
	for _, path := range p {
		mustAdd(t, l, path)
	}
	if err := l.Save(); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(p[1]); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(p[2]); err != nil {
		t.Fatal(err)
	}

	fresh := New(Config{Path: l.Path()}, testDurations)
	if err := fresh.Load(); err != nil {
		t.Fatalf("Load with stale entries = %v, want nil", err)
	}
	if got := fresh.Tracks(); !sameIDs(got, 1) {
		t.Errorf("Tracks = %v, want [1]", ids(got))
	}
	// The stale last row still counts toward the counter.
	if fresh.Counter() != 3 {
		t.Errorf("Counter = %d, want 3", fresh.Counter())
	}
}

func TestLoadSkipsMalformedRows(t *testing.T) {
	dir := t.TempDir()
	p := touch(t, dir, "track1.mp3", "track2.wav")
	csv := strings.Join([]string{
		"1,track1.mp3," + p[0] + ",2m 30s",
		"not,enough",
		"x,track2.wav," + p[1] + ",0m 45s",
		"9,track2.wav," + p[1] + ",0m 45s",
		"",
	}, "\n")
	path := filepath.Join(dir, "library.csv")
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	l := New(Config{Path: path}, testDurations)
	if err := l.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := l.Tracks(); !sameIDs(got, 1, 9) {
		t.Errorf("Tracks = %v, want [1 9]", ids(got))
	}
	if l.Counter() != 9 {
		t.Errorf("Counter = %d, want 9", l.Counter())
	}
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	l, _ := newTestLibrary(t)
	if err := l.Load(); err != nil {
		t.Fatalf("Load(missing) = %v, want nil", err)
	}
	if l.Len() != 0 {
		t.Errorf("Len = %d, want 0", l.Len())
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	dir := t.TempDir()
	l := New(Config{Path: dir}, testDurations) // a directory cannot be read as a file

	if err := l.Load(); !errors.Is(err, ErrPersistence) {
		t.Errorf("Load(directory) = %v, want ErrPersistence", err)
	}
	if l.Len() != 0 {
		t.Errorf("Len = %d, want 0", l.Len())
	}
}

func TestSaveFailure(t *testing.T) {
	if err := New(Config{}, testDurations).Save(); !errors.Is(err, ErrPersistence) {
		t.Errorf("Save(no path) = %v, want ErrPersistence", err)
	}

	dir := t.TempDir()
	blocker := touch(t, dir, "file")[0]
	l := New(Config{Path: filepath.Join(blocker, "library.csv")}, testDurations)
	if err := l.Save(); !errors.Is(err, ErrPersistence) {
		t.Errorf("Save(under a file) = %v, want ErrPersistence", err)
	}
}

func TestSaveOnMutation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "library.csv")
	l := New(Config{Path: path, SaveOnMutation: true}, testDurations)
	p := touch(t, dir, "track1.mp3", "track2.wav")

	mustAdd(t, l, p[0])
	mustAdd(t, l, p[1])
	l.Remove(1)

	fresh := New(Config{Path: path}, testDurations)
	if err := fresh.Load(); err != nil {
		t.Fatal(err)
	}
	if got := fresh.Tracks(); !sameIDs(got, 2) {
		t.Errorf("persisted tracks = %v, want [2]", ids(got))
	}
}
