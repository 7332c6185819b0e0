package library

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ac-schroeder/DJApp/internal/logger"
)

// Library file rows: trackID,fileName,absoluteFilePath,length. No header.
const csvFields = 4

// Save writes every track to the library file, replacing it atomically.
func (l *Library) Save() error {
	if l.cfg.Path == "" {
		return fmt.Errorf("%w: no library file configured", ErrPersistence)
	}
	tracks := l.Tracks()

	if err := writeFileAtomic(l.cfg.Path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		for _, t := range tracks {
			if err := cw.Write([]string{strconv.Itoa(t.ID), t.FileName, t.Path, t.Length}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	}); err != nil {
		err = fmt.Errorf("%w: save %s: %v", ErrPersistence, l.cfg.Path, err)
		logger.Error("library save failed", logger.ErrorField(err))
		return err
	}

	logger.Debug("library saved", logger.String("path", l.cfg.Path), logger.Int("tracks", len(tracks)))
	return nil
}

func writeFileAtomic(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load replaces the library contents with the library file. A missing file
// is a first run and leaves the library empty. Rows whose audio file no
// longer exists, or that do not parse, are logged and skipped.
//
// The counter becomes the largest ID seen in the file, or stays where it is
// if that is larger, so IDs from the file are never handed out again.
func (l *Library) Load() error {
	f, err := os.Open(l.cfg.Path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("no library file, starting empty", logger.String("path", l.cfg.Path))
		l.replace(nil, 0)
		return nil
	}
	if err != nil {
		l.replace(nil, 0)
		err = fmt.Errorf("%w: open %s: %v", ErrPersistence, l.cfg.Path, err)
		logger.Error("library load failed", logger.ErrorField(err))
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var (
		tracks  []Track
		maxID   int
		skipped int
	)
	for line := 1; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			logger.Warn("skipping malformed library row", logger.Int("line", line), logger.ErrorField(err))
			skipped++
			continue
		}
		if err != nil {
			l.replace(nil, 0)
			err = fmt.Errorf("%w: read %s: %v", ErrPersistence, l.cfg.Path, err)
			logger.Error("library load failed", logger.ErrorField(err))
			return err
		}

		t, err := parseRow(rec)
		if err != nil {
			logger.Warn("skipping malformed library row", logger.Int("line", line), logger.ErrorField(err))
			skipped++
			continue
		}
		maxID = max(maxID, t.ID)

		if _, err := os.Stat(t.Path); err != nil {
			logger.Warn("skipping library entry",
				logger.Int("id", t.ID),
				logger.ErrorField(fmt.Errorf("%w: %s: %v", ErrMissingFile, t.Path, err)),
			)
			skipped++
			continue
		}
		tracks = append(tracks, t)
	}

	l.replace(tracks, maxID)
	logger.Info("library loaded",
		logger.String("path", l.cfg.Path),
		logger.Int("tracks", len(tracks)),
		logger.Int("skipped", skipped),
		logger.Int("counter", l.Counter()),
	)
	return nil
}

func parseRow(rec []string) (Track, error) {
	if len(rec) != csvFields {
		return Track{}, fmt.Errorf("want %d fields, got %d", csvFields, len(rec))
	}
	id, err := strconv.Atoi(rec[0])
	if err != nil || id < 1 {
		return Track{}, fmt.Errorf("bad track id %q", rec[0])
	}
	return Track{ID: id, FileName: rec[1], Path: rec[2], Length: rec[3]}, nil
}

func (l *Library) replace(tracks []Track, maxID int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tracks = tracks
	l.counter = max(l.counter, maxID)
}
