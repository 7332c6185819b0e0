package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/ac-schroeder/DJApp/internal/audio"
	"github.com/ac-schroeder/DJApp/internal/deck"
	"github.com/ac-schroeder/DJApp/internal/library"
	"github.com/ac-schroeder/DJApp/internal/logger"
)

const (
	defaultOverviewBins = 200
	maxOverviewBins     = 10000
	maxEventBody        = 64 << 10
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("write response", logger.ErrorField(err))
	}
}

// writeError maps domain errors onto status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, library.ErrTrackNotFound):
		status = http.StatusNotFound
	case errors.Is(err, audio.ErrOutOfRange):
		status = http.StatusBadRequest
	case errors.Is(err, audio.ErrUnreadableSource):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, audio.ErrNotLoaded):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func pathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	return id, err == nil
}

// --- Library ---

func (s *Server) listTracks(w http.ResponseWriter, r *http.Request) {
	if q := r.URL.Query().Get("q"); q != "" {
		writeJSON(w, http.StatusOK, s.lib.Search(q))
		return
	}
	writeJSON(w, http.StatusOK, s.lib.Tracks())
}

func (s *Server) addTrack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Locator string `json:"locator"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxEventBody)).Decode(&req); err != nil || req.Locator == "" {
		badRequest(w, "locator required")
		return
	}
	t, err := s.lib.Add(req.Locator)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) getTrack(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid track id")
		return
	}
	t, err := s.lib.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) removeTrack(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid track id")
		return
	}
	s.lib.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clearTracks(w http.ResponseWriter, r *http.Request) {
	s.lib.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) saveLibrary(w http.ResponseWriter, r *http.Request) {
	if err := s.lib.Save(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) exportM3U(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "audio/x-mpegurl")
	w.Header().Set("Content-Disposition", `attachment; filename="library.m3u"`)
	io.WriteString(w, s.lib.ExportM3U())
}

// --- Decks ---

func (s *Server) controller(w http.ResponseWriter, r *http.Request) (*deck.Controller, bool) {
	name := mux.Vars(r)["deck"]
	c, ok := s.decks[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown deck " + strconv.Quote(name)})
	}
	return c, ok
}

func (s *Server) listDecks(w http.ResponseWriter, r *http.Request) {
	out := make([]deck.Status, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.decks[name].Status())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getDeck(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.Status())
}

func (s *Server) deckEvent(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		badRequest(w, "read body")
		return
	}
	ev, err := deck.DecodeEvent(body)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := c.Handle(ev); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Status())
}

func (s *Server) loadTrack(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid track id")
		return
	}
	if _, err := c.LoadTrack(s.lib, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Status())
}

func (s *Server) overview(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	bins := defaultOverviewBins
	if v := r.URL.Query().Get("bins"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxOverviewBins {
			badRequest(w, "bins must be 1-"+strconv.Itoa(maxOverviewBins))
			return
		}
		bins = n
	}
	peaks, err := c.Deck().Overview(bins)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deck": c.Name(), "peaks": peaks})
}
