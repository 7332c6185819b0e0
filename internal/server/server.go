package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ac-schroeder/DJApp/internal/deck"
	"github.com/ac-schroeder/DJApp/internal/library"
)

// Options holds the optional parts of the control API.
type Options struct {
	PositionPoll time.Duration // position feed interval, 100ms when zero
	Monitor      http.Handler  // GET /stream, mp3 master monitor
	WebRTC       http.Handler  // POST /offer, opus master monitor
}

// Server is the HTTP control surface over the library and the decks.
type Server struct {
	lib    *library.Library
	decks  map[string]*deck.Controller
	order  []string
	poll   time.Duration
	router *mux.Router
}

// New builds the router. Deck names come from each controller.
func New(lib *library.Library, decks []*deck.Controller, opts Options) *Server {
	s := &Server{
		lib:   lib,
		decks: make(map[string]*deck.Controller, len(decks)),
		poll:  opts.PositionPoll,
	}
	if s.poll <= 0 {
		s.poll = 100 * time.Millisecond
	}
	for _, c := range decks {
		s.decks[c.Name()] = c
		s.order = append(s.order, c.Name())
	}

	r := mux.NewRouter()
	r.Use(cors)

	r.HandleFunc("/api/tracks", s.listTracks).Methods(http.MethodGet)
	r.HandleFunc("/api/tracks", s.addTrack).Methods(http.MethodPost)
	r.HandleFunc("/api/tracks", s.clearTracks).Methods(http.MethodDelete)
	r.HandleFunc("/api/tracks/{id:[0-9]+}", s.getTrack).Methods(http.MethodGet)
	r.HandleFunc("/api/tracks/{id:[0-9]+}", s.removeTrack).Methods(http.MethodDelete)
	r.HandleFunc("/api/library/save", s.saveLibrary).Methods(http.MethodPost)
	r.HandleFunc("/api/library/export.m3u", s.exportM3U).Methods(http.MethodGet)

	r.HandleFunc("/api/decks", s.listDecks).Methods(http.MethodGet)
	r.HandleFunc("/api/decks/{deck}", s.getDeck).Methods(http.MethodGet)
	r.HandleFunc("/api/decks/{deck}/events", s.deckEvent).Methods(http.MethodPost)
	r.HandleFunc("/api/decks/{deck}/load/{id:[0-9]+}", s.loadTrack).Methods(http.MethodPost)
	r.HandleFunc("/api/decks/{deck}/overview", s.overview).Methods(http.MethodGet)

	r.HandleFunc("/ws/positions", s.positions)

	if opts.Monitor != nil {
		r.Handle("/stream", opts.Monitor).Methods(http.MethodGet)
	}
	if opts.WebRTC != nil {
		r.Handle("/offer", opts.WebRTC).Methods(http.MethodPost, http.MethodOptions)
	}

	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
