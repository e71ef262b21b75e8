// Package api serves the control panel's HTTP surface: state reads, rule
// and connection writes, system controls, analytics exports and a live
// WebSocket stream of state changes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/moorebrett0/moodstage/internal/analytics"
	"github.com/moorebrett0/moodstage/internal/engine"
	"github.com/moorebrett0/moodstage/internal/mood"
	"github.com/moorebrett0/moodstage/internal/stage"
)

// Server holds the handlers' dependencies.
type Server struct {
	ctx      context.Context // engine runs are scoped to this, not to a request
	store    *stage.Store
	engine   *engine.Engine
	tracker  *analytics.Tracker
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer wires a server. tracker may be nil, in which case the analytics
// routes answer 503.
func NewServer(ctx context.Context, store *stage.Store, eng *engine.Engine, tracker *analytics.Tracker, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		ctx:     ctx,
		store:   store,
		engine:  eng,
		tracker: tracker,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The panel is served from anywhere on the venue LAN.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Router returns the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.health).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	r.HandleFunc("/api/state", s.getState).Methods("GET")
	r.HandleFunc("/api/moods", s.listMoods).Methods("GET")
	r.HandleFunc("/api/mood", s.setMood).Methods("POST")

	r.HandleFunc("/api/rules", s.listRules).Methods("GET")
	r.HandleFunc("/api/rules", s.createRule).Methods("POST")
	r.HandleFunc("/api/rules/preset/{name}", s.applyPreset).Methods("POST")
	r.HandleFunc("/api/rules/{id}", s.getRule).Methods("GET")
	r.HandleFunc("/api/rules/{id}", s.updateRule).Methods("PUT", "PATCH")
	r.HandleFunc("/api/rules/{id}", s.deleteRule).Methods("DELETE")

	r.HandleFunc("/api/connections", s.listConnections).Methods("GET")
	r.HandleFunc("/api/connections/{name}", s.setConnection).Methods("PUT")

	r.HandleFunc("/api/system", s.getSystem).Methods("GET")
	r.HandleFunc("/api/system", s.setSystem).Methods("POST")
	r.HandleFunc("/api/system/override", s.setOverride).Methods("POST")
	r.HandleFunc("/api/system/emergency-stop", s.emergencyStop).Methods("POST")
	r.HandleFunc("/api/system/reset", s.reset).Methods("POST")
	r.HandleFunc("/api/evaluate", s.evaluate).Methods("POST")

	r.HandleFunc("/api/outputs", s.listOutputs).Methods("GET")
	r.HandleFunc("/api/outputs/{name}", s.updateOutput).Methods("PUT", "PATCH")

	r.HandleFunc("/api/analytics", s.getAnalytics).Methods("GET")
	r.HandleFunc("/api/analytics/export.xlsx", s.exportXLSX).Methods("GET")
	r.HandleFunc("/api/analytics/export.pdf", s.exportPDF).Methods("GET")

	r.HandleFunc("/api/stream", s.stream).Methods("GET")

	return r
}

// Handler wraps the router with combined-format request logging to w.
func (s *Server) Handler(w io.Writer) http.Handler {
	return handlers.LoggingHandler(w, s.Router())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps domain errors onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, mood.ErrInvalidRule), errors.Is(err, stage.ErrUnknownMood),
		errors.Is(err, stage.ErrInvalidControl):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, stage.ErrOverrideActive), errors.Is(err, stage.ErrOverrideOff):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, stage.ErrUnknownRule), errors.Is(err, stage.ErrUnknownConnection):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
