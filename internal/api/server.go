// Package api exposes the event store, queries, sync and export over HTTP.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/beekhof/tripcal/internal/ics"
	"github.com/beekhof/tripcal/internal/logger"
	"github.com/beekhof/tripcal/internal/query"
	"github.com/beekhof/tripcal/internal/store"
	tripsync "github.com/beekhof/tripcal/internal/sync"
)

// maxBodyBytes bounds request bodies. Source lists and imported calendars
// are the largest payloads.
const maxBodyBytes = 4 << 20

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	store  *store.Store
	query  *query.Engine
	engine *tripsync.Engine
	export ics.Options
	log    *logger.Logger
}

// NewServer creates a Server. export configures the calendar header of
// exported documents.
func NewServer(st *store.Store, q *query.Engine, engine *tripsync.Engine, export ics.Options, log *logger.Logger) *Server {
	return &Server{
		store:  st,
		query:  q,
		engine: engine,
		export: export,
		log:    logger.OrNop(log).Named("api"),
	}
}

// Routes returns the router with all endpoints and middleware.
//
// Middleware order: RequestID, RealIP, request logging, Recoverer, body limit.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(RequestLogger(s.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(MaxBodySize(maxBodyBytes))

	r.Get("/health", s.health)

	r.Route("/events", func(r chi.Router) {
		r.Get("/", s.listEvents)
		r.Post("/", s.createEvent)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getEvent)
			r.Patch("/", s.updateEvent)
			r.Delete("/", s.deleteEvent)
			r.Post("/move", s.moveEvent)
			r.Post("/toggle", s.toggleEvent)
			r.Get("/link", s.eventLink)
		})
	})

	r.Get("/export.ics", s.exportICS)
	r.Post("/import", s.importICS)

	r.Route("/sync", func(r chi.Router) {
		r.Post("/trips", s.syncTrips)
		r.Post("/activities", s.syncActivities)
		r.Post("/transports", s.syncTransports)
	})

	r.Route("/filters", func(r chi.Router) {
		r.Get("/", s.getFilters)
		r.Patch("/", s.setFilters)
		r.Delete("/", s.resetFilters)
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"events": len(s.store.Events()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
