package api

import (
	"net/http"

	tripsync "github.com/beekhof/tripcal/internal/sync"
)

func (s *Server) syncTrips(w http.ResponseWriter, r *http.Request) {
	var trips []tripsync.Trip
	if err := decodeJSON(r, &trips); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.engine.SyncFromTrips(r.Context(), trips)
	s.writeSyncResult(w, r, res, err)
}

func (s *Server) syncActivities(w http.ResponseWriter, r *http.Request) {
	tripID := r.URL.Query().Get("trip")
	if tripID == "" {
		s.writeError(w, r, badRequest("trip parameter is required"))
		return
	}

	var activities []tripsync.ItineraryActivity
	if err := decodeJSON(r, &activities); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.engine.SyncFromActivities(r.Context(), activities, tripID)
	s.writeSyncResult(w, r, res, err)
}

func (s *Server) syncTransports(w http.ResponseWriter, r *http.Request) {
	tripID := r.URL.Query().Get("trip")
	if tripID == "" {
		s.writeError(w, r, badRequest("trip parameter is required"))
		return
	}

	var transports []tripsync.Transport
	if err := decodeJSON(r, &transports); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.engine.SyncFromTransports(r.Context(), transports, tripID)
	s.writeSyncResult(w, r, res, err)
}

func (s *Server) writeSyncResult(w http.ResponseWriter, r *http.Request, res tripsync.Result, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
