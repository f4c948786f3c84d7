package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/beekhof/tripcal/internal/calendar"
	"github.com/beekhof/tripcal/internal/dates"
	"github.com/beekhof/tripcal/internal/event"
	"github.com/beekhof/tripcal/internal/query"
)

// decodeJSON reads the request body into v. A body cut off by MaxBodySize
// keeps its *http.MaxBytesError so it is reported as 413.
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return err
		case errors.Is(err, io.EOF):
			return badRequest("request body is required")
		}
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

// selectEvents returns the stored events matching the request's date and
// filter parameters, sorted chronologically. Filter parameters override the
// active filter set for this request only.
//
//	date=D          events occurring on D
//	from=D&to=D     events overlapping [from, to]
//	type, trip, search
func (s *Server) selectEvents(r *http.Request) ([]event.CalendarEvent, error) {
	params := r.URL.Query()
	filter := s.query.Filter().With(filterPatchFromQuery(params))
	events := s.store.Events()

	switch {
	case params.Get("date") != "":
		d, err := dates.Parse(params.Get("date"))
		if err != nil {
			return nil, badRequest("invalid date: %v", err)
		}
		events = query.OnDate(events, d)
	case params.Get("from") != "" || params.Get("to") != "":
		from, err := dates.Parse(params.Get("from"))
		if err != nil {
			return nil, badRequest("invalid from date: %v", err)
		}
		to, err := dates.Parse(params.Get("to"))
		if err != nil {
			return nil, badRequest("invalid to date: %v", err)
		}
		events = query.InRange(events, from, to)
	}

	out := filter.Apply(events)
	query.SortChronological(out)
	return out, nil
}

func filterPatchFromQuery(params url.Values) query.FilterPatch {
	var p query.FilterPatch
	if params.Has("type") {
		v := params.Get("type")
		p.Type = &v
	}
	if params.Has("trip") {
		v := params.Get("trip")
		p.TripID = &v
	}
	if params.Has("search") {
		v := params.Get("search")
		p.Search = &v
	}
	return p
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.selectEvents(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	var d event.Draft
	if err := decodeJSON(r, &d); err != nil {
		s.writeError(w, r, err)
		return
	}

	e, err := s.store.AddEvent(r.Context(), d)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// lookup returns the event named by the {id} URL parameter.
func (s *Server) lookup(r *http.Request) (event.CalendarEvent, error) {
	id := chi.URLParam(r, "id")
	e, ok := s.store.Get(id)
	if !ok {
		return event.CalendarEvent{}, fmt.Errorf("%w: %s", event.ErrNotFound, id)
	}
	return e, nil
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	e, err := s.lookup(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// respondCurrent writes the event after a successful mutation.
func (s *Server) respondCurrent(w http.ResponseWriter, r *http.Request, id string) {
	e, ok := s.store.Get(id)
	if !ok {
		s.writeError(w, r, fmt.Errorf("%w: %s", event.ErrNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) updateEvent(w http.ResponseWriter, r *http.Request) {
	e, err := s.lookup(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var patch event.Patch
	if err := decodeJSON(r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.UpdateEvent(r.Context(), e.ID, patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondCurrent(w, r, e.ID)
}

func (s *Server) deleteEvent(w http.ResponseWriter, r *http.Request) {
	e, err := s.lookup(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.DeleteEvent(r.Context(), e.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type moveRequest struct {
	StartDate dates.Date `json:"startDate"`
	StartTime *string    `json:"startTime,omitempty"`
}

func (s *Server) moveEvent(w http.ResponseWriter, r *http.Request) {
	e, err := s.lookup(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req moveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.MoveEvent(r.Context(), e.ID, req.StartDate, req.StartTime); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondCurrent(w, r, e.ID)
}

func (s *Server) toggleEvent(w http.ResponseWriter, r *http.Request) {
	e, err := s.lookup(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.ToggleEventComplete(r.Context(), e.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondCurrent(w, r, e.ID)
}

func (s *Server) eventLink(w http.ResponseWriter, r *http.Request) {
	e, err := s.lookup(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": calendar.GoogleCalendarURL(e)})
}

func (s *Server) getFilters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.query.Filter())
}

func (s *Server) setFilters(w http.ResponseWriter, r *http.Request) {
	var patch query.FilterPatch
	if err := decodeJSON(r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.query.SetFilters(patch))
}

func (s *Server) resetFilters(w http.ResponseWriter, _ *http.Request) {
	s.query.ResetFilters()
	writeJSON(w, http.StatusOK, s.query.Filter())
}
