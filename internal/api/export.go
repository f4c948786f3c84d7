package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/beekhof/tripcal/internal/event"
	"github.com/beekhof/tripcal/internal/ics"
)

// exportICS serves the selected events as an iCalendar attachment. It
// accepts the same parameters as GET /events.
func (s *Server) exportICS(w http.ResponseWriter, r *http.Request) {
	events, err := s.selectEvents(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := ics.Encode(&buf, events, s.export); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", ics.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ics.Filename(s.export)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// importICS adds the VEVENTs of the iCalendar document in the body.
func (s *Server) importICS(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.ImportICS(r.Context(), r.Body)
	if err != nil {
		if !errors.Is(err, event.ErrPersist) {
			err = badRequest("%v", err)
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
