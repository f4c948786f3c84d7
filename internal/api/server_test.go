package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beekhof/tripcal/internal/api"
	"github.com/beekhof/tripcal/internal/event"
	"github.com/beekhof/tripcal/internal/ics"
	"github.com/beekhof/tripcal/internal/kv"
	"github.com/beekhof/tripcal/internal/query"
	"github.com/beekhof/tripcal/internal/store"
	tripsync "github.com/beekhof/tripcal/internal/sync"
)

// ---- helpers ---------------------------------------------------------------

type fixture struct {
	handler http.Handler
	store   *store.Store
	query   *query.Engine
}

func newFixture(t *testing.T, backend kv.Store) *fixture {
	t.Helper()
	if backend == nil {
		backend = kv.NewMemory()
	}
	st := store.New(backend, "tester", nil)
	require.NoError(t, st.Load(context.Background()))
	q := query.NewEngine(st)
	engine := tripsync.NewEngine(st, time.UTC, nil)
	srv := api.NewServer(st, q, engine, ics.Options{CalendarName: "Teste", Timezone: "UTC"}, nil)
	return &fixture{handler: srv.Routes(), store: st, query: q}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	var req *http.Request
	if reader != nil {
		req = httptest.NewRequest(method, target, reader)
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (f *fixture) create(t *testing.T, body string) event.CalendarEvent {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/events", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[event.CalendarEvent](t, rec)
}

// failingKV accepts reads and fails every write.
type failingKV struct{ *kv.Memory }

func (failingKV) Set(context.Context, string, []byte) error { return errors.New("disk full") }

// ---- health ----------------------------------------------------------------

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

// ---- events ----------------------------------------------------------------

func TestCreateEvent(t *testing.T) {
	f := newFixture(t, nil)

	e := f.create(t, `{"title":"Museu","startDate":"2026-06-02","startTime":"10:00","type":"culture"}`)
	assert.Equal(t, "Museu", e.Title)
	assert.Equal(t, event.TypeCulture, e.Type)
	assert.True(t, f.store.Has(e.ID))
}

func TestCreateEvent_Validation(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/events", `{"title":"","startDate":"02/06/2026"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "validation_error", body.Error.Code)
	assert.Equal(t, "title is required", body.Error.Message)

	rec = f.do(t, http.MethodPost, "/events", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/events", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateEvent_PersistFailure(t *testing.T) {
	f := newFixture(t, failingKV{kv.NewMemory()})

	rec := f.do(t, http.MethodPost, "/events", `{"title":"x","startDate":"02/06/2026"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "persist_error", decode[errorBody](t, rec).Error.Code)
	assert.Len(t, f.store.Events(), 1, "memory keeps the change")
}

func TestListEvents_DateAndFilters(t *testing.T) {
	f := newFixture(t, nil)
	f.create(t, `{"title":"Hotel","startDate":"10/01/2026","endDate":"12/01/2026","allDay":true,"type":"accommodation","tripId":"t1"}`)
	f.create(t, `{"title":"Jantar","startDate":"11/01/2026","startTime":"20:00","type":"meal","tripId":"t1"}`)
	f.create(t, `{"title":"Voo","startDate":"20/01/2026","startTime":"08:00","type":"flight","tripId":"t2"}`)

	titles := func(rec *httptest.ResponseRecorder) []string {
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out []string
		for _, e := range decode[[]event.CalendarEvent](t, rec) {
			out = append(out, e.Title)
		}
		return out
	}

	assert.Equal(t, []string{"Hotel", "Jantar", "Voo"}, titles(f.do(t, http.MethodGet, "/events", "")))
	assert.Equal(t, []string{"Hotel", "Jantar"}, titles(f.do(t, http.MethodGet, "/events?date=11/01/2026", "")))
	assert.Equal(t, []string{"Hotel", "Jantar"}, titles(f.do(t, http.MethodGet, "/events?from=2026-01-11&to=2026-01-15", "")))
	assert.Equal(t, []string{"Jantar"}, titles(f.do(t, http.MethodGet, "/events?date=11/01/2026&type=meal", "")))
	assert.Equal(t, []string{"Voo"}, titles(f.do(t, http.MethodGet, "/events?trip=t2", "")))
	assert.Equal(t, []string{"Jantar"}, titles(f.do(t, http.MethodGet, "/events?search=JANT", "")))

	rec := f.do(t, http.MethodGet, "/events?date=banana", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUpdateDeleteEvent(t *testing.T) {
	f := newFixture(t, nil)
	e := f.create(t, `{"title":"Old","startDate":"02/06/2026","startTime":"09:00"}`)

	rec := f.do(t, http.MethodGet, "/events/"+e.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPatch, "/events/"+e.ID, `{"title":"New","reminder":15}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[event.CalendarEvent](t, rec)
	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, 15, updated.Reminder)

	rec = f.do(t, http.MethodPatch, "/events/"+e.ID, `{"endDate":"01/01/2020"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodPatch, "/events/"+e.ID, `{"endDate":"04/06/2026"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPatch, "/events/"+e.ID, `{"endDate":"31/02/2026"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid end date", decode[errorBody](t, rec).Error.Message)
	got, _ := f.store.Get(e.ID)
	require.NotNil(t, got.EndDate)
	assert.Equal(t, "04/06/2026", got.EndDate.String())

	rec = f.do(t, http.MethodDelete, "/events/"+e.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, f.store.Has(e.ID))

	for _, method := range []string{http.MethodGet, http.MethodPatch, http.MethodDelete} {
		rec = f.do(t, method, "/events/"+e.ID, `{}`)
		assert.Equal(t, http.StatusNotFound, rec.Code, method)
	}
}

func TestMoveAndToggle(t *testing.T) {
	f := newFixture(t, nil)
	e := f.create(t, `{"title":"Passeio","startDate":"02/06/2026","startTime":"09:00","endTime":"11:00"}`)

	rec := f.do(t, http.MethodPost, "/events/"+e.ID+"/move", `{"startDate":"05/06/2026","startTime":"14:00"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decode[event.CalendarEvent](t, rec)
	assert.Equal(t, "05/06/2026", moved.StartDate.String())
	assert.Equal(t, "14:00", moved.StartTime)
	assert.Equal(t, "11:00", moved.EndTime)

	rec = f.do(t, http.MethodPost, "/events/"+e.ID+"/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[event.CalendarEvent](t, rec).Completed)

	rec = f.do(t, http.MethodPost, "/events/missing/toggle", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventLink(t *testing.T) {
	f := newFixture(t, nil)
	e := f.create(t, `{"title":"Hotel","startDate":"01/06/2026","allDay":true}`)

	rec := f.do(t, http.MethodGet, "/events/"+e.ID+"/link", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Contains(t, body["url"], "https://www.google.com/calendar/render?")
	assert.Contains(t, body["url"], "dates=20260601%2F20260602")
}

// ---- filters ---------------------------------------------------------------

func TestFilters(t *testing.T) {
	f := newFixture(t, nil)
	f.create(t, `{"title":"A","startDate":"01/06/2026","type":"meal"}`)
	f.create(t, `{"title":"B","startDate":"01/06/2026","type":"flight"}`)

	rec := f.do(t, http.MethodPatch, "/filters", `{"type":"meal"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, query.Filter{Type: "meal", TripID: query.All}, decode[query.Filter](t, rec))

	rec = f.do(t, http.MethodGet, "/events", "")
	assert.Len(t, decode[[]event.CalendarEvent](t, rec), 1)

	rec = f.do(t, http.MethodDelete, "/filters", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, query.DefaultFilter(), f.query.Filter())
}

// ---- export ----------------------------------------------------------------

func TestExportICS(t *testing.T) {
	f := newFixture(t, nil)
	f.create(t, `{"title":"Hotel","startDate":"01/03/2026","allDay":true}`)

	rec := f.do(t, http.MethodGet, "/export.ics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ics.MIMEType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment; filename=")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".ics")

	body := rec.Body.String()
	assert.Contains(t, body, "DTSTART;VALUE=DATE:20260301\r\n")
	assert.Contains(t, body, "DTEND;VALUE=DATE:20260302\r\n")
}

func TestExportICS_NoEvents(t *testing.T) {
	f := newFixture(t, nil)
	f.create(t, `{"title":"Hotel","startDate":"01/03/2026","allDay":true,"type":"accommodation"}`)

	rec := f.do(t, http.MethodGet, "/export.ics?type=flight", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no_events", decode[errorBody](t, rec).Error.Code)
}

// ---- sync ------------------------------------------------------------------

func TestSyncTrips_Idempotent(t *testing.T) {
	f := newFixture(t, nil)
	body := `[{"id":"t1","title":"Lisboa","destination":"Lisboa","startDate":"01/06/2026","endDate":"05/06/2026"}]`

	rec := f.do(t, http.MethodPost, "/sync/trips", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, tripsync.Result{Created: 2}, decode[tripsync.Result](t, rec))

	rec = f.do(t, http.MethodPost, "/sync/trips", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tripsync.Result{Skipped: 1}, decode[tripsync.Result](t, rec))

	assert.True(t, f.store.Has("trip_start_t1"))
	assert.True(t, f.store.Has("trip_end_t1"))
}

func TestSyncActivitiesAndTransports(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/sync/activities", `[]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "trip parameter is required")

	rec = f.do(t, http.MethodPost, "/sync/activities?trip=t1",
		`[{"id":"a1","date":"02/06/2026","time":"10:00","title":"Museu","type":"culture"}]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[tripsync.Result](t, rec).Created)

	rec = f.do(t, http.MethodPost, "/sync/transports?trip=t1",
		`[{"id":"x1","type":"bus","operator":"Rede Expressos","reference":"123","departureDate":"03/06/2026","departureTime":"07:00","arrivalTime":"10:00"}]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[tripsync.Result](t, rec).Created)

	tr, ok := f.store.Get("transport_x1")
	require.True(t, ok)
	assert.Equal(t, "Ônibus: Rede Expressos 123", tr.Title)
}

func TestImportICS(t *testing.T) {
	f := newFixture(t, nil)
	doc := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//t//EN\r\n" +
		"BEGIN:VEVENT\r\nUID:u1\r\nDTSTAMP:20260101T000000Z\r\nDTSTART;VALUE=DATE:20260610\r\nSUMMARY:Feriado\r\nEND:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	req := httptest.NewRequest(http.MethodPost, "/import", bytes.NewBufferString(doc))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[tripsync.Result](t, rec).Created)
	assert.True(t, f.store.Has("ics_u1"))

	rec = f.do(t, http.MethodPost, "/import", "garbage")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMaxBodySize(t *testing.T) {
	f := newFixture(t, nil)
	body := `[` + strings.Repeat(" ", 5<<20) + `]`

	rec := f.do(t, http.MethodPost, "/sync/trips", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestMaxBodySize_UnknownLength(t *testing.T) {
	f := newFixture(t, nil)
	body := io.MultiReader(strings.NewReader(`[`), strings.NewReader(strings.Repeat(" ", 5<<20)), strings.NewReader(`]`))

	req := httptest.NewRequest(http.MethodPost, "/sync/trips", body)
	req.ContentLength = -1
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	eb := decode[errorBody](t, rec)
	assert.Equal(t, "too_large", eb.Error.Code)
	assert.Equal(t, "request body exceeds 4194304 bytes", eb.Error.Message)
	assert.Empty(t, f.store.Events())
}
