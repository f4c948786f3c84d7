// Package sync derives calendar events from trips, itinerary activities and
// transport bookings, imports external iCalendar documents and publishes the
// resulting calendar to Google Calendar.
package sync

import "github.com/beekhof/tripcal/internal/dates"

// Trip is a planned trip. Only its id, dates and naming fields are read.
type Trip struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Destination string     `json:"destination" yaml:"destination"`
	StartDate   dates.Date `json:"startDate" yaml:"start_date"`
	EndDate     dates.Date `json:"endDate" yaml:"end_date"`

	// Activities and Transports are only used by source files, which may
	// nest a trip's records under it.
	Activities []ItineraryActivity `json:"activities,omitempty" yaml:"activities,omitempty"`
	Transports []Transport         `json:"transports,omitempty" yaml:"transports,omitempty"`
}

// ItineraryActivity is one planned activity of a trip.
type ItineraryActivity struct {
	ID             string     `json:"id" yaml:"id"`
	Date           dates.Date `json:"date" yaml:"date"`
	Time           string     `json:"time,omitempty" yaml:"time,omitempty"`
	Duration       *int       `json:"duration,omitempty" yaml:"duration,omitempty"`
	Title          string     `json:"title" yaml:"title"`
	Notes          string     `json:"notes,omitempty" yaml:"notes,omitempty"`
	Type           string     `json:"type" yaml:"type"`
	Location       string     `json:"location,omitempty" yaml:"location,omitempty"`
	LocationDetail string     `json:"locationDetail,omitempty" yaml:"location_detail,omitempty"`
	Completed      bool       `json:"completed" yaml:"completed"`
}

// Transport is one booked transport leg.
type Transport struct {
	ID                string     `json:"id" yaml:"id"`
	Type              string     `json:"type" yaml:"type"`
	Operator          string     `json:"operator" yaml:"operator"`
	Reference         string     `json:"reference" yaml:"reference"`
	DepartureDate     dates.Date `json:"departureDate" yaml:"departure_date"`
	DepartureTime     string     `json:"departureTime" yaml:"departure_time"`
	ArrivalTime       string     `json:"arrivalTime" yaml:"arrival_time"`
	DepartureLocation string     `json:"departureLocation" yaml:"departure_location"`
	ArrivalLocation   string     `json:"arrivalLocation" yaml:"arrival_location"`
	DepartureCity     string     `json:"departureCity,omitempty" yaml:"departure_city,omitempty"`
	ArrivalCity       string     `json:"arrivalCity,omitempty" yaml:"arrival_city,omitempty"`
	Route             string     `json:"route,omitempty" yaml:"route,omitempty"`
}

// Result counts the outcome of one sync call.
type Result struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Add returns the field-wise sum of r and o.
func (r Result) Add(o Result) Result {
	return Result{
		Created: r.Created + o.Created,
		Skipped: r.Skipped + o.Skipped,
		Failed:  r.Failed + o.Failed,
	}
}
