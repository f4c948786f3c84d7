package event

import (
	"fmt"
	"strings"

	"github.com/beekhof/tripcal/internal/dates"
)

// Patch is a shallow partial update. Nil fields are left untouched.
type Patch struct {
	Title          *string     `json:"title,omitempty"`
	Description    *string     `json:"description,omitempty"`
	StartDate      *dates.Date `json:"startDate,omitempty"`
	EndDate        *dates.Date `json:"endDate,omitempty"`
	StartTime      *string     `json:"startTime,omitempty"`
	EndTime        *string     `json:"endTime,omitempty"`
	AllDay         *bool       `json:"allDay,omitempty"`
	Type           *Type       `json:"type,omitempty"`
	TripID         *string     `json:"tripId,omitempty"`
	Location       *string     `json:"location,omitempty"`
	LocationDetail *string     `json:"locationDetail,omitempty"`
	Completed      *bool       `json:"completed,omitempty"`
	Reminder       *int        `json:"reminder,omitempty"`
	Color          *string     `json:"color,omitempty"`
}

// Apply merges p into e and returns the result. An all-day result has its
// times cleared.
func (p Patch) Apply(e CalendarEvent) CalendarEvent {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.StartDate != nil {
		e.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		end := *p.EndDate
		e.EndDate = &end
	}
	if p.StartTime != nil {
		e.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		e.EndTime = *p.EndTime
	}
	if p.AllDay != nil {
		e.AllDay = *p.AllDay
	}
	if p.Type != nil {
		e.Type = *p.Type
	}
	if p.TripID != nil {
		e.TripID = *p.TripID
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.LocationDetail != nil {
		e.LocationDetail = *p.LocationDetail
	}
	if p.Completed != nil {
		e.Completed = *p.Completed
	}
	if p.Reminder != nil {
		e.Reminder = *p.Reminder
	}
	if p.Color != nil {
		e.Color = *p.Color
	}
	if e.AllDay {
		e.StartTime, e.EndTime = "", ""
	}
	return e
}

// Validate checks the fields p sets. Cross-field rules that need the stored
// event, such as the end date ordering, are checked by ValidateEvent.
func (p Patch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title must not be empty", ErrValidation)
	}
	if p.StartDate != nil && p.StartDate.IsZero() {
		return fmt.Errorf("%w: start date must not be empty", ErrValidation)
	}
	if p.EndDate != nil && p.EndDate.IsZero() {
		return fmt.Errorf("%w: invalid end date", ErrValidation)
	}
	if p.Type != nil && !p.Type.Valid() {
		return fmt.Errorf("%w: unknown event type %q", ErrValidation, *p.Type)
	}
	if p.Reminder != nil && *p.Reminder < 0 {
		return fmt.Errorf("%w: reminder must not be negative", ErrValidation)
	}
	for _, clock := range []*string{p.StartTime, p.EndTime} {
		if clock == nil || *clock == "" {
			continue
		}
		if _, err := dates.ParseClock(*clock); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	return nil
}

// ValidateEvent checks the invariants of a complete event.
func ValidateEvent(e CalendarEvent) error {
	if e.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrValidation)
	}
	if e.EndDate != nil && !e.EndDate.IsZero() && e.EndDate.Before(e.StartDate) {
		return fmt.Errorf("%w: end date must not be before start date", ErrValidation)
	}
	if e.AllDay && (e.StartTime != "" || e.EndTime != "") {
		return fmt.Errorf("%w: all-day events have no times", ErrValidation)
	}
	return nil
}
