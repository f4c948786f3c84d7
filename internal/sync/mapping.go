package sync

import (
	"strings"

	"github.com/beekhof/tripcal/internal/event"
)

// activityTypes maps an itinerary activity category to an event type.
// Unknown categories become event.TypeActivity.
var activityTypes = map[string]event.Type{
	"transport":     event.TypeActivity,
	"accommodation": event.TypeAccommodation,
	"meal":          event.TypeMeal,
	"food":          event.TypeRestaurant,
	"sightseeing":   event.TypeSightseeing,
	"culture":       event.TypeCulture,
	"nature":        event.TypeNature,
	"shopping":      event.TypeShopping,
	"nightlife":     event.TypeNightlife,
}

func activityType(category string) event.Type {
	if t, ok := activityTypes[strings.ToLower(strings.TrimSpace(category))]; ok {
		return t
	}
	return event.TypeActivity
}

type transportKind struct {
	label string
	typ   event.Type
}

var transportKinds = map[string]transportKind{
	"flight":   {"Voo", event.TypeFlight},
	"train":    {"Trem", event.TypeTrain},
	"bus":      {"Ônibus", event.TypeBus},
	"car":      {"Carro", event.TypeTransfer},
	"transfer": {"Transfer", event.TypeTransfer},
	"ferry":    {"Balsa", event.TypeFerry},
}

var defaultTransportKind = transportKind{"Transporte", event.TypeTransfer}

func transportKindOf(kind string) transportKind {
	if k, ok := transportKinds[strings.ToLower(strings.TrimSpace(kind))]; ok {
		return k
	}
	return defaultTransportKind
}
