package transit

import (
	"ace-status/internal/feed"
)

// Unknown stands in for any stop name or ETA that cannot be resolved.
const Unknown = "unknown"

type Geo struct {
	Lat float64
	Lng float64
}

// NextStopETA is a vehicle's ETA entry joined with the stop directory.
type NextStopETA struct {
	StopID        feed.ID
	DisplayName   string // Unknown when StopID is not in the directory
	Resolved      bool
	ScheduledTime string
	StatusText    string
	MinutesAway   float64
}

// Train is the enriched, rider-facing view of one vehicle.
type Train struct {
	EquipmentID    string
	Geo            Geo
	DelayMinutes   float64 // negative when late
	ScheduleNumber string
	InService      bool
	NextStopID     feed.ID

	// Set only when a configured destination resolved to a stop.
	DestinationName   string
	DestinationStopID feed.ID

	ETAs []NextStopETA
}

type EnrichOptions struct {
	InServiceOnly   bool
	DestinationName string
}

// Enrich joins vehicles with dir. Vehicles are never modified; every Train
// and ETA slice is newly allocated. Unresolvable references degrade to
// Unknown and never drop the vehicle or the entry.
func Enrich(vehicles []feed.Vehicle, dir *Directory, opts EnrichOptions) []Train {
	var dest *feed.Stop
	if opts.DestinationName != "" {
		if s, err := dir.ByName(opts.DestinationName); err == nil {
			dest = &s
		}
	}

	trains := make([]Train, 0, len(vehicles))
	for _, v := range vehicles {
		if opts.InServiceOnly && !bool(v.InService) {
			continue
		}
		trains = append(trains, enrichVehicle(v, dir, dest))
	}
	return trains
}

func enrichVehicle(v feed.Vehicle, dir *Directory, dest *feed.Stop) Train {
	t := Train{
		EquipmentID:    v.EquipmentID.String(),
		Geo:            Geo{Lat: float64(v.Lat), Lng: float64(v.Lng)},
		DelayMinutes:   float64(v.OnSchedule),
		ScheduleNumber: v.ScheduleNumber.String(),
		InService:      bool(v.InService),
		NextStopID:     v.NextStopID,
		ETAs:           make([]NextStopETA, 0, len(v.MinutesToNextStops)),
	}
	for _, m := range v.MinutesToNextStops {
		eta := NextStopETA{
			StopID:        m.StopID,
			DisplayName:   Unknown,
			ScheduledTime: m.Schedule.String(),
			StatusText:    m.Status.String(),
			MinutesAway:   float64(m.Minutes),
		}
		if s, err := dir.ByID(m.StopID); err == nil {
			eta.DisplayName = s.Name
			eta.Resolved = true
		}
		t.ETAs = append(t.ETAs, eta)
	}
	if dest != nil {
		t.DestinationName = dest.Name
		t.DestinationStopID = dest.ID
	}
	return t
}

// ETAFor returns the train's entry for stop id, if any.
func (t Train) ETAFor(id feed.ID) (NextStopETA, bool) {
	for _, e := range t.ETAs {
		if e.StopID == id {
			return e, true
		}
	}
	return NextStopETA{}, false
}
