package feed

import (
	"bytes"
	"encoding/json"
	"log"
	"strconv"
	"strings"
)

// Feed names understood by the provider's status service.
const (
	FeedVehicles = "get_vehicles"
	FeedStops    = "get_stops"
)

// Records is one feed snapshot as returned by the provider: a list of raw
// JSON objects. A published snapshot is shared between callers and must be
// treated as read-only; decoding always produces fresh values.
type Records []json.RawMessage

// ID is an identifier that the provider sends either as a JSON number or
// as a string. It is kept in its textual form.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Number accepts JSON numbers and numeric strings. Anything else decodes as 0.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*n = 0
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*n = Number(f)
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*n = Number(f)
	}
	return nil
}

// Flag is a loosely typed boolean: true, non-zero numbers, non-empty
// strings, objects and arrays are truthy.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*f = false
	case bool:
		*f = Flag(x)
	case float64:
		*f = x != 0
	case string:
		*f = x != ""
	default:
		// objects and arrays
		*f = true
	}
	return nil
}

// Text is a display string. Numbers and booleans keep their JSON text;
// objects, arrays and null decode as "".
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*t = ""
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err == nil {
			*t = Text(s)
		}
	case '{', '[', 'n':
	default:
		*t = Text(b)
	}
	return nil
}

func (t Text) String() string { return string(t) }

type Stop struct {
	ID        ID     `json:"id"`
	RouteID   ID     `json:"rid"`
	Name      string `json:"name"`
	ShortName string `json:"shortName"`
	Lat       Number `json:"lat"`
	Lng       Number `json:"lng"`
}

// StopETA is one entry of a vehicle's minutesToNextStops list.
type StopETA struct {
	StopID   ID     `json:"stopID"`
	Schedule Text   `json:"schedule"`
	Status   Text   `json:"status"`
	Minutes  Number `json:"minutes"`
}

type Vehicle struct {
	EquipmentID        ID        `json:"equipmentID"`
	Lat                Number    `json:"lat"`
	Lng                Number    `json:"lng"`
	OnSchedule         Number    `json:"onSchedule"` // minutes, negative when late
	ScheduleNumber     ID        `json:"scheduleNumber"`
	InService          Flag      `json:"inService"`
	NextStopID         ID        `json:"nextStopID"`
	MinutesToNextStops []StopETA `json:"minutesToNextStops"`
}

// DecodeStops decodes a stop snapshot. Malformed records are logged and
// skipped so that one bad record never drops the whole feed.
func DecodeStops(recs Records) []Stop {
	out := make([]Stop, 0, len(recs))
	for i, raw := range recs {
		var s Stop
		if err := json.Unmarshal(raw, &s); err != nil {
			log.Printf("feed %s: skipping record %d: %v", FeedStops, i, err)
			continue
		}
		out = append(out, s)
	}
	return out
}

// DecodeVehicles decodes a vehicle snapshot, skipping malformed records.
func DecodeVehicles(recs Records) []Vehicle {
	out := make([]Vehicle, 0, len(recs))
	for i, raw := range recs {
		var v Vehicle
		if err := json.Unmarshal(raw, &v); err != nil {
			log.Printf("feed %s: skipping record %d: %v", FeedVehicles, i, err)
			continue
		}
		out = append(out, v)
	}
	return out
}
