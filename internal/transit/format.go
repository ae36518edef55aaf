package transit

import (
	"fmt"
	"strconv"
	"strings"
)

// TimeText describes the train's punctuality.
func TimeText(t Train) string {
	if t.DelayMinutes < 0 {
		return strconv.FormatFloat(-t.DelayMinutes, 'f', -1, 64) + " min late"
	}
	return "On Time"
}

// NextStopText resolves the train's next stop against its own ETA list.
func NextStopText(t Train) string {
	name, eta := Unknown, Unknown
	if e, ok := t.ETAFor(t.NextStopID); ok && e.Resolved {
		name = e.DisplayName
		eta = statusOrUnknown(e)
	}
	return fmt.Sprintf("Next stop: %s. ETA: %s", name, eta)
}

// DestinationText is empty unless a destination was resolved for the train.
func DestinationText(t Train) string {
	if t.DestinationName == "" {
		return ""
	}
	eta := Unknown
	if e, ok := t.ETAFor(t.DestinationStopID); ok {
		eta = statusOrUnknown(e)
	}
	return fmt.Sprintf("Dest: %s. ETA: %s", t.DestinationName, eta)
}

func StatusLine(t Train) string {
	return fmt.Sprintf("Train %s is %s. %s. %s", t.ScheduleNumber, TimeText(t), NextStopText(t), DestinationText(t))
}

// StopFilteredLine reports the train's ETA at stopName. The name must match
// a resolved display name exactly.
func StopFilteredLine(t Train, stopName string) (string, bool) {
	for _, e := range t.ETAs {
		if !e.Resolved || e.DisplayName != stopName {
			continue
		}
		eta := e.ScheduledTime
		if eta == "" {
			eta = statusOrUnknown(e)
		}
		return fmt.Sprintf("[%s to %s. ETA: %s]", t.ScheduleNumber, stopName, eta), true
	}
	return "", false
}

// JoinStopFiltered joins the filtered lines of every matching train.
func JoinStopFiltered(trains []Train, stopName string) string {
	parts := make([]string, 0, len(trains))
	for _, t := range trains {
		if line, ok := StopFilteredLine(t, stopName); ok {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, ", ")
}

// JoinStatusLines renders one status line per train.
func JoinStatusLines(trains []Train) string {
	lines := make([]string, 0, len(trains))
	for _, t := range trains {
		lines = append(lines, StatusLine(t))
	}
	return strings.Join(lines, "\n")
}

func statusOrUnknown(e NextStopETA) string {
	if e.StatusText == "" {
		return Unknown
	}
	return e.StatusText
}
