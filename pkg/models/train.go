package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// StatusCategory buckets a raw availability status string.
type StatusCategory string

const (
	CategoryAvailable StatusCategory = "AVAILABLE"
	CategoryWaitlist  StatusCategory = "WAITLIST"
	CategoryRAC       StatusCategory = "RAC"
	CategoryOther     StatusCategory = "OTHER"
)

// AvailableMarker is the status prefix the portal uses for bookable seats.
const AvailableMarker = "AVAILABLE"

// Categorize maps a portal status such as "AVAILABLE-0042", "GNWL12/WL8" or
// "RAC 5" to its category. Available wins over waitlist, waitlist over RAC.
func Categorize(status string) StatusCategory {
	s := strings.ToUpper(strings.TrimSpace(status))
	switch {
	case strings.HasPrefix(s, AvailableMarker):
		return CategoryAvailable
	case strings.Contains(s, "WL"):
		return CategoryWaitlist
	case strings.Contains(s, "RAC"):
		return CategoryRAC
	default:
		return CategoryOther
	}
}

// ClassAvailability is the seat status of one travel class on one train.
type ClassAvailability struct {
	ClassCode string   `json:"class"`
	Status    string   `json:"status"`
	Fare      *float64 `json:"fare"`
}

// Category returns the status category of the class entry.
func (c ClassAvailability) Category() StatusCategory {
	return Categorize(c.Status)
}

// IsAvailable reports whether the class is bookable right now.
func (c ClassAvailability) IsAvailable() bool {
	return c.Category() == CategoryAvailable
}

// RunningDays is a weekday bitset, bit 0 is Monday and bit 6 is Sunday.
type RunningDays uint8

var dayNames = [7]string{"MON", "TUE", "WED", "THU", "FRI", "SAT", "SUN"}

// bitFor converts a time.Weekday (Sunday = 0) into the Monday-first bit index.
func bitFor(d time.Weekday) uint {
	return uint((int(d) + 6) % 7)
}

// With returns a copy of the set with the weekday added.
func (r RunningDays) With(d time.Weekday) RunningDays {
	return r | 1<<bitFor(d)
}

// Runs reports whether the train runs on the given weekday.
func (r RunningDays) Runs(d time.Weekday) bool {
	return r&(1<<bitFor(d)) != 0
}

// Days lists the running days Monday first.
func (r RunningDays) Days() []string {
	out := make([]string, 0, 7)
	for i, name := range dayNames {
		if r&(1<<uint(i)) != 0 {
			out = append(out, name)
		}
	}
	return out
}

func (r RunningDays) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Days())
}

func (r *RunningDays) UnmarshalJSON(data []byte) error {
	var days []string
	if err := json.Unmarshal(data, &days); err != nil {
		return fmt.Errorf("running days: %w", err)
	}
	var out RunningDays
	for _, d := range days {
		for i, name := range dayNames {
			if strings.EqualFold(d, name) {
				out |= 1 << uint(i)
			}
		}
	}
	*r = out
	return nil
}

// TrainRecord is one train from the portal's train-between-stations listing.
type TrainRecord struct {
	TrainNumber   string              `json:"trainNumber"`
	TrainName     string              `json:"trainName"`
	DepartureTime string              `json:"departureTime"`
	ArrivalTime   string              `json:"arrivalTime"`
	Duration      string              `json:"duration"`
	Distance      string              `json:"distance"`
	FromStnCode   string              `json:"fromStnCode"`
	ToStnCode     string              `json:"toStnCode"`
	TrainType     []string            `json:"trainType"`
	RunningDays   RunningDays         `json:"runningDays"`
	Availability  []ClassAvailability `json:"availability"`
}

// HasType reports whether the train carries the type tag (case-insensitive).
func (t TrainRecord) HasType(tag string) bool {
	for _, tt := range t.TrainType {
		if strings.EqualFold(tt, tag) {
			return true
		}
	}
	return false
}

// AvailableClasses returns only the bookable class entries.
func (t TrainRecord) AvailableClasses() []ClassAvailability {
	var out []ClassAvailability
	for _, c := range t.Availability {
		if c.IsAvailable() {
			out = append(out, c)
		}
	}
	return out
}

// TrainSearchResult is the decoded response of the most recent search.
type TrainSearchResult struct {
	Query      SearchQuery     `json:"query"`
	Trains     []TrainRecord   `json:"trains"`
	CapturedAt time.Time       `json:"capturedAt"`
	Raw        json.RawMessage `json:"-"`
}

// RenderedTrain is a train card as it appears on the portal page.
type RenderedTrain struct {
	Number string `json:"number"`
	Label  string `json:"label"`
}

// RouteStop is one station on a train's schedule.
type RouteStop struct {
	StationCode   string `json:"stationCode"`
	StationName   string `json:"stationName,omitempty"`
	ArrivalTime   string `json:"arrivalTime,omitempty"`
	DepartureTime string `json:"departureTime,omitempty"`
	Distance      string `json:"distance,omitempty"`
	Day           int    `json:"day,omitempty"`
}

// TrainRoute is the schedule returned by the route lookup service.
type TrainRoute struct {
	TrainNumber string          `json:"trainNumber"`
	Stations    []RouteStop     `json:"stationList"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}
