// Package query answers read-only questions about the cached train list.
// Every function is pure over the slice it is given.
package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shehryarbajwa/railbook/internal/apperr"
	"github.com/shehryarbajwa/railbook/pkg/models"
)

// TopN caps ranked results.
const TopN = 10

// TrainView is a train with a (possibly filtered) list of classes.
type TrainView struct {
	TrainNumber   string                     `json:"trainNumber"`
	TrainName     string                     `json:"trainName"`
	DepartureTime string                     `json:"departureTime"`
	ArrivalTime   string                     `json:"arrivalTime"`
	Duration      string                     `json:"duration"`
	FromStnCode   string                     `json:"fromStnCode"`
	ToStnCode     string                     `json:"toStnCode"`
	TrainType     []string                   `json:"trainType"`
	Classes       []models.ClassAvailability `json:"classes"`
}

// ClassOption is one (train, class) pair.
type ClassOption struct {
	TrainNumber   string   `json:"trainNumber"`
	TrainName     string   `json:"trainName"`
	DepartureTime string   `json:"departureTime"`
	ArrivalTime   string   `json:"arrivalTime"`
	Duration      string   `json:"duration"`
	Class         string   `json:"class"`
	Status        string   `json:"status"`
	Fare          *float64 `json:"fare"`
}

// Criteria are the optional predicates of Filter. Zero values disable a
// predicate, except OnlyAvailable which callers default to true.
type Criteria struct {
	Types           []string `json:"types,omitempty"`
	DepartureAfter  string   `json:"departureAfter,omitempty"`
	DepartureBefore string   `json:"departureBefore,omitempty"`
	Classes         []string `json:"classes,omitempty"`
	OnlyAvailable   bool     `json:"onlyAvailable"`
}

// Summary aggregates the cached result.
type Summary struct {
	TotalTrains int            `json:"totalTrains"`
	Available   int            `json:"available"`
	Waitlist    int            `json:"waitlist"`
	RAC         int            `json:"rac"`
	TrainTypes  map[string]int `json:"trainTypes"`
	Classes     []string       `json:"classes"`
}

// Details is a full train record with derived fields.
type Details struct {
	models.TrainRecord
	AvailableClasses []models.ClassAvailability `json:"availableClasses"`
}

func view(t models.TrainRecord, classes []models.ClassAvailability) TrainView {
	return TrainView{
		TrainNumber:   t.TrainNumber,
		TrainName:     t.TrainName,
		DepartureTime: t.DepartureTime,
		ArrivalTime:   t.ArrivalTime,
		Duration:      t.Duration,
		FromStnCode:   t.FromStnCode,
		ToStnCode:     t.ToStnCode,
		TrainType:     t.TrainType,
		Classes:       classes,
	}
}

func option(t models.TrainRecord, c models.ClassAvailability) ClassOption {
	return ClassOption{
		TrainNumber:   t.TrainNumber,
		TrainName:     t.TrainName,
		DepartureTime: t.DepartureTime,
		ArrivalTime:   t.ArrivalTime,
		Duration:      t.Duration,
		Class:         c.ClassCode,
		Status:        c.Status,
		Fare:          c.Fare,
	}
}

// Available returns trains with at least one bookable class, listing only
// those classes.
func Available(trains []models.TrainRecord) []TrainView {
	out := make([]TrainView, 0)
	for _, t := range trains {
		if avail := t.AvailableClasses(); len(avail) > 0 {
			out = append(out, view(t, avail))
		}
	}
	return out
}

// Cheapest ranks bookable (train, class) pairs by fare. An empty class
// matches every class. Entries without a numeric fare are skipped.
func Cheapest(trains []models.TrainRecord, class string) []ClassOption {
	out := make([]ClassOption, 0)
	for _, t := range trains {
		for _, c := range t.AvailableClasses() {
			if class != "" && !strings.EqualFold(c.ClassCode, class) {
				continue
			}
			if c.Fare == nil {
				continue
			}
			out = append(out, option(t, c))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].Fare < *out[j].Fare })
	return top(out)
}

// Fastest ranks trains with a bookable class by journey duration.
func Fastest(trains []models.TrainRecord) []TrainView {
	type ranked struct {
		v       TrainView
		minutes int
	}
	var rs []ranked
	for _, t := range trains {
		avail := t.AvailableClasses()
		if len(avail) == 0 {
			continue
		}
		m, ok := DurationMinutes(t.Duration)
		if !ok {
			continue
		}
		rs = append(rs, ranked{v: view(t, avail), minutes: m})
	}
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].minutes < rs[j].minutes })

	out := make([]TrainView, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.v)
	}
	return top(out)
}

// ByClass lists every train's entry for the class regardless of status.
func ByClass(trains []models.TrainRecord, class string) []ClassOption {
	out := make([]ClassOption, 0)
	for _, t := range trains {
		for _, c := range t.Availability {
			if strings.EqualFold(c.ClassCode, class) {
				out = append(out, option(t, c))
			}
		}
	}
	return out
}

// ByType lists trains carrying the type tag.
func ByType(trains []models.TrainRecord, tag string) []TrainView {
	tag = strings.ToUpper(strings.TrimSpace(tag))
	out := make([]TrainView, 0)
	for _, t := range trains {
		if t.HasType(tag) {
			out = append(out, view(t, t.Availability))
		}
	}
	return out
}

// Filter applies the conjunction of the criteria. Departure bounds are
// inclusive on both ends.
func Filter(trains []models.TrainRecord, c Criteria) ([]TrainView, error) {
	after, before := -1, -1
	var errs models.FieldErrors
	if c.DepartureAfter != "" {
		m, ok := ClockMinutes(c.DepartureAfter)
		if !ok {
			errs = append(errs, fmt.Sprintf("departureAfter %q must be HH:MM", c.DepartureAfter))
		}
		after = m
	}
	if c.DepartureBefore != "" {
		m, ok := ClockMinutes(c.DepartureBefore)
		if !ok {
			errs = append(errs, fmt.Sprintf("departureBefore %q must be HH:MM", c.DepartureBefore))
		}
		before = m
	}
	if len(errs) > 0 {
		return nil, apperr.Wrap(apperr.Validation, "query.filter", errs)
	}

	types := upperSet(c.Types)
	classes := upperSet(c.Classes)

	out := make([]TrainView, 0)
	for _, t := range trains {
		if len(types) > 0 && !anyType(t, types) {
			continue
		}
		if after >= 0 || before >= 0 {
			dep, ok := ClockMinutes(t.DepartureTime)
			if !ok {
				continue
			}
			if after >= 0 && dep < after {
				continue
			}
			if before >= 0 && dep > before {
				continue
			}
		}

		var kept []models.ClassAvailability
		for _, cl := range t.Availability {
			if len(classes) > 0 && !classes[strings.ToUpper(cl.ClassCode)] {
				continue
			}
			if c.OnlyAvailable && !cl.IsAvailable() {
				continue
			}
			kept = append(kept, cl)
		}
		if len(kept) == 0 {
			if c.OnlyAvailable {
				continue
			}
			kept = t.Availability
		}
		out = append(out, view(t, kept))
	}
	return out, nil
}

// Summarize counts trains, seat categories per class entry and type tags.
func Summarize(trains []models.TrainRecord) Summary {
	s := Summary{TotalTrains: len(trains), TrainTypes: map[string]int{}, Classes: []string{}}
	seen := map[string]bool{}
	for _, t := range trains {
		for _, tag := range t.TrainType {
			s.TrainTypes[tag]++
		}
		for _, c := range t.Availability {
			switch c.Category() {
			case models.CategoryAvailable:
				s.Available++
			case models.CategoryWaitlist:
				s.Waitlist++
			case models.CategoryRAC:
				s.RAC++
			}
			if c.ClassCode != "" && !seen[c.ClassCode] {
				seen[c.ClassCode] = true
				s.Classes = append(s.Classes, c.ClassCode)
			}
		}
	}
	sort.Strings(s.Classes)
	return s
}

// ByTrainNumber returns the full record for a train.
func ByTrainNumber(trains []models.TrainRecord, number string) (models.TrainRecord, error) {
	number = strings.TrimSpace(number)
	for _, t := range trains {
		if t.TrainNumber == number {
			return t, nil
		}
	}
	return models.TrainRecord{}, apperr.New(apperr.NotFound, "query.train",
		"train %s not found in cached data", number).With("trainNumber", number)
}

// TrainDetails returns the record plus its bookable classes.
func TrainDetails(trains []models.TrainRecord, number string) (Details, error) {
	t, err := ByTrainNumber(trains, number)
	if err != nil {
		return Details{}, err
	}
	avail := t.AvailableClasses()
	if avail == nil {
		avail = []models.ClassAvailability{}
	}
	return Details{TrainRecord: t, AvailableClasses: avail}, nil
}

// DurationMinutes parses "HH:MM" into minutes.
func DurationMinutes(s string) (int, bool) {
	h, m, ok := splitClock(s)
	if !ok || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// ClockMinutes parses a wall-clock "HH:MM" into minutes after midnight.
func ClockMinutes(s string) (int, bool) {
	h, m, ok := splitClock(s)
	if !ok || h > 23 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

func splitClock(s string) (int, int, bool) {
	hs, ms, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		return 0, 0, false
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h < 0 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 0 {
		return 0, 0, false
	}
	return h, m, true
}

func upperSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, it := range items {
		if it = strings.ToUpper(strings.TrimSpace(it)); it != "" {
			out[it] = true
		}
	}
	return out
}

func anyType(t models.TrainRecord, types map[string]bool) bool {
	for _, tt := range t.TrainType {
		if types[strings.ToUpper(tt)] {
			return true
		}
	}
	return false
}

func top[T any](s []T) []T {
	if len(s) > TopN {
		return s[:TopN]
	}
	return s
}
