package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// FieldErrors collects input problems found before any browser work starts.
type FieldErrors []string

func (f FieldErrors) Error() string {
	return strings.Join(f, "; ")
}

func (f FieldErrors) orNil() error {
	if len(f) == 0 {
		return nil
	}
	return f
}

var stationCode = regexp.MustCompile(`^[A-Z]{2,5}$`)

// SearchQuery is a train search between two stations on one date.
type SearchQuery struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Date        string `json:"date"`
	Quota       string `json:"quota"`
}

// Normalize upper-cases codes and applies the general quota default.
func (q SearchQuery) Normalize() SearchQuery {
	q.Source = strings.ToUpper(strings.TrimSpace(q.Source))
	q.Destination = strings.ToUpper(strings.TrimSpace(q.Destination))
	q.Quota = strings.ToUpper(strings.TrimSpace(q.Quota))
	q.Date = strings.TrimSpace(q.Date)
	if q.Quota == "" {
		q.Quota = "GN"
	}
	return q
}

// Validate checks a normalized query.
func (q SearchQuery) Validate() error {
	var errs FieldErrors
	if q.Source == "" {
		errs = append(errs, "source is required")
	} else if !stationCode.MatchString(q.Source) {
		errs = append(errs, fmt.Sprintf("source %q is not a station code", q.Source))
	}
	if q.Destination == "" {
		errs = append(errs, "destination is required")
	} else if !stationCode.MatchString(q.Destination) {
		errs = append(errs, fmt.Sprintf("destination %q is not a station code", q.Destination))
	}
	if q.Source != "" && q.Source == q.Destination {
		errs = append(errs, "source and destination must differ")
	}
	if q.Date == "" {
		errs = append(errs, "date is required")
	} else if _, err := ParseSearchDate(q.Date); err != nil {
		errs = append(errs, err.Error())
	}
	return errs.orNil()
}

// PortalDate renders the date the way the portal URL expects it (YYYYMMDD).
func (q SearchQuery) PortalDate() (string, error) {
	t, err := ParseSearchDate(q.Date)
	if err != nil {
		return "", err
	}
	return t.Format("20060102"), nil
}

var searchLayouts = []string{"02-01-2006", "20060102", "2006-01-02"}

// ParseSearchDate accepts DD-MM-YYYY, YYYYMMDD and YYYY-MM-DD.
func ParseSearchDate(s string) (time.Time, error) {
	for _, layout := range searchLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("date %q must be DD-MM-YYYY or YYYYMMDD", s)
}
