package models

import (
	"fmt"
	"strings"
	"time"
)

// Gender values the portal's passenger form offers.
type Gender string

const (
	GenderMale        Gender = "Male"
	GenderFemale      Gender = "Female"
	GenderTransgender Gender = "Transgender"
)

// ParseGender accepts the full label or its first letter, any case.
func ParseGender(s string) (Gender, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MALE", "M":
		return GenderMale, true
	case "FEMALE", "F":
		return GenderFemale, true
	case "TRANSGENDER", "T":
		return GenderTransgender, true
	}
	return "", false
}

const (
	MinPassengerAge = 1
	MaxPassengerAge = 120
	MaxPassengers   = 6
)

// Passenger is one traveller on a booking.
type Passenger struct {
	Name            string `json:"name"`
	Age             int    `json:"age"`
	Gender          Gender `json:"gender"`
	BerthPreference string `json:"berth_preference,omitempty"`
	FoodPreference  string `json:"food_preference,omitempty"`
}

// BookingRequest is built from a single tool call and consumed by the booking
// workflow. It is never persisted as-is.
type BookingRequest struct {
	TrainNumber string      `json:"train_number"`
	Quota       string      `json:"quota"`
	Class       string      `json:"class"`
	JourneyDate string      `json:"journey_date"`
	Passengers  []Passenger `json:"passenger_details"`
}

// Validate rejects malformed bookings and normalizes gender spellings in place.
func (r *BookingRequest) Validate() error {
	var errs FieldErrors
	r.TrainNumber = strings.TrimSpace(r.TrainNumber)
	r.Quota = strings.TrimSpace(r.Quota)
	r.Class = strings.TrimSpace(r.Class)
	r.JourneyDate = strings.TrimSpace(r.JourneyDate)

	if r.TrainNumber == "" {
		errs = append(errs, "train_number is required")
	}
	if r.Quota == "" {
		errs = append(errs, "quota is required")
	}
	if r.Class == "" {
		errs = append(errs, "class is required")
	}
	if r.JourneyDate == "" {
		errs = append(errs, "journey_date is required")
	} else if _, err := JourneyDateLabel(r.JourneyDate); err != nil {
		errs = append(errs, err.Error())
	}
	if len(r.Passengers) == 0 {
		errs = append(errs, "at least one passenger is required")
	}
	if len(r.Passengers) > MaxPassengers {
		errs = append(errs, fmt.Sprintf("at most %d passengers per booking", MaxPassengers))
	}
	for i := range r.Passengers {
		p := &r.Passengers[i]
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			errs = append(errs, fmt.Sprintf("passenger %d: name is required", i+1))
		}
		if p.Age < MinPassengerAge || p.Age > MaxPassengerAge {
			errs = append(errs, fmt.Sprintf("passenger %d: age %d out of range %d-%d", i+1, p.Age, MinPassengerAge, MaxPassengerAge))
		}
		g, ok := ParseGender(string(p.Gender))
		if !ok {
			errs = append(errs, fmt.Sprintf("passenger %d: gender %q must be Male, Female or Transgender", i+1, p.Gender))
		} else {
			p.Gender = g
		}
	}
	return errs.orNil()
}

// JourneyDateLabel converts a journey date into the "02 Jan" text shown on
// the portal's date chips. Accepts DD-MM-YYYY, YYYYMMDD, YYYY-MM-DD and the
// chip form itself ("26 Nov, Wed" or "26 Nov").
func JourneyDateLabel(s string) (string, error) {
	if t, err := ParseSearchDate(s); err == nil {
		return t.Format("02 Jan"), nil
	}
	head, _, _ := strings.Cut(strings.TrimSpace(s), ",")
	for _, layout := range []string{"02 Jan", "2 Jan"} {
		if t, err := time.Parse(layout, strings.TrimSpace(head)); err == nil {
			return t.Format("02 Jan"), nil
		}
	}
	return "", fmt.Errorf("journey_date %q must be DD-MM-YYYY, YYYYMMDD or like \"26 Nov\"", s)
}

// Phase names one step of the booking workflow.
type Phase string

const (
	PhaseLocateTrain     Phase = "locate_train"
	PhaseOpenTicketPanel Phase = "open_ticket_panel"
	PhaseSelectQuota     Phase = "select_quota"
	PhaseSelectClass     Phase = "select_class"
	PhaseSelectDate      Phase = "select_date"
	PhaseSubmitForm      Phase = "submit_booking_form"
	PhaseResetPassengers Phase = "reset_passengers"
	PhaseAddPassengers   Phase = "add_passengers"
	PhaseReview          Phase = "review"
	PhaseAwaitingOTP     Phase = "awaiting_otp"
	PhaseOTPSubmitted    Phase = "otp_submitted"
	PhasePaymentHandoff  Phase = "payment_handoff"
)

// BookingPhases lists the phases in execution order.
var BookingPhases = []Phase{
	PhaseLocateTrain,
	PhaseOpenTicketPanel,
	PhaseSelectQuota,
	PhaseSelectClass,
	PhaseSelectDate,
	PhaseSubmitForm,
	PhaseResetPassengers,
	PhaseAddPassengers,
	PhaseReview,
	PhaseAwaitingOTP,
	PhaseOTPSubmitted,
	PhasePaymentHandoff,
}

// Index returns the position of the phase in BookingPhases, or -1.
func (p Phase) Index() int {
	for i, q := range BookingPhases {
		if q == p {
			return i
		}
	}
	return -1
}

// AttemptStatus is the lifecycle state of a booking attempt.
type AttemptStatus string

const (
	AttemptRunning        AttemptStatus = "RUNNING"
	AttemptPendingOTP     AttemptStatus = "PENDING_OTP"
	AttemptPendingPayment AttemptStatus = "PENDING_PAYMENT"
	AttemptFailed         AttemptStatus = "FAILED"
	AttemptCompleted      AttemptStatus = "COMPLETED"
)

// BookingAttempt records where a booking workflow run currently stands.
type BookingAttempt struct {
	ID          string        `json:"id"`
	TrainNumber string        `json:"trainNumber"`
	Quota       string        `json:"quota"`
	Class       string        `json:"class"`
	JourneyDate string        `json:"journeyDate"`
	Passengers  int           `json:"passengers"`
	Phase       Phase         `json:"phase"`
	Status      AttemptStatus `json:"status"`
	Error       string        `json:"error,omitempty"`
	ErrorKind   string        `json:"errorKind,omitempty"`
	Warnings    []string      `json:"warnings,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// DayOption is one date chip scraped from the ticket panel.
type DayOption struct {
	Date         string `json:"date"`
	Availability string `json:"availability"`
	Price        string `json:"price"`
}

// BookingOptions maps quota -> class -> per-day availability.
type BookingOptions struct {
	TrainNumber string                            `json:"trainNumber"`
	Quotas      map[string]map[string][]DayOption `json:"available_quotas"`
}
