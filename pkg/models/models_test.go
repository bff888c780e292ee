package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		status string
		want   StatusCategory
	}{
		{"AVAILABLE-0042", CategoryAvailable},
		{"available-3", CategoryAvailable},
		{"GNWL12/WL8", CategoryWaitlist},
		{"RLWL 4", CategoryWaitlist},
		{"RAC 5", CategoryRAC},
		{"NOT AVAILABLE", CategoryOther},
		{"", CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.status))
		})
	}
}

func TestRunningDays(t *testing.T) {
	var days RunningDays
	days = days.With(time.Monday).With(time.Sunday)

	assert.True(t, days.Runs(time.Monday))
	assert.True(t, days.Runs(time.Sunday))
	assert.False(t, days.Runs(time.Wednesday))
	assert.Equal(t, []string{"MON", "SUN"}, days.Days())

	raw, err := json.Marshal(days)
	require.NoError(t, err)
	assert.JSONEq(t, `["MON","SUN"]`, string(raw))

	var back RunningDays
	require.NoError(t, json.Unmarshal([]byte(`["mon","sun"]`), &back))
	assert.Equal(t, days, back)
}

func TestSearchQuery(t *testing.T) {
	q := SearchQuery{Source: " ndls", Destination: "bct", Date: "25-11-2025"}.Normalize()
	require.NoError(t, q.Validate())
	assert.Equal(t, "GN", q.Quota)
	assert.Equal(t, "NDLS", q.Source)

	date, err := q.PortalDate()
	require.NoError(t, err)
	assert.Equal(t, "20251125", date)

	bad := SearchQuery{Source: "NDLS", Destination: "NDLS", Date: "tomorrow"}.Normalize()
	err = bad.Validate()
	require.Error(t, err)
	var fe FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Len(t, fe, 2)
}

func validBooking() BookingRequest {
	return BookingRequest{
		TrainNumber: "12449",
		Quota:       "General",
		Class:       "2A",
		JourneyDate: "26 Nov, Wed",
		Passengers: []Passenger{
			{Name: "John Doe", Age: 30, Gender: "male"},
		},
	}
}

func TestBookingRequestValidate(t *testing.T) {
	t.Run("valid request normalizes gender", func(t *testing.T) {
		req := validBooking()
		require.NoError(t, req.Validate())
		assert.Equal(t, GenderMale, req.Passengers[0].Gender)
	})

	t.Run("age out of range", func(t *testing.T) {
		req := validBooking()
		req.Passengers[0].Age = 130
		err := req.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "age 130 out of range")
	})

	t.Run("invalid gender and missing fields", func(t *testing.T) {
		req := BookingRequest{Passengers: []Passenger{{Name: "A", Age: 5, Gender: "X"}}}
		err := req.Validate()
		var fe FieldErrors
		require.ErrorAs(t, err, &fe)
		assert.Len(t, fe, 5)
	})

	t.Run("unparseable date", func(t *testing.T) {
		req := validBooking()
		req.JourneyDate = "next friday"
		assert.Error(t, req.Validate())
	})
}

func TestJourneyDateLabel(t *testing.T) {
	for in, want := range map[string]string{
		"26-11-2025":  "26 Nov",
		"20251126":    "26 Nov",
		"26 Nov, Wed": "26 Nov",
		"3 Dec":       "03 Dec",
	} {
		got, err := JourneyDateLabel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestPhaseIndex(t *testing.T) {
	assert.Equal(t, 0, PhaseLocateTrain.Index())
	assert.Less(t, PhaseReview.Index(), PhaseAwaitingOTP.Index())
	assert.Equal(t, -1, Phase("bogus").Index())
}

func TestCredentialsRedacted(t *testing.T) {
	c := CapturedCredentials{
		UserToken: "abcdefghijkl",
		DSession:  "xyz",
		SessionID: "sid-1234567890",
		Payload:   map[string]any{"userToken": "abcdefghijkl"},
		Headers:   map[string]string{"authorization": "Bearer 123456789"},
	}
	r := c.Redacted()
	assert.Equal(t, "abcdef***", r.UserToken)
	assert.Equal(t, "***", r.DSession)
	assert.Equal(t, "sid-12***", r.SessionID)
	assert.Nil(t, r.Payload)
	assert.Equal(t, "Bearer***", r.Headers["authorization"])
	assert.Equal(t, "abcdefghijkl", c.UserToken)
}
