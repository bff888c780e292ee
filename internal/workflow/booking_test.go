package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/railbook/internal/apperr"
	"github.com/shehryarbajwa/railbook/pkg/models"
)

func validRequest() models.BookingRequest {
	return models.BookingRequest{
		TrainNumber: "12951",
		Quota:       "General",
		Class:       "3A",
		JourneyDate: "26-11-2025",
		Passengers: []models.Passenger{
			{Name: "Asha Rao", Age: 34, Gender: "F"},
		},
	}
}

func TestSubmitRejectsInvalidRequestBeforeBrowser(t *testing.T) {
	runner := &fakeRunner{}
	st := newTestStore(t)
	b := NewBooking(runner, st, testSettings())

	req := validRequest()
	req.Passengers[0].Age = 130
	a, err := b.Submit(context.Background(), req)

	require.Error(t, err)
	assert.Nil(t, a)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "age 130")
	assert.Zero(t, runner.calls.Load())

	attempts, err := st.ListAttempts(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, attempts)
}

func TestSubmitRecordsFailureWhenBrowserUnavailable(t *testing.T) {
	runner := &fakeRunner{err: apperr.New(apperr.SessionUnavailable, "session", "browser busy")}
	st := newTestStore(t)
	b := NewBooking(runner, st, testSettings())

	a, err := b.Submit(context.Background(), validRequest())
	require.Error(t, err)
	require.NotNil(t, a)
	assert.Equal(t, apperr.SessionUnavailable, apperr.KindOf(err))
	assert.Equal(t, int32(1), runner.calls.Load())

	stored, err := b.Attempt(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptFailed, stored.Status)
	assert.Equal(t, models.PhaseLocateTrain, stored.Phase)
	assert.Equal(t, "session_unavailable", stored.ErrorKind)
	assert.Equal(t, "26 Nov", stored.JourneyDate)
}

func TestSubmitOTPValidation(t *testing.T) {
	runner := &fakeRunner{}
	b := NewBooking(runner, newTestStore(t), testSettings())

	for _, code := range []string{"", "12", "123456789", "12a4"} {
		_, err := b.SubmitOTP(context.Background(), code)
		assert.Equal(t, apperr.Validation, apperr.KindOf(err), code)
	}
	assert.Zero(t, runner.calls.Load())
}

func TestSubmitOTPNeedsPendingBooking(t *testing.T) {
	runner := &fakeRunner{}
	st := newTestStore(t)
	b := NewBooking(runner, st, testSettings())
	ctx := context.Background()

	_, err := b.SubmitOTP(ctx, "123456")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	require.NoError(t, st.CreateAttempt(ctx, &models.BookingAttempt{
		ID: "done", Phase: models.PhaseReview, Status: models.AttemptFailed, CreatedAt: time.Now(),
	}))
	_, err = b.SubmitOTP(ctx, "123456")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	assert.Equal(t, "done", apperr.DetailsOf(err)["attempt_id"])
	assert.Zero(t, runner.calls.Load())
}

func TestShowPaymentCompletesPendingAttempt(t *testing.T) {
	runner := &fakeRunner{}
	st := newTestStore(t)
	b := NewBooking(runner, st, testSettings())
	ctx := context.Background()

	require.NoError(t, st.CreateAttempt(ctx, &models.BookingAttempt{
		ID: "p1", Phase: models.PhaseOTPSubmitted, Status: models.AttemptPendingPayment, CreatedAt: time.Now(),
	}))

	a, err := b.ShowPayment(ctx)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.True(t, runner.visible.Load())
	assert.Equal(t, models.AttemptCompleted, a.Status)
	assert.Equal(t, models.PhasePaymentHandoff, a.Phase)

	require.NoError(t, b.HideBrowser(ctx))
	assert.False(t, runner.visible.Load())
}

func TestShowPaymentWithoutBooking(t *testing.T) {
	runner := &fakeRunner{}
	b := NewBooking(runner, newTestStore(t), testSettings())

	a, err := b.ShowPayment(context.Background())
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.True(t, runner.visible.Load())
}

func TestUnmatchedDateKeepsDefaultAndContinues(t *testing.T) {
	st := newTestStore(t)
	b := NewBooking(&fakeRunner{}, st, testSettings())
	a := newAttempt(t, b.phases)
	ctx := context.Background()

	chips := []string{"27 Nov, Thu\nWL 12", "28 Nov, Fri\nAVAILABLE-0003"}
	var reachedSubmit bool
	steps := []step{
		{models.PhaseSelectDate, func() error {
			require.Equal(t, -1, pickDate(chips, "26 Nov"))
			return b.keepDefault(a, "date", "26 Nov", []string{chipDate(chips[0]), chipDate(chips[1])})
		}},
		{models.PhaseSubmitForm, func() error {
			reachedSubmit = true
			return nil
		}},
	}
	require.NoError(t, b.phases.run(ctx, a, steps))
	assert.True(t, reachedSubmit)

	stored, err := st.GetAttempt(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptRunning, stored.Status)
	assert.Equal(t, models.PhaseSubmitForm, stored.Phase)
	require.Len(t, stored.Warnings, 1)
	assert.Contains(t, stored.Warnings[0], `date "26 Nov" not offered`)
	assert.Contains(t, stored.Warnings[0], "27 Nov, Thu")
}
