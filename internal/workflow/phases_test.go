package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/railbook/internal/apperr"
	"github.com/shehryarbajwa/railbook/pkg/models"
)

func newAttempt(t *testing.T, r phaseRunner) *models.BookingAttempt {
	t.Helper()
	a := &models.BookingAttempt{
		ID:          "att-1",
		TrainNumber: "12951",
		Quota:       "General",
		Class:       "3A",
		JourneyDate: "26 Nov",
		Passengers:  1,
		Phase:       models.PhaseLocateTrain,
		Status:      models.AttemptRunning,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	require.NoError(t, r.store.CreateAttempt(context.Background(), a))
	return a
}

func TestPhaseRunnerPersistsEachPhase(t *testing.T) {
	st := newTestStore(t)
	r := phaseRunner{store: st, logger: zap.NewNop()}
	a := newAttempt(t, r)
	ctx := context.Background()

	var seen []models.Phase
	record := func() error {
		stored, err := st.GetAttempt(ctx, a.ID)
		require.NoError(t, err)
		seen = append(seen, stored.Phase)
		return nil
	}
	steps := []step{
		{models.PhaseLocateTrain, record},
		{models.PhaseOpenTicketPanel, record},
		{models.PhaseSelectQuota, record},
	}
	require.NoError(t, r.run(ctx, a, steps))

	assert.Equal(t, []models.Phase{
		models.PhaseLocateTrain,
		models.PhaseOpenTicketPanel,
		models.PhaseSelectQuota,
	}, seen)
	assert.Equal(t, models.AttemptRunning, a.Status)
}

func TestPhaseRunnerStopsAtFirstFailure(t *testing.T) {
	st := newTestStore(t)
	r := phaseRunner{store: st, logger: zap.NewNop()}
	a := newAttempt(t, r)
	ctx := context.Background()

	ran := 0
	ok := func() error { ran++; return nil }
	steps := []step{
		{models.PhaseLocateTrain, ok},
		{models.PhaseOpenTicketPanel, ok},
		{models.PhaseSelectDate, func() error {
			return apperr.ElementMissing(string(models.PhaseSelectDate), "date 26 Nov", nil)
		}},
		{models.PhaseSubmitForm, ok},
	}
	err := r.run(ctx, a, steps)
	require.Error(t, err)
	assert.Equal(t, 2, ran)
	assert.Equal(t, apperr.ElementNotFound, apperr.KindOf(err))
	assert.Equal(t, "select_date", apperr.DetailsOf(err)["phase"])
	assert.Equal(t, "att-1", apperr.DetailsOf(err)["attempt_id"])

	stored, err := st.GetAttempt(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptFailed, stored.Status)
	assert.Equal(t, models.PhaseSelectDate, stored.Phase)
	assert.Equal(t, "element_not_found", stored.ErrorKind)
	assert.Contains(t, stored.Error, "date 26 Nov not found")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"app error", apperr.New(apperr.CaptureMiss, "x", "y"), apperr.CaptureMiss},
		{"wrapped app error", fmt.Errorf("outer: %w", apperr.New(apperr.Validation, "x", "y")), apperr.Validation},
		{"rod not found", &rod.ElementNotFoundError{}, apperr.ElementNotFound},
		{"deadline", fmt.Errorf("wait: %w", context.DeadlineExceeded), apperr.ElementNotFound},
		{"other", errors.New("boom"), apperr.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}
