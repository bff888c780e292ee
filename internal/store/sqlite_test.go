package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/railbook/internal/apperr"
	"github.com/shehryarbajwa/railbook/pkg/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func attempt(id string, created time.Time) *models.BookingAttempt {
	return &models.BookingAttempt{
		ID:          id,
		TrainNumber: "12951",
		Quota:       "GN",
		Class:       "3A",
		JourneyDate: "26 Nov",
		Passengers:  2,
		Phase:       models.PhaseLocateTrain,
		Status:      models.AttemptRunning,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func TestAttemptLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := attempt("a1", time.Now())
	require.NoError(t, s.CreateAttempt(ctx, a))

	a.Phase = models.PhaseSelectClass
	a.Status = models.AttemptFailed
	a.Error = "select_class: class option not found"
	a.ErrorKind = string(apperr.ElementNotFound)
	a.Warnings = []string{`quota "TQ" not offered, kept default`}
	require.NoError(t, s.UpdateAttempt(ctx, a))

	got, err := s.GetAttempt(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseSelectClass, got.Phase)
	assert.Equal(t, models.AttemptFailed, got.Status)
	assert.Equal(t, "element_not_found", got.ErrorKind)
	assert.Equal(t, a.Warnings, got.Warnings)
	assert.Equal(t, 2, got.Passengers)
}

func TestGetMissingAttempt(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetAttempt(context.Background(), "nope")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	_, err = s.LatestAttempt(context.Background())
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	err = s.UpdateAttempt(context.Background(), attempt("nope", time.Now()))
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestLatestAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, s.CreateAttempt(ctx, attempt(id, base.Add(time.Duration(i)*time.Minute))))
	}

	latest, err := s.LatestAttempt(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", latest.ID)
	assert.Empty(t, latest.Warnings)

	list, err := s.ListAttempts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "mid", list[1].ID)
}
