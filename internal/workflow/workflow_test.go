package workflow

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/go-rod/rod"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/railbook/internal/apperr"
	"github.com/shehryarbajwa/railbook/internal/config"
	"github.com/shehryarbajwa/railbook/internal/store"
)

// fakeRunner never hands out a page: Exclusive returns err without calling
// fn, so tests only reach the paths that precede or replace browser work.
type fakeRunner struct {
	err     error
	calls   atomic.Int32
	visible atomic.Bool
}

func (r *fakeRunner) Exclusive(ctx context.Context, fn func(ctx context.Context, page *rod.Page) error) error {
	r.calls.Add(1)
	if r.err != nil {
		return r.err
	}
	return apperr.New(apperr.SessionUnavailable, "session", "no browser in tests")
}

func (r *fakeRunner) SetVisible(ctx context.Context) error {
	r.visible.Store(true)
	return nil
}

func (r *fakeRunner) SetHidden(ctx context.Context) error {
	r.visible.Store(false)
	return nil
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testSettings() Settings {
	t := config.DefaultTimings()
	t.Settle = 0
	t.PanelSettle = 0
	return Settings{Timings: t}
}
