package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/railbook/internal/apperr"
	"github.com/shehryarbajwa/railbook/internal/store"
	"github.com/shehryarbajwa/railbook/pkg/models"
)

// Runner gives exclusive access to the live page. session.Session
// implements it.
type Runner interface {
	Exclusive(ctx context.Context, fn func(ctx context.Context, page *rod.Page) error) error
	SetVisible(ctx context.Context) error
	SetHidden(ctx context.Context) error
}

type step struct {
	phase models.Phase
	run   func() error
}

// phaseRunner walks an attempt through named phases, persisting the
// current phase before each one runs. It stops at the first failure and
// never rolls back.
type phaseRunner struct {
	store  store.Store
	logger *zap.Logger
}

func (r phaseRunner) run(ctx context.Context, a *models.BookingAttempt, steps []step) error {
	for _, s := range steps {
		a.Phase = s.phase
		if err := r.store.UpdateAttempt(ctx, a); err != nil {
			return r.fail(ctx, a, fmt.Errorf("record phase %s: %w", s.phase, err))
		}
		r.logger.Info("booking phase", zap.String("attempt", a.ID), zap.String("phase", string(s.phase)))
		if err := s.run(); err != nil {
			return r.fail(ctx, a, err)
		}
	}
	return nil
}

// fail marks the attempt FAILED at its current phase and returns the error
// annotated with where it stopped.
func (r phaseRunner) fail(ctx context.Context, a *models.BookingAttempt, err error) error {
	kind := classify(err)
	a.Status = models.AttemptFailed
	a.Error = err.Error()
	a.ErrorKind = string(kind)
	if uerr := r.store.UpdateAttempt(context.WithoutCancel(ctx), a); uerr != nil {
		r.logger.Error("failed to record booking failure", zap.String("attempt", a.ID), zap.Error(uerr))
	}
	r.logger.Warn("booking stopped",
		zap.String("attempt", a.ID),
		zap.String("phase", string(a.Phase)),
		zap.String("kind", string(kind)),
		zap.Error(err))

	out := &apperr.Error{Kind: kind, Op: "booking", Err: err}
	return out.With("attempt_id", a.ID).With("phase", string(a.Phase))
}

func classify(err error) apperr.Kind {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	var nf *rod.ElementNotFoundError
	if errors.As(err, &nf) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.ElementNotFound
	}
	return apperr.Internal
}
