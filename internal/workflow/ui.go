package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/railbook/internal/apperr"
	"github.com/shehryarbajwa/railbook/internal/config"
)

// ui wraps a page with bounded, retrying lookups and the settle delays the
// portal needs between interactions.
type ui struct {
	ctx    context.Context
	page   *rod.Page
	t      config.Timings
	logger *zap.Logger
}

func newUI(ctx context.Context, page *rod.Page, t config.Timings, logger *zap.Logger) *ui {
	return &ui{ctx: ctx, page: page.Context(ctx), t: t, logger: logger}
}

func (u *ui) settle(d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-u.ctx.Done():
		return u.ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// find polls for xpath until it appears or the step timeout elapses.
func (u *ui) find(step, target, xpath string) (*rod.Element, error) {
	return u.findWithin(step, target, xpath, u.t.StepTimeout)
}

func (u *ui) findWithin(step, target, xpath string, wait time.Duration) (*rod.Element, error) {
	el, err := u.page.Timeout(wait).ElementX(xpath)
	if err != nil {
		return nil, apperr.ElementMissing(step, target, err).With("xpath", xpath)
	}
	return el.CancelTimeout(), nil
}

// optional looks for xpath for a short while and reports whether it showed up.
func (u *ui) optional(xpath string) (*rod.Element, bool) {
	el, err := u.page.Timeout(u.t.OptionalWait).ElementX(xpath)
	if err != nil {
		return nil, false
	}
	return el.CancelTimeout(), true
}

// all waits for the first match of xpath and returns every match.
func (u *ui) all(step, target, xpath string) (rod.Elements, error) {
	if _, err := u.find(step, target, xpath); err != nil {
		return nil, err
	}
	els, err := u.page.ElementsX(xpath)
	if err != nil {
		return nil, apperr.ElementMissing(step, target, err).With("xpath", xpath)
	}
	if len(els) == 0 {
		return nil, apperr.ElementMissing(step, target, nil).With("xpath", xpath)
	}
	return els, nil
}

// has checks for xpath without waiting.
func (u *ui) has(xpath string) (bool, *rod.Element, error) {
	return u.page.HasX(xpath)
}

// click uses a real mouse click and falls back to a DOM click when the
// element is covered by an overlay.
func (u *ui) click(step, target string, el *rod.Element) error {
	err := el.Timeout(u.t.StepTimeout).Click(proto.InputMouseButtonLeft, 1)
	if err == nil {
		return nil
	}
	u.logger.Debug("mouse click failed, using DOM click", zap.String("step", step), zap.String("target", target), zap.Error(err))
	if _, jsErr := el.Eval(`() => this.click()`); jsErr != nil {
		return apperr.Wrap(apperr.ElementNotFound, step, fmt.Errorf("click %s: %w", target, errors.Join(err, jsErr))).With("step", step)
	}
	return nil
}

func (u *ui) findAndClick(step, target, xpath string) error {
	el, err := u.find(step, target, xpath)
	if err != nil {
		return err
	}
	return u.click(step, target, el)
}

// fill replaces the input's content with value.
func (u *ui) fill(step, target string, el *rod.Element, value string) error {
	el = el.Timeout(u.t.StepTimeout)
	if err := el.SelectAllText(); err != nil {
		return apperr.Wrap(apperr.ElementNotFound, step, fmt.Errorf("clear %s: %w", target, err)).With("step", step)
	}
	if err := el.Input(value); err != nil {
		return apperr.Wrap(apperr.ElementNotFound, step, fmt.Errorf("type into %s: %w", target, err)).With("step", step)
	}
	return nil
}

func text(el *rod.Element) string {
	s, err := el.Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
