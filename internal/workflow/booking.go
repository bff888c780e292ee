// Package workflow drives the portal's multi-step UI: booking, sign-in and
// the booking-options scrape.
package workflow

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/railbook/internal/apperr"
	"github.com/shehryarbajwa/railbook/internal/config"
	"github.com/shehryarbajwa/railbook/internal/logging"
	"github.com/shehryarbajwa/railbook/internal/store"
	"github.com/shehryarbajwa/railbook/pkg/models"
)

// maxPassengerRemovals bounds the passenger-reset loop.
const maxPassengerRemovals = 12

var otpPattern = regexp.MustCompile(`^\d{4,8}$`)

// Settings configure a workflow.
type Settings struct {
	Timings   config.Timings
	Selectors Selectors
	Logger    *zap.Logger
}

func (s Settings) withDefaults() Settings {
	if s.Selectors == (Selectors{}) {
		s.Selectors = DefaultSelectors()
	}
	if s.Timings == (config.Timings{}) {
		s.Timings = config.DefaultTimings()
	}
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	return s
}

// Booking runs the booking workflow against the shared browser.
type Booking struct {
	runner Runner
	store  store.Store
	sel    Selectors
	t      config.Timings
	logger *zap.Logger
	phases phaseRunner

	// serializes attempt state transitions made outside the browser guard
	mu sync.Mutex
}

// NewBooking creates the booking workflow.
func NewBooking(runner Runner, st store.Store, settings Settings) *Booking {
	settings = settings.withDefaults()
	logger := logging.Component(settings.Logger, "booking")
	return &Booking{
		runner: runner,
		store:  st,
		sel:    settings.Selectors,
		t:      settings.Timings,
		logger: logger,
		phases: phaseRunner{store: st, logger: logger},
	}
}

// Submit validates the request and runs the booking up to the OTP prompt.
// The returned attempt is PENDING_OTP on success and FAILED otherwise.
func (b *Booking) Submit(ctx context.Context, req models.BookingRequest) (*models.BookingAttempt, error) {
	if err := req.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.Validation, "booking.submit", err)
	}
	label, _ := models.JourneyDateLabel(req.JourneyDate)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	a := &models.BookingAttempt{
		ID:          uuid.New().String(),
		TrainNumber: req.TrainNumber,
		Quota:       req.Quota,
		Class:       req.Class,
		JourneyDate: label,
		Passengers:  len(req.Passengers),
		Phase:       models.PhaseLocateTrain,
		Status:      models.AttemptRunning,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := b.store.CreateAttempt(ctx, a); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "booking.submit", err)
	}
	b.logger.Info("booking started",
		zap.String("attempt", a.ID),
		zap.String("train", a.TrainNumber),
		zap.String("quota", a.Quota),
		zap.String("class", a.Class),
		zap.String("date", label),
		zap.Int("passengers", a.Passengers))

	err := b.runner.Exclusive(ctx, func(ctx context.Context, page *rod.Page) error {
		u := newUI(ctx, page, b.t, b.logger)
		return b.phases.run(ctx, a, b.bookingSteps(u, req, a, label))
	})
	if err != nil {
		if a.Status != models.AttemptFailed {
			err = b.phases.fail(ctx, a, err)
		}
		return a, err
	}

	a.Phase = models.PhaseAwaitingOTP
	a.Status = models.AttemptPendingOTP
	if err := b.store.UpdateAttempt(ctx, a); err != nil {
		return a, apperr.Wrap(apperr.Internal, "booking.submit", err)
	}
	b.logger.Info("booking waiting for OTP", zap.String("attempt", a.ID))
	return a, nil
}

func (b *Booking) bookingSteps(u *ui, req models.BookingRequest, a *models.BookingAttempt, dateLabel string) []step {
	var label *rod.Element
	return []step{
		{models.PhaseLocateTrain, func() error {
			el, err := b.locateTrain(u, req.TrainNumber)
			label = el
			return err
		}},
		{models.PhaseOpenTicketPanel, func() error {
			return b.openTicketPanel(u, label)
		}},
		{models.PhaseSelectQuota, func() error {
			return b.selectOption(u, a, models.PhaseSelectQuota, "quota", b.sel.QuotaOptions, req.Quota)
		}},
		{models.PhaseSelectClass, func() error {
			return b.selectOption(u, a, models.PhaseSelectClass, "class", b.sel.ClassOptions, req.Class)
		}},
		{models.PhaseSelectDate, func() error {
			return b.selectDate(u, a, dateLabel)
		}},
		{models.PhaseSubmitForm, func() error {
			return b.submitForm(u)
		}},
		{models.PhaseResetPassengers, func() error {
			return b.resetPassengers(u)
		}},
		{models.PhaseAddPassengers, func() error {
			return b.addPassengers(u, req.Passengers)
		}},
		{models.PhaseReview, func() error {
			return b.review(u)
		}},
	}
}

func (b *Booking) locateTrain(u *ui, number string) (*rod.Element, error) {
	step := string(models.PhaseLocateTrain)
	if err := u.settle(b.t.Settle); err != nil {
		return nil, err
	}
	labels, err := u.all(step, "train list", b.sel.TrainLabels)
	if err != nil {
		return nil, err
	}
	want := trainLabelFor(number)
	for _, el := range labels {
		if t := text(el); containsLabel(t, want) {
			b.logger.Debug("train located", zap.String("label", t))
			return el, nil
		}
	}
	return nil, apperr.ElementMissing(step, "train "+number, nil).With("trainNumber", number)
}

func containsLabel(text, want string) bool {
	return want != "()" && strings.Contains(text, want)
}

func (b *Booking) openTicketPanel(u *ui, label *rod.Element) error {
	step := string(models.PhaseOpenTicketPanel)
	if label == nil {
		return apperr.ElementMissing(step, "train card", nil)
	}
	card, err := label.Timeout(b.t.StepTimeout).ElementX(b.sel.TrainCard)
	if err != nil {
		return apperr.ElementMissing(step, "train card", err)
	}
	card = card.CancelTimeout()
	if err := u.settle(b.t.Settle); err != nil {
		return err
	}
	buttons, err := card.ElementsX(b.sel.TicketButton)
	if err != nil || len(buttons) == 0 {
		return apperr.ElementMissing(step, "ticket button", err)
	}
	if err := u.click(step, "ticket button", buttons[0]); err != nil {
		return err
	}
	return u.settle(b.t.PanelSettle)
}

// selectOption clicks the option whose label equals want. When nothing
// matches the portal's default stays selected and a warning is recorded on
// the attempt.
func (b *Booking) selectOption(u *ui, a *models.BookingAttempt, phase models.Phase, what, xpath, want string) error {
	step := string(phase)
	options, err := u.all(step, what+" options", xpath)
	if err != nil {
		return err
	}
	var offered []string
	for _, el := range options {
		t := text(el)
		offered = append(offered, t)
		if exactLabel(t, want) {
			if err := u.click(step, what+" "+want, el); err != nil {
				return err
			}
			return u.settle(b.t.PanelSettle)
		}
	}
	return b.keepDefault(a, what, want, offered)
}

// keepDefault records that want was not among the offered options. The
// booking carries on with whatever the portal preselected.
func (b *Booking) keepDefault(a *models.BookingAttempt, what, want string, offered []string) error {
	warning := fmt.Sprintf("%s %q not offered (options: %v); portal default kept", what, want, offered)
	a.Warnings = append(a.Warnings, warning)
	b.logger.Warn("option not matched, keeping default",
		zap.String("attempt", a.ID),
		zap.String(what, want),
		zap.Strings("offered", offered))
	return nil
}

func (b *Booking) selectDate(u *ui, a *models.BookingAttempt, label string) error {
	step := string(models.PhaseSelectDate)
	chips, err := u.all(step, "date options", b.sel.DateChips)
	if err != nil {
		return err
	}
	texts := make([]string, len(chips))
	for i, el := range chips {
		texts[i] = text(el)
	}
	i := pickDate(texts, label)
	if i < 0 {
		offered := make([]string, len(texts))
		for j, t := range texts {
			offered[j] = chipDate(t)
		}
		return b.keepDefault(a, "date", label, offered)
	}
	if err := u.click(step, "date "+label, chips[i]); err != nil {
		return err
	}
	return u.settle(b.t.Settle)
}

func (b *Booking) submitForm(u *ui) error {
	step := string(models.PhaseSubmitForm)
	if err := u.findAndClick(step, "BOOK TICKET button", b.sel.BookTicket); err != nil {
		return err
	}
	if err := u.settle(b.t.PanelSettle); err != nil {
		return err
	}
	if el, ok := u.optional(b.sel.Confirm); ok {
		if err := u.click(step, "confirm button", el); err != nil {
			return err
		}
		return u.settle(b.t.PanelSettle)
	}
	b.logger.Debug("no confirmation prompt after BOOK TICKET")
	return nil
}

// resetPassengers removes prefilled passengers until none are left.
func (b *Booking) resetPassengers(u *ui) error {
	step := string(models.PhaseResetPassengers)
	for i := 0; i < maxPassengerRemovals; i++ {
		present, el, err := u.has(b.sel.PassengerRemove)
		if err != nil {
			return apperr.Wrap(apperr.ElementNotFound, step, err)
		}
		if !present {
			return nil
		}
		if err := u.click(step, "remove passenger", el); err != nil {
			return err
		}
		if err := u.settle(b.t.Settle / 2); err != nil {
			return err
		}
	}
	if present, _, _ := u.has(b.sel.PassengerRemove); present {
		return apperr.New(apperr.ElementNotFound, step,
			"passenger list still populated after %d removals", maxPassengerRemovals)
	}
	return nil
}

func (b *Booking) addPassengers(u *ui, passengers []models.Passenger) error {
	step := string(models.PhaseAddPassengers)
	for i, p := range passengers {
		if i > 0 {
			if err := u.settle(b.t.Settle); err != nil {
				return err
			}
			if err := u.findAndClick(step, "Add Passenger button", b.sel.AddPassenger); err != nil {
				return err
			}
			if err := u.settle(b.t.Settle); err != nil {
				return err
			}
		}

		gender := string(p.Gender)
		if err := u.findAndClick(step, "gender option "+gender, genderXPath(b.sel.GenderOption, gender)); err != nil {
			return err
		}
		if err := u.settle(b.t.Settle); err != nil {
			return err
		}

		name, err := u.find(step, "name field", b.sel.NameInput)
		if err != nil {
			return err
		}
		if err := u.fill(step, "name field", name, p.Name); err != nil {
			return err
		}
		age, err := u.find(step, "age field", b.sel.AgeInput)
		if err != nil {
			return err
		}
		if err := u.fill(step, "age field", age, fmt.Sprint(p.Age)); err != nil {
			return err
		}

		if err := u.findAndClick(step, "Add Passenger button", b.sel.AddPassenger); err != nil {
			return err
		}
		b.logger.Debug("passenger entered", zap.Int("index", i+1))
	}
	return nil
}

func (b *Booking) review(u *ui) error {
	step := string(models.PhaseReview)
	if err := u.findAndClick(step, "review journey button", b.sel.ReviewJourney); err != nil {
		return err
	}
	if err := u.settle(b.t.PanelSettle); err != nil {
		return err
	}
	if err := u.findAndClick(step, "drawer footer button", b.sel.DrawerAction); err != nil {
		return err
	}
	if err := u.settle(b.t.Settle); err != nil {
		return err
	}
	if el, ok := u.optional(b.sel.Confirm); ok {
		return u.click(step, "confirm button", el)
	}
	return nil
}

// SubmitOTP enters the OTP for the booking waiting on one.
func (b *Booking) SubmitOTP(ctx context.Context, code string) (*models.BookingAttempt, error) {
	if !otpPattern.MatchString(code) {
		return nil, apperr.New(apperr.Validation, "booking.otp", "otp must be 4 to 8 digits")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	a, err := b.pending(ctx, models.AttemptPendingOTP)
	if err != nil {
		return nil, err
	}

	err = b.runner.Exclusive(ctx, func(ctx context.Context, page *rod.Page) error {
		u := newUI(ctx, page, b.t, b.logger)
		return b.phases.run(ctx, a, []step{
			{models.PhaseOTPSubmitted, func() error {
				step := string(models.PhaseOTPSubmitted)
				input, err := u.findWithin(step, "OTP field", b.sel.OTPInput, b.t.OTPWait)
				if err != nil {
					return err
				}
				if err := u.fill(step, "OTP field", input, code); err != nil {
					return err
				}
				if err := u.settle(b.t.Settle); err != nil {
					return err
				}
				if err := u.findAndClick(step, "verify button", b.sel.OTPVerify); err != nil {
					return err
				}
				return u.settle(b.t.PanelSettle)
			}},
		})
	})
	if err != nil {
		if a.Status != models.AttemptFailed {
			err = b.phases.fail(ctx, a, err)
		}
		return a, err
	}

	a.Status = models.AttemptPendingPayment
	if err := b.store.UpdateAttempt(ctx, a); err != nil {
		return a, apperr.Wrap(apperr.Internal, "booking.otp", err)
	}
	b.logger.Info("OTP submitted, waiting for payment", zap.String("attempt", a.ID))
	return a, nil
}

// ShowPayment brings the browser forward so a person can pay. Reaching this
// point completes the attempt: payment itself is never automated.
func (b *Booking) ShowPayment(ctx context.Context) (*models.BookingAttempt, error) {
	if err := b.runner.SetVisible(ctx); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	a, err := b.pending(ctx, models.AttemptPendingPayment)
	if err != nil {
		// showing the window is still useful without a pending booking
		if apperr.Is(err, apperr.Validation) || apperr.Is(err, apperr.NotFound) {
			return nil, nil
		}
		return nil, err
	}
	a.Phase = models.PhasePaymentHandoff
	a.Status = models.AttemptCompleted
	if err := b.store.UpdateAttempt(ctx, a); err != nil {
		return a, apperr.Wrap(apperr.Internal, "booking.payment", err)
	}
	b.logger.Info("payment handed off", zap.String("attempt", a.ID))
	return a, nil
}

// HideBrowser moves the browser back off-screen.
func (b *Booking) HideBrowser(ctx context.Context) error {
	return b.runner.SetHidden(ctx)
}

// Attempt returns one attempt.
func (b *Booking) Attempt(ctx context.Context, id string) (*models.BookingAttempt, error) {
	return b.store.GetAttempt(ctx, id)
}

// Attempts lists recent attempts, newest first.
func (b *Booking) Attempts(ctx context.Context, limit int) ([]models.BookingAttempt, error) {
	return b.store.ListAttempts(ctx, limit)
}

func (b *Booking) pending(ctx context.Context, want models.AttemptStatus) (*models.BookingAttempt, error) {
	a, err := b.store.LatestAttempt(ctx)
	if err != nil {
		return nil, err
	}
	if a.Status != want {
		return nil, apperr.New(apperr.Validation, "booking",
			"latest booking %s is %s, not %s", a.ID, a.Status, want).With("attempt_id", a.ID)
	}
	return a, nil
}
