package workflow

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/railbook/internal/apperr"
	"github.com/shehryarbajwa/railbook/internal/config"
	"github.com/shehryarbajwa/railbook/internal/logging"
)

var phonePattern = regexp.MustCompile(`^[6-9]\d{9}$`)

// NormalizePhone strips separators and an Indian country prefix and checks
// that a 10-digit mobile number remains.
func NormalizePhone(raw string) (string, error) {
	s := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "+")
	if len(s) == 12 && strings.HasPrefix(s, "91") {
		s = s[2:]
	}
	if len(s) == 11 && strings.HasPrefix(s, "0") {
		s = s[1:]
	}
	if !phonePattern.MatchString(s) {
		return "", apperr.New(apperr.Validation, "signin", "phone %q must be a 10-digit mobile number", raw)
	}
	return s, nil
}

// SignIn logs the portal user in with a phone number and OTP.
type SignIn struct {
	runner Runner
	sel    Selectors
	t      config.Timings
	logger *zap.Logger

	mu      sync.Mutex
	pending string
}

// NewSignIn creates the sign-in workflow.
func NewSignIn(runner Runner, settings Settings) *SignIn {
	settings = settings.withDefaults()
	return &SignIn{
		runner: runner,
		sel:    settings.Selectors,
		t:      settings.Timings,
		logger: logging.Component(settings.Logger, "signin"),
	}
}

// Start opens the sign-in drawer and requests an OTP for phone.
func (s *SignIn) Start(ctx context.Context, phone string) error {
	number, err := NormalizePhone(phone)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.runner.Exclusive(ctx, func(ctx context.Context, page *rod.Page) error {
		u := newUI(ctx, page, s.t, s.logger)
		const step = "signin_start"
		if err := u.findAndClick(step, "sign-in button", s.sel.SignInButton); err != nil {
			return err
		}
		if err := u.settle(s.t.Settle); err != nil {
			return err
		}
		input, err := u.find(step, "phone field", s.sel.SignInInput)
		if err != nil {
			return err
		}
		if err := u.fill(step, "phone field", input, number); err != nil {
			return err
		}
		if err := u.settle(s.t.Settle); err != nil {
			return err
		}
		return u.findAndClick(step, "request OTP button", s.sel.SignInSubmit)
	})
	if err != nil {
		s.pending = ""
		return err
	}
	s.pending = number
	s.logger.Info("sign-in OTP requested", zap.String("phone", maskPhone(number)))
	return nil
}

// SubmitOTP completes a sign-in started with Start.
func (s *SignIn) SubmitOTP(ctx context.Context, code string) error {
	if !otpPattern.MatchString(code) {
		return apperr.New(apperr.Validation, "signin.otp", "otp must be 4 to 8 digits")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == "" {
		return apperr.New(apperr.Validation, "signin.otp", "no sign-in in progress; start one with a phone number first")
	}

	err := s.runner.Exclusive(ctx, func(ctx context.Context, page *rod.Page) error {
		u := newUI(ctx, page, s.t, s.logger)
		const step = "signin_otp"
		input, err := u.findWithin(step, "OTP field", s.sel.SignInInput, s.t.OTPWait)
		if err != nil {
			return err
		}
		if err := u.fill(step, "OTP field", input, code); err != nil {
			return err
		}
		if err := u.settle(s.t.Settle); err != nil {
			return err
		}
		if err := u.findAndClick(step, "verify button", s.sel.SignInSubmit); err != nil {
			return err
		}
		return u.settle(s.t.PanelSettle)
	})
	if err != nil {
		return err
	}
	s.logger.Info("signed in", zap.String("phone", maskPhone(s.pending)))
	s.pending = ""
	return nil
}

// Pending reports whether a sign-in is waiting for its OTP.
func (s *SignIn) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != ""
}

func maskPhone(p string) string {
	if len(p) < 4 {
		return "****"
	}
	return strings.Repeat("*", len(p)-4) + p[len(p)-4:]
}
