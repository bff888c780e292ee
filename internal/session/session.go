// Package session is the explicit context every browser-touching operation
// goes through. It owns the single-writer guard around the shared browser.
package session

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/shehryarbajwa/railbook/internal/apperr"
	"github.com/shehryarbajwa/railbook/internal/cache"
	"github.com/shehryarbajwa/railbook/internal/capture"
	"github.com/shehryarbajwa/railbook/internal/logging"
	"github.com/shehryarbajwa/railbook/pkg/models"
)

// Browser is the subset of browser.Manager the session uses.
type Browser interface {
	Acquire(ctx context.Context) (*rod.Page, error)
	Recorder() *capture.Recorder
	Release() error
	SetVisible(ctx context.Context) error
	SetHidden(ctx context.Context) error
	Status(ctx context.Context) models.BrowserStatus
	ControlURL() string
}

// Settings configure navigation and capture.
type Settings struct {
	PortalURL      string
	CapturePattern string
	CaptureWait    time.Duration
	// PageLoadSettle is waited after every navigation so the portal's
	// scripts can fire their first requests.
	PageLoadSettle time.Duration
	Identity       string
}

// Session serializes browser work and feeds captures into the cache.
type Session struct {
	browser  Browser
	cache    *cache.Cache
	settings Settings
	sem      *semaphore.Weighted
	logger   *zap.Logger
}

// New creates a session over browser and cache.
func New(b Browser, c *cache.Cache, settings Settings, logger *zap.Logger) *Session {
	if settings.Identity == "" {
		settings.Identity = cache.DefaultIdentity
	}
	if settings.CapturePattern == "" {
		settings.CapturePattern = capture.DefaultPattern
	}
	return &Session{
		browser:  b,
		cache:    c,
		settings: settings,
		sem:      semaphore.NewWeighted(1),
		logger:   logging.Component(logger, "session"),
	}
}

// Exclusive runs fn with sole access to the live page. Waiting for the guard
// honours ctx.
func (s *Session) Exclusive(ctx context.Context, fn func(ctx context.Context, page *rod.Page) error) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.sem.Release(1)

	page, err := s.browser.Acquire(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, page)
}

func (s *Session) lock(ctx context.Context) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return apperr.Wrap(apperr.SessionUnavailable, "session.lock",
			fmt.Errorf("browser busy with another operation: %w", err))
	}
	return nil
}

// Ensure makes sure a live browser exists and reports on it.
func (s *Session) Ensure(ctx context.Context) (models.BrowserStatus, error) {
	err := s.Exclusive(ctx, func(context.Context, *rod.Page) error { return nil })
	if err != nil {
		return models.BrowserStatus{}, err
	}
	return s.browser.Status(ctx), nil
}

// Status reports on the browser without waiting for running operations.
func (s *Session) Status(ctx context.Context) models.BrowserStatus {
	return s.browser.Status(ctx)
}

// SearchOutcome summarizes a completed search.
type SearchOutcome struct {
	TrainCount     int       `json:"trainCount"`
	CapturedAt     time.Time `json:"capturedAt"`
	HasCredentials bool      `json:"hasCredentials"`
}

// SearchURL builds the portal deep link for a query.
func SearchURL(base string, q models.SearchQuery) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid portal url %q: %w", base, err)
	}
	date, err := q.PortalDate()
	if err != nil {
		return "", err
	}
	v := u.Query()
	v.Set("FROM", q.Source)
	v.Set("TO", q.Destination)
	v.Set("DATE", date)
	v.Set("QUOTA", q.Quota)
	u.RawQuery = v.Encode()
	return u.String(), nil
}

// Search opens the portal on the query's deep link, waits for the train
// listing request to be captured and caches its decoded result.
func (s *Session) Search(ctx context.Context, q models.SearchQuery) (*SearchOutcome, error) {
	q = q.Normalize()
	if err := q.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.Validation, "session.search", err)
	}
	target, err := SearchURL(s.settings.PortalURL, q)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "session.search", err)
	}

	var outcome *SearchOutcome
	err = s.Exclusive(ctx, func(ctx context.Context, page *rod.Page) error {
		rec := s.browser.Recorder()
		if rec == nil {
			return apperr.New(apperr.SessionUnavailable, "session.search", "browser has no network recorder")
		}
		rec.Reset()

		s.logger.Info("searching trains",
			zap.String("from", q.Source), zap.String("to", q.Destination),
			zap.String("date", q.Date), zap.String("quota", q.Quota))
		if err := page.Context(ctx).Navigate(target); err != nil {
			return apperr.Wrap(apperr.SessionUnavailable, "session.search", fmt.Errorf("navigate: %w", err))
		}
		if err := settle(ctx, s.settings.PageLoadSettle); err != nil {
			return err
		}

		txs, err := rec.Await(ctx, s.settings.CapturePattern, s.settings.CaptureWait)
		if err != nil {
			return err
		}
		outcome, err = s.ingest(q, txs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// ingest decodes a captured transaction log into the cache. Credentials are
// optional; a missing train list is a CaptureMiss.
func (s *Session) ingest(q models.SearchQuery, txs []capture.Transaction) (*SearchOutcome, error) {
	res, err := capture.DecodeSearch(txs, s.settings.CapturePattern)
	if err != nil {
		return nil, err
	}
	res.Query = q
	s.cache.SetResult(res)

	outcome := &SearchOutcome{TrainCount: len(res.Trains), CapturedAt: res.CapturedAt}
	creds, err := capture.DecodeCredentials(txs, s.settings.CapturePattern)
	if err != nil {
		s.logger.Warn("search captured without credentials", zap.Error(err))
	} else {
		s.cache.SetCredentials(s.settings.Identity, creds)
		outcome.HasCredentials = true
	}
	s.logger.Info("search cached",
		zap.Int("trains", outcome.TrainCount),
		zap.Bool("credentials", outcome.HasCredentials),
		zap.Uint64("generation", s.cache.Generation()))
	return outcome, nil
}

// Reset clears cached data and brings the browser back to the portal home
// page. It is the recovery path after any capture or workflow failure.
func (s *Session) Reset(ctx context.Context) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.sem.Release(1)

	// cleared under the guard so a search finishing ahead of us cannot refill it
	s.cache.Clear()
	page, err := s.browser.Acquire(ctx)
	if err != nil {
		return err
	}
	if rec := s.browser.Recorder(); rec != nil {
		rec.Reset()
	}
	if err := page.Context(ctx).Navigate(s.settings.PortalURL); err != nil {
		return apperr.Wrap(apperr.SessionUnavailable, "session.reset", fmt.Errorf("navigate home: %w", err))
	}
	if err := settle(ctx, s.settings.PageLoadSettle); err != nil {
		return err
	}
	s.logger.Info("session reset")
	return nil
}

func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Close shuts the browser down after any running operation finishes.
func (s *Session) Close(ctx context.Context) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.sem.Release(1)
	return s.browser.Release()
}

// SetVisible shows the browser window.
func (s *Session) SetVisible(ctx context.Context) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.sem.Release(1)
	return s.browser.SetVisible(ctx)
}

// SetHidden moves the browser window off-screen.
func (s *Session) SetHidden(ctx context.Context) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.sem.Release(1)
	return s.browser.SetHidden(ctx)
}
