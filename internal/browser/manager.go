// Package browser owns the single automation browser: it creates it on
// demand, probes it before every use and recreates it when it has died.
package browser

import (
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/railbook/internal/apperr"
	"github.com/shehryarbajwa/railbook/internal/capture"
	"github.com/shehryarbajwa/railbook/internal/logging"
	"github.com/shehryarbajwa/railbook/pkg/models"
)

// Manager holds at most one live Handle.
type Manager struct {
	launcher     Launcher
	probeTimeout time.Duration
	logger       *zap.Logger

	mu        sync.Mutex
	handle    Handle
	visible   bool
	startedAt time.Time
	launches  int
}

// NewManager creates a manager that builds browsers with launcher.
func NewManager(launcher Launcher, probeTimeout time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if probeTimeout <= 0 {
		probeTimeout = 3 * time.Second
	}
	return &Manager{
		launcher:     launcher,
		probeTimeout: probeTimeout,
		logger:       logging.Component(logger, "browser"),
	}
}

// Acquire returns the live page, constructing or reconstructing the browser
// as needed. It never returns a page whose browser failed the probe.
func (m *Manager) Acquire(ctx context.Context) (*rod.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.acquireLocked(ctx)
	if err != nil {
		return nil, err
	}
	return h.Page(), nil
}

func (m *Manager) acquireLocked(ctx context.Context) (Handle, error) {
	if m.handle != nil {
		_, err := m.probe(ctx, m.handle)
		if err == nil {
			return m.handle, nil
		}
		m.logger.Warn("browser failed liveness probe, recreating", zap.Error(err))
		if err := m.handle.Close(); err != nil {
			m.logger.Debug("closing dead browser", zap.Error(err))
		}
		m.handle = nil
	}

	h, err := m.launcher.Launch(ctx)
	m.launches++
	if err != nil {
		m.logger.Error("browser launch failed", zap.String("mode", m.launcher.Mode()), zap.Error(err))
		return nil, apperr.Wrap(apperr.SessionUnavailable, "browser.acquire", err)
	}
	m.handle = h
	m.startedAt = time.Now()
	m.visible = true
	m.logger.Info("browser started", zap.String("mode", m.launcher.Mode()))
	return h, nil
}

func (m *Manager) probe(ctx context.Context, h Handle) (string, error) {
	pctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()
	return h.Location(pctx)
}

// Recorder returns the capture recorder of the live browser, or nil.
func (m *Manager) Recorder() *capture.Recorder {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		return nil
	}
	return m.handle.Recorder()
}

// Release closes the browser. It is safe to call when none exists.
func (m *Manager) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		return nil
	}
	h := m.handle
	m.handle = nil
	m.visible = false
	if err := h.Close(); err != nil {
		return apperr.Wrap(apperr.Internal, "browser.release", err)
	}
	m.logger.Info("browser released")
	return nil
}

// SetVisible brings the window on-screen and maximizes it.
func (m *Manager) SetVisible(ctx context.Context) error {
	return m.setWindow(ctx, true)
}

// SetHidden moves the window off-screen. The page keeps running.
func (m *Manager) SetHidden(ctx context.Context) error {
	return m.setWindow(ctx, false)
}

func (m *Manager) setWindow(ctx context.Context, visible bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.acquireLocked(ctx)
	if err != nil {
		return err
	}
	if err := h.SetWindow(ctx, visible); err != nil {
		return apperr.Wrap(apperr.SessionUnavailable, "browser.window", err)
	}
	m.visible = visible
	return nil
}

// Status reports on the browser without creating one.
func (m *Manager) Status(ctx context.Context) models.BrowserStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := models.BrowserStatus{Mode: m.launcher.Mode()}
	if m.handle == nil {
		return st
	}
	url, err := m.probe(ctx, m.handle)
	st.Alive = err == nil
	st.URL = url
	st.Visible = m.visible
	st.ControlURL = m.handle.ControlURL()
	st.StartedAt = m.startedAt
	return st
}

// ControlURL returns the DevTools websocket URL of the live browser.
func (m *Manager) ControlURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		return ""
	}
	return m.handle.ControlURL()
}

// Launches counts launch attempts since the manager was created.
func (m *Manager) Launches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.launches
}
