package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/railbook/internal/capture"
	"github.com/shehryarbajwa/railbook/internal/profile"
)

// Handle is one live browser plus the page every workflow drives.
type Handle interface {
	Page() *rod.Page
	Recorder() *capture.Recorder
	ControlURL() string
	// Location reads the page's current URL. It fails once the browser is gone.
	Location(ctx context.Context) (string, error)
	SetWindow(ctx context.Context, visible bool) error
	Close() error
}

// Launcher constructs browsers.
type Launcher interface {
	Mode() string
	Launch(ctx context.Context) (Handle, error)
}

// Options are applied to every page a launcher opens.
type Options struct {
	UserAgent      string
	Width          int
	Height         int
	Headless       bool
	Bin            string
	CapturePattern string
	Logger         *zap.Logger
}

type rodHandle struct {
	browser    *rod.Browser
	page       *rod.Page
	recorder   *capture.Recorder
	controlURL string
	width      int
	height     int
	closeFn    func() error
}

func (h *rodHandle) Page() *rod.Page             { return h.page }
func (h *rodHandle) Recorder() *capture.Recorder { return h.recorder }
func (h *rodHandle) ControlURL() string          { return h.controlURL }

func (h *rodHandle) Location(ctx context.Context) (string, error) {
	res, err := h.page.Context(ctx).Eval(`() => window.location.href`)
	if err != nil {
		return "", err
	}
	return res.Value.String(), nil
}

func (h *rodHandle) SetWindow(ctx context.Context, visible bool) error {
	page := h.page.Context(ctx)
	if visible {
		return showWindow(page)
	}
	return hideWindow(page, h.width, h.height)
}

func (h *rodHandle) Close() error {
	h.recorder.Close()
	if h.closeFn != nil {
		return h.closeFn()
	}
	return nil
}

// closeFunc tears down what a launcher owns. page is nil when opening the
// automation page failed. It is the only cleanup path, on success and failure
// alike, so an attached browser is never closed by mistake.
type closeFunc func(b *rod.Browser, page *rod.Page) error

// openHandle connects to controlURL and prepares the automation page.
func openHandle(ctx context.Context, controlURL string, opts Options, closeFn closeFunc) (*rodHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = closeFn(b, nil)
		return nil, fmt.Errorf("open page: %w", err)
	}
	if err := applyStealth(page, opts); err != nil {
		_ = closeFn(b, page)
		return nil, err
	}

	rec := capture.NewRecorder(opts.CapturePattern, opts.Logger)
	// the recorder outlives the request that created the browser
	if err := rec.Attach(context.Background(), page); err != nil {
		_ = closeFn(b, page)
		return nil, err
	}

	return &rodHandle{
		browser:    b,
		page:       page,
		recorder:   rec,
		controlURL: controlURL,
		width:      opts.Width,
		height:     opts.Height,
		closeFn:    func() error { return closeFn(b, page) },
	}, nil
}

// LocalLauncher starts Chrome on this machine through rod's launcher.
type LocalLauncher struct {
	opts        Options
	profiles    *profile.Manager
	profileName string
	logger      *zap.Logger
}

// NewLocalLauncher creates a launcher. profiles may be nil to disable
// profile persistence.
func NewLocalLauncher(opts Options, profiles *profile.Manager, profileName string) *LocalLauncher {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalLauncher{opts: opts, profiles: profiles, profileName: profileName, logger: logger}
}

func (l *LocalLauncher) Mode() string { return "local" }

func (l *LocalLauncher) Launch(ctx context.Context) (Handle, error) {
	userDataDir := filepath.Join(os.TempDir(), "railbook-profile", uuid.New().String())
	if err := os.MkdirAll(userDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create user data directory: %w", err)
	}
	if l.profiles != nil {
		restored, err := l.profiles.Restore(l.profileName, userDataDir)
		if err != nil {
			l.logger.Warn("profile restore failed, starting clean", zap.String("profile", l.profileName), zap.Error(err))
		} else if restored {
			l.logger.Info("profile restored", zap.String("profile", l.profileName))
		}
	}

	// not bound to ctx: the browser outlives the request that started it
	ln := launcher.New().
		Headless(l.opts.Headless).
		UserDataDir(userDataDir).
		Delete("enable-automation").
		Set("disable-blink-features", "AutomationControlled").
		Set("window-size", fmt.Sprintf("%d,%d", l.opts.Width, l.opts.Height))
	if l.opts.UserAgent != "" {
		ln = ln.Set("user-agent", l.opts.UserAgent)
	}
	if l.opts.Bin != "" {
		ln = ln.Bin(l.opts.Bin)
	}

	controlURL, err := ln.Launch()
	if err != nil {
		os.RemoveAll(userDataDir)
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	closeFn := func(b *rod.Browser, _ *rod.Page) error {
		closeErr := b.Close()
		ln.Kill()
		// give Chrome a moment to flush cookies before the snapshot
		time.Sleep(500 * time.Millisecond)
		if l.profiles != nil {
			if err := l.profiles.Snapshot(l.profileName, userDataDir); err != nil {
				l.logger.Warn("profile snapshot failed", zap.String("profile", l.profileName), zap.Error(err))
			}
		}
		os.RemoveAll(userDataDir)
		return closeErr
	}

	h, err := openHandle(ctx, controlURL, l.opts, closeFn)
	if err != nil {
		// closeFn only runs once connected, so clean up here as well
		ln.Kill()
		os.RemoveAll(userDataDir)
		return nil, err
	}
	return h, nil
}

// RemoteLauncher attaches to an already running Chrome.
type RemoteLauncher struct {
	debuggerURL string
	opts        Options
}

func NewRemoteLauncher(debuggerURL string, opts Options) *RemoteLauncher {
	return &RemoteLauncher{debuggerURL: debuggerURL, opts: opts}
}

func (l *RemoteLauncher) Mode() string { return "remote" }

func (l *RemoteLauncher) Launch(ctx context.Context) (Handle, error) {
	controlURL, err := launcher.ResolveURL(l.debuggerURL)
	if err != nil {
		return nil, fmt.Errorf("resolve debugger url %s: %w", l.debuggerURL, err)
	}
	h, err := openHandle(ctx, controlURL, l.opts, closeRemotePage)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// closeRemotePage closes only the page we opened. The remote browser is not
// ours to close.
func closeRemotePage(_ *rod.Browser, page *rod.Page) error {
	if page == nil {
		return nil
	}
	return page.Close()
}
