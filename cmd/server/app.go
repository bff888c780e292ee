package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shehryarbajwa/railbook/internal/api"
	"github.com/shehryarbajwa/railbook/internal/browser"
	"github.com/shehryarbajwa/railbook/internal/cache"
	"github.com/shehryarbajwa/railbook/internal/config"
	"github.com/shehryarbajwa/railbook/internal/logging"
	"github.com/shehryarbajwa/railbook/internal/portal"
	"github.com/shehryarbajwa/railbook/internal/profile"
	"github.com/shehryarbajwa/railbook/internal/proxy"
	"github.com/shehryarbajwa/railbook/internal/query"
	"github.com/shehryarbajwa/railbook/internal/ratelimit"
	"github.com/shehryarbajwa/railbook/internal/session"
	"github.com/shehryarbajwa/railbook/internal/store"
	"github.com/shehryarbajwa/railbook/internal/workflow"
)

// app holds every long-lived component of the server.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	browser  *browser.Manager
	session  *session.Session
	cache    *cache.Cache
	store    *store.SQLiteStore
	engine   *query.Engine
	booking  *workflow.Booking
	signin   *workflow.SignIn
	options  *workflow.Options
	listing  *workflow.Listing
	routes   *portal.Client
	closers  []func() error
	registry *prometheus.Registry
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newLauncher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (browser.Launcher, func() error, error) {
	opts := browser.Options{
		UserAgent:      cfg.Browser.UserAgent,
		Width:          cfg.Browser.Width,
		Height:         cfg.Browser.Height,
		Headless:       cfg.Browser.Headless,
		Bin:            cfg.Browser.Bin,
		CapturePattern: cfg.CapturePattern,
		Logger:         logger,
	}
	switch cfg.Browser.Mode {
	case config.ModeRemote:
		return browser.NewRemoteLauncher(cfg.Browser.DebuggerURL, opts), nil, nil
	case config.ModeDocker:
		d, err := browser.NewDockerLauncher(cfg.Browser.DockerImage, opts)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("ensuring browser image", zap.String("image", cfg.Browser.DockerImage))
		if err := d.EnsureImage(ctx); err != nil {
			d.Close()
			return nil, nil, fmt.Errorf("failed to ensure image: %w", err)
		}
		return d, d.Close, nil
	default:
		var profiles *profile.Manager
		if cfg.ProfileDir != "" {
			m, err := profile.NewManager(cfg.ProfileDir)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create profile manager: %w", err)
			}
			profiles = m
		} else {
			logger.Info("profile persistence disabled, PROFILE_DIR not set")
		}
		return browser.NewLocalLauncher(opts, profiles, cfg.Browser.ProfileName), nil, nil
	}
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, cache: cache.New()}

	launcher, closeLauncher, err := newLauncher(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if closeLauncher != nil {
		a.closers = append(a.closers, closeLauncher)
	}

	st, err := store.NewSQLiteStore(cfg.StoreDSN)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a.store = st
	a.closers = append(a.closers, st.Close)

	a.browser = browser.NewManager(launcher, cfg.Timings.ProbeTimeout, logger)
	a.session = session.New(a.browser, a.cache, session.Settings{
		PortalURL:      cfg.PortalURL,
		CapturePattern: cfg.CapturePattern,
		CaptureWait:    cfg.Timings.CaptureWait,
		PageLoadSettle: cfg.Timings.PageLoadSettle,
	}, logger)
	a.engine = query.NewEngine(a.cache)

	wf := workflow.Settings{
		Timings:   cfg.Timings,
		Selectors: workflow.DefaultSelectors(),
		Logger:    logger,
	}
	a.booking = workflow.NewBooking(a.session, st, wf)
	a.signin = workflow.NewSignIn(a.session, wf)
	a.options = workflow.NewOptions(a.session, a.booking, wf)
	a.listing = workflow.NewListing(a.session, wf)
	a.routes = portal.NewClient(cfg.RouteLookupURL, a.cache, logger, portal.WithRate(rate.Limit(1), 3))

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return a, nil
}

func (a *app) router() *apiRouter {
	h := api.NewHandler(api.Deps{
		Sessions:    a.session,
		Queries:     a.engine,
		Credentials: a.cache,
		Bookings:    a.booking,
		SignIns:     a.signin,
		Routes:      a.routes,
		Options:     a.options,
		Renderer:    a.listing,
		Logger:      a.logger,
	})
	limiter := ratelimit.NewLimiter(a.cfg.RateLimitPerHour, a.cfg.RateLimitBurst)
	return &apiRouter{
		Handler: h.SetupRoutes(api.RouterOptions{
			Proxy:       proxy.NewServer(a.browser, a.logger),
			RateLimiter: limiter,
			Registry:    a.registry,
		}),
		limiter: limiter,
	}
}

// shutdown releases the browser and then everything else.
func (a *app) shutdown(ctx context.Context) {
	if a.session != nil {
		if err := a.session.Close(ctx); err != nil {
			a.logger.Warn("failed to close browser session", zap.Error(err))
		}
	}
	a.close()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}
