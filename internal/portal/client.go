// Package portal calls the portal's auxiliary JSON APIs directly, replaying
// the credentials captured from the browser.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shehryarbajwa/railbook/internal/apperr"
	"github.com/shehryarbajwa/railbook/internal/logging"
	"github.com/shehryarbajwa/railbook/pkg/models"
)

const maxResponseBytes = 4 << 20

// CredentialSource hands out the most recently captured credentials.
type CredentialSource interface {
	Credentials(identity string) (models.CapturedCredentials, error)
}

// Client looks up train schedules.
type Client struct {
	routeURL string
	creds    CredentialSource
	identity string
	http     *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRate throttles outbound calls to r per second with the given burst.
func WithRate(r rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(r, burst) }
}

// WithIdentity selects whose credentials are replayed.
func WithIdentity(identity string) Option {
	return func(c *Client) { c.identity = identity }
}

func NewClient(routeURL string, creds CredentialSource, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		routeURL: routeURL,
		creds:    creds,
		identity: "default",
		http:     &http.Client{Timeout: 15 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(2), 4),
		logger:   logging.Component(logger, "portal"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RouteRequest identifies one run of a train.
type RouteRequest struct {
	TrainNumber         string
	JourneyDate         string
	StartingStationCode string
}

func (r RouteRequest) validate() error {
	var errs models.FieldErrors
	if strings.TrimSpace(r.TrainNumber) == "" {
		errs = append(errs, "train number is required")
	}
	if strings.TrimSpace(r.JourneyDate) == "" {
		errs = append(errs, "journeyDate is required")
	} else if _, err := models.ParseSearchDate(r.JourneyDate); err != nil {
		errs = append(errs, err.Error())
	}
	if strings.TrimSpace(r.StartingStationCode) == "" {
		errs = append(errs, "startingStationCode is required")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Route fetches the station-wise schedule of a train.
func (c *Client) Route(ctx context.Context, req RouteRequest) (*models.TrainRoute, error) {
	if err := req.validate(); err != nil {
		return nil, apperr.Wrap(apperr.Validation, "portal.route", err)
	}
	creds, err := c.creds.Credentials(c.identity)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"userToken":           creds.UserToken,
		"dSession":            creds.DSession,
		"sessionId":           creds.SessionID,
		"trainNumber":         strings.TrimSpace(req.TrainNumber),
		"journeyDate":         strings.TrimSpace(req.JourneyDate),
		"startingStationCode": strings.ToUpper(strings.TrimSpace(req.StartingStationCode)),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "portal.route", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperr.Wrap(apperr.Transport, "portal.route", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.routeURL, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "portal.route", err)
	}
	for k, v := range creds.Headers {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, apperr.Wrap(apperr.Transport, "portal.route", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperr.Wrap(apperr.Transport, "portal.route", err)
	}
	c.logger.Debug("route lookup",
		zap.Stringer("request", req),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apperr.New(apperr.Transport, "portal.route",
			"route lookup returned %d", resp.StatusCode).With("status", resp.StatusCode)
	}
	if !gjson.ValidBytes(raw) {
		return nil, apperr.New(apperr.Transport, "portal.route", "route lookup returned invalid JSON")
	}
	return DecodeRoute(req.TrainNumber, raw), nil
}

// DecodeRoute reads the station list from a schedule response. Unknown
// shapes yield a route with no stations and the raw body attached.
func DecodeRoute(trainNumber string, raw []byte) *models.TrainRoute {
	route := &models.TrainRoute{TrainNumber: trainNumber, Raw: json.RawMessage(raw)}
	list := gjson.GetBytes(raw, "stationList")
	if !list.Exists() {
		list = gjson.GetBytes(raw, "data.stationList")
	}
	list.ForEach(func(_, st gjson.Result) bool {
		route.Stations = append(route.Stations, models.RouteStop{
			StationCode:   st.Get("stationCode").String(),
			StationName:   strings.TrimSpace(st.Get("stationName").String()),
			ArrivalTime:   st.Get("arrivalTime").String(),
			DepartureTime: st.Get("departureTime").String(),
			Distance:      st.Get("distance").String(),
			Day:           int(st.Get("dayCount").Int()),
		})
		return true
	})
	return route
}

func (r RouteRequest) String() string {
	return fmt.Sprintf("%s from %s on %s", r.TrainNumber, r.StartingStationCode, r.JourneyDate)
}
