package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/railbook/internal/apperr"
	"github.com/shehryarbajwa/railbook/internal/logging"
	"github.com/shehryarbajwa/railbook/internal/portal"
	"github.com/shehryarbajwa/railbook/internal/query"
	"github.com/shehryarbajwa/railbook/internal/session"
	"github.com/shehryarbajwa/railbook/pkg/models"
)

// Sessions is the browser session surface. *session.Session implements it.
type Sessions interface {
	Ensure(ctx context.Context) (models.BrowserStatus, error)
	Status(ctx context.Context) models.BrowserStatus
	Reset(ctx context.Context) error
	Close(ctx context.Context) error
	SetVisible(ctx context.Context) error
	SetHidden(ctx context.Context) error
	Search(ctx context.Context, q models.SearchQuery) (*session.SearchOutcome, error)
}

// Credentials exposes captured portal credentials. *cache.Cache implements it.
type Credentials interface {
	Credentials(identity string) (models.CapturedCredentials, error)
}

// Bookings is the booking workflow. *workflow.Booking implements it.
type Bookings interface {
	Submit(ctx context.Context, req models.BookingRequest) (*models.BookingAttempt, error)
	SubmitOTP(ctx context.Context, code string) (*models.BookingAttempt, error)
	ShowPayment(ctx context.Context) (*models.BookingAttempt, error)
	HideBrowser(ctx context.Context) error
	Attempt(ctx context.Context, id string) (*models.BookingAttempt, error)
	Attempts(ctx context.Context, limit int) ([]models.BookingAttempt, error)
}

// SignIns is the portal sign-in workflow. *workflow.SignIn implements it.
type SignIns interface {
	Start(ctx context.Context, phone string) error
	SubmitOTP(ctx context.Context, code string) error
}

// Routes looks up train schedules. *portal.Client implements it.
type Routes interface {
	Route(ctx context.Context, req portal.RouteRequest) (*models.TrainRoute, error)
}

// OptionsScraper reads a train's booking grid. *workflow.Options implements it.
type OptionsScraper interface {
	Scrape(ctx context.Context, trainNumber string) (*models.BookingOptions, error)
}

// Renderer lists the train cards on the live page. *workflow.Listing implements it.
type Renderer interface {
	Rendered(ctx context.Context) ([]models.RenderedTrain, error)
}

// ChatReply is the conversational agent's answer.
type ChatReply struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

// Chatter is the external conversational agent. It is optional.
type Chatter interface {
	Chat(ctx context.Context, message, sessionID string) (ChatReply, error)
}

// Deps are the services the facade fronts.
type Deps struct {
	Sessions    Sessions
	Queries     *query.Engine
	Credentials Credentials
	Bookings    Bookings
	SignIns     SignIns
	Routes      Routes
	Options     OptionsScraper
	Renderer    Renderer
	Chatter     Chatter
	Identity    string
	Logger      *zap.Logger
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	Deps
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Deps: deps, logger: logging.Component(logger, "api")}
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AcquireSession handles POST /v1/session
func (h *Handler) AcquireSession(w http.ResponseWriter, r *http.Request) {
	st, err := h.Sessions.Ensure(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GetSession handles GET /v1/session
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Sessions.Status(r.Context()))
}

// ResetSession handles POST /v1/session/reset
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Reset(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// CloseSession handles DELETE /v1/session
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Close(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ShowSession handles POST /v1/session/show
func (h *Handler) ShowSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.SetVisible(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Sessions.Status(r.Context()))
}

// HideSession handles POST /v1/session/hide
func (h *Handler) HideSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.SetHidden(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Sessions.Status(r.Context()))
}

// Search handles POST /v1/search
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var q models.SearchQuery
	if err := decodeJSON(r, &q, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.Sessions.Search(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GetCredentials handles GET /v1/credentials
func (h *Handler) GetCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := h.Credentials.Credentials(h.Identity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, creds.Redacted())
}

type listResponse[T any] struct {
	Count  int `json:"count"`
	Trains []T `json:"trains"`
}

func list[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Count: len(items), Trains: items}
}

// AvailableTrains handles GET /v1/trains/available
func (h *Handler) AvailableTrains(w http.ResponseWriter, r *http.Request) {
	trains, err := h.Queries.Available()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(trains))
}

// CheapestTrains handles GET /v1/trains/cheapest?class=
func (h *Handler) CheapestTrains(w http.ResponseWriter, r *http.Request) {
	trains, err := h.Queries.Cheapest(r.URL.Query().Get("class"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(trains))
}

// FastestTrains handles GET /v1/trains/fastest
func (h *Handler) FastestTrains(w http.ResponseWriter, r *http.Request) {
	trains, err := h.Queries.Fastest()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(trains))
}

// TrainsByClass handles GET /v1/trains/by-class/{code}
func (h *Handler) TrainsByClass(w http.ResponseWriter, r *http.Request) {
	trains, err := h.Queries.ByClass(mux.Vars(r)["code"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(trains))
}

// TrainsByType handles GET /v1/trains/by-type/{tag}
func (h *Handler) TrainsByType(w http.ResponseWriter, r *http.Request) {
	trains, err := h.Queries.ByType(mux.Vars(r)["tag"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(trains))
}

// FilterTrains handles POST /v1/trains/filter
func (h *Handler) FilterTrains(w http.ResponseWriter, r *http.Request) {
	c := query.Criteria{OnlyAvailable: true}
	if err := decodeJSON(r, &c, true); err != nil {
		h.writeError(w, r, err)
		return
	}
	trains, err := h.Queries.Filter(c)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(trains))
}

// TrainSummary handles GET /v1/trains/summary
func (h *Handler) TrainSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.Queries.Summary()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// RenderedTrains handles GET /v1/trains/rendered
func (h *Handler) RenderedTrains(w http.ResponseWriter, r *http.Request) {
	trains, err := h.Renderer.Rendered(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(trains))
}

// TrainDetails handles GET /v1/trains/{number}
func (h *Handler) TrainDetails(w http.ResponseWriter, r *http.Request) {
	d, err := h.Queries.TrainDetails(mux.Vars(r)["number"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// TrainRoute handles GET /v1/trains/{number}/route
func (h *Handler) TrainRoute(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	route, err := h.Routes.Route(r.Context(), portal.RouteRequest{
		TrainNumber:         mux.Vars(r)["number"],
		JourneyDate:         q.Get("journeyDate"),
		StartingStationCode: q.Get("startingStationCode"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, route)
}

// TrainOptions handles GET /v1/trains/{number}/options
func (h *Handler) TrainOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.Options.Scrape(r.Context(), mux.Vars(r)["number"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

// Chat handles POST /chat
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	if h.Chatter == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{
			Error: "no conversational agent is configured",
			Kind:  apperr.Internal,
		})
		return
	}
	var req struct {
		Message   string `json:"message"`
		SessionID string `json:"session_id"`
	}
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		h.writeError(w, r, apperr.New(apperr.Validation, "chat", "message is required"))
		return
	}
	reply, err := h.Chatter.Chat(r.Context(), req.Message, req.SessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func limitParam(r *http.Request, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		return v
	}
	return def
}
