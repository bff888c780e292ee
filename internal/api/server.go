package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shehryarbajwa/railbook/internal/proxy"
	"github.com/shehryarbajwa/railbook/internal/ratelimit"
)

// RouterOptions carry the cross-cutting pieces of the router.
type RouterOptions struct {
	Proxy       *proxy.Server
	RateLimiter *ratelimit.Limiter
	Registry    *prometheus.Registry
}

// SetupRoutes configures all HTTP routes. CORS wraps the router so
// preflight requests are answered even though routes are method-bound.
func (h *Handler) SetupRoutes(opts RouterOptions) http.Handler {
	r := mux.NewRouter()

	var metrics *Metrics
	if opts.Registry != nil {
		metrics = NewMetrics(opts.Registry)
		r.Handle("/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})).Methods("GET")
	}
	r.Use(requestMiddleware(h.logger, metrics))

	// Browser-driving endpoints are rate limited
	limit := func(fn http.HandlerFunc) http.Handler {
		if opts.RateLimiter == nil {
			return fn
		}
		return opts.RateLimiter.Middleware(writeRateLimited)(fn)
	}

	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/chat", h.Chat).Methods("POST")

	// API v1 routes
	api := r.PathPrefix("/v1").Subrouter()

	// Session endpoints
	api.Handle("/session", limit(h.AcquireSession)).Methods("POST")
	api.HandleFunc("/session", h.GetSession).Methods("GET")
	api.Handle("/session", limit(h.CloseSession)).Methods("DELETE")
	api.Handle("/session/reset", limit(h.ResetSession)).Methods("POST")
	api.Handle("/session/show", limit(h.ShowSession)).Methods("POST")
	api.Handle("/session/hide", limit(h.HideSession)).Methods("POST")
	if opts.Proxy != nil {
		api.HandleFunc("/session/devtools", opts.Proxy.HandleDebugConnection).Methods("GET")
	}

	api.Handle("/search", limit(h.Search)).Methods("POST")
	api.HandleFunc("/credentials", h.GetCredentials).Methods("GET")

	// Query endpoints read the cache only; fixed paths go before {number}
	api.HandleFunc("/trains/available", h.AvailableTrains).Methods("GET")
	api.HandleFunc("/trains/cheapest", h.CheapestTrains).Methods("GET")
	api.HandleFunc("/trains/fastest", h.FastestTrains).Methods("GET")
	api.HandleFunc("/trains/by-class/{code}", h.TrainsByClass).Methods("GET")
	api.HandleFunc("/trains/by-type/{tag}", h.TrainsByType).Methods("GET")
	api.HandleFunc("/trains/filter", h.FilterTrains).Methods("POST")
	api.HandleFunc("/trains/summary", h.TrainSummary).Methods("GET")
	api.Handle("/trains/rendered", limit(h.RenderedTrains)).Methods("GET")
	api.HandleFunc("/trains/{number}", h.TrainDetails).Methods("GET")
	api.Handle("/trains/{number}/route", limit(h.TrainRoute)).Methods("GET")
	api.Handle("/trains/{number}/options", limit(h.TrainOptions)).Methods("GET")

	// Booking endpoints
	api.Handle("/booking", limit(h.SubmitBooking)).Methods("POST")
	api.Handle("/booking/otp", limit(h.SubmitBookingOTP)).Methods("POST")
	api.Handle("/booking/payment/show", limit(h.ShowPayment)).Methods("POST")
	api.Handle("/booking/payment/hide", limit(h.HidePayment)).Methods("POST")
	api.HandleFunc("/booking/attempts", h.ListAttempts).Methods("GET")
	api.HandleFunc("/booking/attempts/{id}", h.GetAttempt).Methods("GET")

	api.Handle("/signin", limit(h.StartSignIn)).Methods("POST")
	api.Handle("/signin/otp", limit(h.SubmitSignInOTP)).Methods("POST")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no route for " + req.URL.Path, Kind: "not_found"})
	})

	return corsMiddleware(r)
}
