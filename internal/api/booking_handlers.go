package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/shehryarbajwa/railbook/pkg/models"
)

type otpRequest struct {
	OTP string `json:"otp"`
}

// SubmitBooking handles POST /v1/booking
func (h *Handler) SubmitBooking(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.Bookings.Submit(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, a)
}

// SubmitBookingOTP handles POST /v1/booking/otp
func (h *Handler) SubmitBookingOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.Bookings.SubmitOTP(r.Context(), req.OTP)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ShowPayment handles POST /v1/booking/payment/show
func (h *Handler) ShowPayment(w http.ResponseWriter, r *http.Request) {
	a, err := h.Bookings.ShowPayment(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "browser visible; complete the payment in the window",
		"attempt": a,
	})
}

// HidePayment handles POST /v1/booking/payment/hide
func (h *Handler) HidePayment(w http.ResponseWriter, r *http.Request) {
	if err := h.Bookings.HideBrowser(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "browser hidden"})
}

// GetAttempt handles GET /v1/booking/attempts/{id}
func (h *Handler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	a, err := h.Bookings.Attempt(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ListAttempts handles GET /v1/booking/attempts
func (h *Handler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.Bookings.Attempts(r.Context(), limitParam(r, 20))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if attempts == nil {
		attempts = []models.BookingAttempt{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(attempts), "attempts": attempts})
}

// StartSignIn handles POST /v1/signin
func (h *Handler) StartSignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
	}
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.SignIns.Start(r.Context(), req.Phone); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "OTP requested"})
}

// SubmitSignInOTP handles POST /v1/signin/otp
func (h *Handler) SubmitSignInOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.SignIns.SubmitOTP(r.Context(), req.OTP); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed in"})
}
