package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/shehryarbajwa/railbook/internal/apperr"
)

type errorBody struct {
	Error   string         `json:"error"`
	Kind    apperr.Kind    `json:"kind"`
	Details map[string]any `json:"details,omitempty"`
	Hint    string         `json:"hint,omitempty"`
}

// statusFor maps error kinds onto HTTP status codes.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.Validation:
		return http.StatusBadRequest
	case apperr.CacheEmpty:
		return http.StatusConflict
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.CaptureMiss, apperr.Transport:
		return http.StatusBadGateway
	case apperr.ElementNotFound:
		return http.StatusUnprocessableEntity
	case apperr.SessionUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError is the single place failures become responses.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	body := errorBody{
		Error:   err.Error(),
		Kind:    kind,
		Details: apperr.DetailsOf(err),
		Hint:    apperr.Hint(kind),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
	writeJSON(w, status, body)
}

func writeRateLimited(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, errorBody{
		Error: "rate limit exceeded",
		Kind:  "rate_limited",
		Hint:  "wait before retrying; see the Retry-After header",
	})
}

// decodeJSON reads a request body into v. An empty body leaves v unchanged
// when allowEmpty is set.
func decodeJSON(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.Wrap(apperr.Validation, "decode", fmt.Errorf("invalid request body: %w", err))
	}
	return nil
}
