package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"zetsuserv/internal/credential"
	orderdomain "zetsuserv/internal/order/domain"
	orderservice "zetsuserv/internal/order/service"
)

// errorBody is the JSON error envelope. RetryAfter is set only on 429.
type errorBody struct {
	Error      string `json:"error"`
	RetryAfter int64  `json:"retry_after,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			log.Printf("http: encode response: %v", err)
		}
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeServiceError maps domain errors to HTTP responses. Verification
// failures collapse to one generic 401 so callers cannot probe which part was
// wrong; rate limits surface retry_after in whole seconds.
func writeServiceError(w http.ResponseWriter, err error) {
	var rl *credential.RateLimitedError
	switch {
	case errors.As(err, &rl):
		secs := int64(rl.RetryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		writeJSON(w, http.StatusTooManyRequests, errorBody{
			Error:      "too many requests",
			RetryAfter: secs,
		})
	case credential.IsAuthFailure(err):
		writeError(w, http.StatusUnauthorized, credential.GenericAuthMessage)
	case errors.Is(err, orderservice.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, orderdomain.ErrStepNotFound):
		writeError(w, http.StatusNotFound, "progress step not found")
	case errors.Is(err, orderdomain.ErrStepNotPending),
		errors.Is(err, orderdomain.ErrStepNotActive),
		errors.Is(err, orderdomain.ErrPreviousNotDone),
		errors.Is(err, orderdomain.ErrStepAlreadyActive):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, credential.ErrConflict):
		writeError(w, http.StatusConflict, "concurrent update, retry")
	case errors.Is(err, credential.ErrDeliveryFailed):
		writeError(w, http.StatusBadGateway, "could not deliver the message, try resend")
	default:
		log.Printf("http: internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return false
	}
	return true
}
