// Package respond writes JSON bodies and maps service errors to HTTP statuses.
package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/adnan855570/Global-Dorm-App/internal/core/apperr"
)

type errorBody struct {
	Detail string `json:"detail"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func Detail(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, errorBody{Detail: msg})
}

// Error writes err as {"detail": ...}. Internal errors are logged and hidden.
func Error(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if kind == apperr.KindInternal {
		if logger == nil {
			logger = slog.Default()
		}
		logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	if kind == apperr.KindUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	Detail(w, status, apperr.Message(err))
}

// Decode reads a JSON body into v. Malformed bodies get 422.
func Decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		Detail(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return false
	}
	return true
}
