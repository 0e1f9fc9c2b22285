package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"brightsteps/internal/logger"
	"brightsteps/internal/progress"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondWithError(w http.ResponseWriter, log *logger.Logger, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		if status >= http.StatusInternalServerError {
			log.Error(logMsg, "status", status, "error", err)
		} else {
			log.Debug(logMsg, "status", status, "error", err)
		}
	}

	respondWithJSON(w, log, status, errorResponse{Error: userMsg})
}

// respondWithServiceError maps an error kind onto an HTTP status. Client
// errors echo the message; everything else gets a generic one.
func respondWithServiceError(w http.ResponseWriter, log *logger.Logger, logMsg string, err error) {
	status := errorStatus(err)
	userMsg := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		userMsg = ErrUpstreamUnavailable
	case http.StatusInternalServerError:
		userMsg = ErrInternalServerError
	}
	respondWithError(w, log, status, userMsg, logMsg, err)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, progress.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, progress.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, progress.ErrConcurrencyConflict):
		return http.StatusConflict
	case errors.Is(err, progress.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondWithJSON(w http.ResponseWriter, log *logger.Logger, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn("Failed to encode response", "error", err)
	}
}
