// Package handler exposes the KYC document-processing HTTP API.
package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"kycdoc/pkg/logger"
	"kycdoc/pkg/validator"
)

func respondJSON(w http.ResponseWriter, log logger.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("Failed to encode JSON response", map[string]interface{}{
			"error":  err.Error(),
			"status": status,
		})
	}
}

func respondError(w http.ResponseWriter, log logger.Logger, status int, message string) {
	respondJSON(w, log, status, map[string]string{"error": message})
}

// parseAndValidate decodes and validates a JSON request body, writing the
// error response itself when something is wrong.
func parseAndValidate(w http.ResponseWriter, r *http.Request, log logger.Logger, val *validator.Validator, req interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(req); err != nil {
		if err == io.EOF {
			respondError(w, log, http.StatusBadRequest, "Request body is required")
			return false
		}
		log.Warn("Invalid request body", map[string]interface{}{
			"error":    err.Error(),
			"endpoint": r.URL.Path,
		})
		respondError(w, log, http.StatusBadRequest, "Invalid request body format")
		return false
	}

	if err := val.Validate(req); err != nil {
		log.Warn("Request validation failed", map[string]interface{}{
			"error":    err.Error(),
			"endpoint": r.URL.Path,
		})
		respondError(w, log, http.StatusBadRequest, err.Error())
		return false
	}

	return true
}
