package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Hung6066/IVF-sub008/pkg/errors"
)

// RespondWithJSON writes a JSON response with the given status code
func RespondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// RespondWithError maps an error onto the API error contract. Denials come
// through with generic codes only; the precise cause was already logged.
func RespondWithError(w http.ResponseWriter, err error) {
	apiErr := errors.AsAPIError(err)
	RespondWithJSON(w, apiErr.HTTPStatus, apiErr)
}

// DecodeJSONBody decodes a request body, rejecting unknown fields
func DecodeJSONBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return errors.ValidationFailed("invalid request body")
	}
	return nil
}
