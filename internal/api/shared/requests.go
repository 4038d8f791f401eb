package shared

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// DecodeJSON decodes the request body into the given struct.
// On failure it writes a 400 response and returns false; handlers
// should return immediately in that case.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return false
	}
	return true
}

// ValidateRequest validates the given struct with the provided validator.
// On failure it writes a 400 response and returns false.
func ValidateRequest(w http.ResponseWriter, r *http.Request, validate *validator.Validate, v interface{}) bool {
	if err := validate.Struct(v); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return false
	}
	return true
}
