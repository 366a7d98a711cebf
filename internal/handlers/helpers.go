package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/ternarybob/fabula/internal/models"
)

// validate is the shared request validator. Validation rules live on the
// request DTO tags.
var validate = validator.New()

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteServiceError maps service-layer errors onto HTTP status codes.
// Missing resources and foreign-owner resources both surface as 404, so
// the API never confirms that another owner's resource exists.
func WriteServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not found")
	case models.IsValidation(err):
		WriteError(w, http.StatusBadRequest, err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}

// DecodeAndValidate decodes the request body into dst and runs the
// validator over it. Writes the error response itself and returns false
// when the request is unusable.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			WriteError(w, http.StatusBadRequest, "validation failed on field '"+verrs[0].Field()+"'")
			return false
		}
		WriteError(w, http.StatusBadRequest, "validation failed")
		return false
	}

	return true
}
