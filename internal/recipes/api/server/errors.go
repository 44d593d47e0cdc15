package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Leopold1975/recipe_catalog/internal/recipes/domain/models"
	"github.com/Leopold1975/recipe_catalog/internal/recipes/services/authservice"
	"github.com/Leopold1975/recipe_catalog/internal/recipes/services/catalogservice"
)

type Error struct {
	Err   string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (se Error) ToJSON() []byte {
	b, err := json.Marshal(se)
	if err != nil {
		se.Err = err.Error()
		se.Field = ""

		b, err := json.Marshal(se)
		if err != nil {
			return []byte(`{
				"error": "marshal error"
			  }`)
		}

		return b
	}

	return b
}

func handleError(w http.ResponseWriter, err error, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	e := Error{Err: err.Error()} //nolint:exhaustruct

	ve := models.ValidationError{} //nolint:exhaustruct
	if errors.As(err, &ve) {
		e.Err = ve.Message
		e.Field = ve.Field
	}

	w.Write(e.ToJSON()) //nolint:errcheck
}

// statusFor maps service errors onto the response taxonomy: 400 for
// validation and bad credentials, 401 for auth failures, 404 for
// missing or foreign-owned resources, 500 otherwise.
func statusFor(err error) int {
	ve := models.ValidationError{} //nolint:exhaustruct

	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, authservice.ErrInvalidCredentials):
		return http.StatusBadRequest
	case errors.Is(err, authservice.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, catalogservice.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
